package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jwalitptl/intake-api/pkg/circuitbreaker"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/metrics"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PublicURL prefixes object keys in returned URLs, e.g. https://files.example.org
	PublicURL string
	Prefix    string
}

func NewMinioClient(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}
	return client, nil
}

type MinioUploader struct {
	client  *minio.Client
	cfg     Config
	cb      *circuitbreaker.CircuitBreaker
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewMinioUploader(client *minio.Client, cfg Config, log *logger.Logger, m *metrics.Metrics) *MinioUploader {
	return &MinioUploader{
		client: client,
		cfg:    cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "minio",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		logger:  log,
		metrics: m,
	}
}

// Upload writes every file or none: one bad file degrades the whole answer to an empty list.
func (u *MinioUploader) Upload(ctx context.Context, files []File) []string {
	urls := make([]string, 0, len(files))
	if len(files) == 0 {
		return urls
	}

	for _, f := range files {
		d, err := decodeFile(f)
		if err != nil {
			u.fail(err, "invalid file payload", f.Name)
			return []string{}
		}

		key := u.objectKey(d.ext)
		err = u.cb.Execute(func() error {
			_, err := u.client.PutObject(ctx, u.cfg.Bucket, key, bytes.NewReader(d.body), int64(len(d.body)), minio.PutObjectOptions{
				ContentType: d.contentType,
			})
			return err
		})
		if err != nil {
			u.fail(err, "failed to store file", f.Name)
			return []string{}
		}
		urls = append(urls, u.publicURL(key))
	}
	return urls
}

func (u *MinioUploader) objectKey(ext string) string {
	key := uuid.New().String() + ext
	if u.cfg.Prefix != "" {
		key = strings.Trim(u.cfg.Prefix, "/") + "/" + key
	}
	return key
}

func (u *MinioUploader) publicURL(key string) string {
	base := strings.TrimRight(u.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if u.cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + u.cfg.Endpoint
	}
	return fmt.Sprintf("%s/%s/%s", base, u.cfg.Bucket, key)
}

func (u *MinioUploader) fail(err error, msg, name string) {
	u.logger.Error(err, msg, "file_name", name, "bucket", u.cfg.Bucket)
	if u.metrics != nil {
		u.metrics.UploadFailures.Inc()
	}
}
