package storage

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/intake-api/pkg/logger"
)

func TestDecodeFileDataURL(t *testing.T) {
	raw := []byte("png-bytes")
	d, err := decodeFile(File{
		Name: "scan",
		Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
	})
	require.NoError(t, err)
	assert.Equal(t, raw, d.body)
	assert.Equal(t, "image/png", d.contentType)
	assert.Equal(t, ".png", d.ext)
}

func TestDecodeFileBareBase64(t *testing.T) {
	d, err := decodeFile(File{Name: "report.PDF", Data: base64.StdEncoding.EncodeToString([]byte("%PDF"))})
	require.NoError(t, err)
	assert.Equal(t, ".pdf", d.ext)
	assert.Equal(t, "application/pdf", d.contentType)
}

func TestDecodeFileRejectsGarbage(t *testing.T) {
	_, err := decodeFile(File{Name: "x.png", Data: "!!not base64!!"})
	assert.Error(t, err)

	_, err = decodeFile(File{Name: "x.png", Data: "data:image/png,plain"})
	assert.Error(t, err)

	_, err = decodeFile(File{Name: "x.png"})
	assert.ErrorIs(t, err, errEmptyData)
}

func TestMinioUploaderDegradesToEmpty(t *testing.T) {
	u := NewMinioUploader(nil, Config{Bucket: "answers"}, logger.Nop(), nil)

	urls := u.Upload(context.Background(), nil)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)

	// decoding fails before the client is touched
	urls = u.Upload(context.Background(), []File{{Name: "x.png", Data: "%%%"}})
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestPublicURL(t *testing.T) {
	u := NewMinioUploader(nil, Config{Endpoint: "minio:9000", Bucket: "answers"}, logger.Nop(), nil)
	assert.Equal(t, "http://minio:9000/answers/k.png", u.publicURL("k.png"))

	u.cfg.PublicURL = "https://files.example.org/"
	assert.Equal(t, "https://files.example.org/answers/k.png", u.publicURL("k.png"))
}
