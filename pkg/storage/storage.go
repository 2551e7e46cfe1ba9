package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// File is one upload as it arrives in a file-type answer.
type File struct {
	Data string `json:"data"`
	Name string `json:"name"`
}

// Uploader stores files and returns their public URLs.
// Implementations never fail: problems are logged and yield an empty slice.
type Uploader interface {
	Upload(ctx context.Context, files []File) []string
}

var errEmptyData = errors.New("empty file data")

// decoded is a File ready to be written to the object store.
type decoded struct {
	body        []byte
	contentType string
	ext         string
}

// decodeFile accepts either a data URL ("data:image/png;base64,....") or bare base64.
func decodeFile(f File) (*decoded, error) {
	data := strings.TrimSpace(f.Data)
	if data == "" {
		return nil, errEmptyData
	}

	contentType := ""
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data url for %q", f.Name)
		}
		meta := strings.TrimPrefix(data[:comma], "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("data url for %q is not base64", f.Name)
		}
		contentType = strings.TrimSuffix(meta, ";base64")
		data = data[comma+1:]
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", f.Name, err)
	}

	ext := strings.ToLower(filepath.Ext(f.Name))
	if contentType == "" && ext != "" {
		contentType = mime.TypeByExtension(ext)
	}
	if ext == "" && contentType != "" {
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &decoded{body: body, contentType: contentType, ext: ext}, nil
}
