package lib

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

type UploadConfig struct {
	MaxSizeBytes     int64
	AllowedMimeTypes []string
}

var DefaultProofUploadConfig = UploadConfig{
	MaxSizeBytes: 5 * 1024 * 1024, // 5MB
	AllowedMimeTypes: []string{
		"image/jpeg",
		"image/png",
		"image/webp",
	},
}

// DetectUpload checks size and sniffed content type, returning the latter.
func DetectUpload(body []byte, config UploadConfig) (string, error) {
	if int64(len(body)) > config.MaxSizeBytes {
		return "", fmt.Errorf("file size exceeds maximum limit of %d MB", config.MaxSizeBytes/(1024*1024))
	}
	mimeType := http.DetectContentType(body)
	if !slices.Contains(config.AllowedMimeTypes, mimeType) {
		return "", fmt.Errorf("invalid file type. Allowed types: %v", config.AllowedMimeTypes)
	}
	return mimeType, nil
}

// LocalUploader stores files under a directory served at baseURL.
type LocalUploader struct {
	dir     string
	baseURL string
}

func NewLocalUploader(dir string, baseURL string) *LocalUploader {
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *LocalUploader) path(name string) (string, error) {
	full := filepath.Join(l.dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(l.dir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	return full, nil
}

func (l *LocalUploader) Upload(ctx context.Context, name string, contentType string, body []byte) (string, error) {
	full, err := l.path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, body, 0o644); err != nil {
		return "", err
	}
	return l.baseURL + "/" + filepath.ToSlash(name), nil
}

func (l *LocalUploader) Remove(ctx context.Context, url string) error {
	name, ok := strings.CutPrefix(url, l.baseURL+"/")
	if !ok {
		return fmt.Errorf("%s is not a local upload", url)
	}
	full, err := l.path(name)
	if err != nil {
		return err
	}
	return os.Remove(full)
}
