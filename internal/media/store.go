// Package media stores product images. Products keep only the returned key;
// bytes live on local disk or in an S3-compatible bucket.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"shopfront/internal/config"
)

var (
	ErrNotFound = errors.New("media: not found")
	ErrBadKey   = errors.New("media: invalid key")
	ErrBadType  = errors.New("media: unsupported image type")
)

// Store is the asset store contract used by the catalog.
type Store interface {
	// Put writes r under key, replacing anything already there.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Open returns the asset. Callers must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// URL is where clients can fetch key.
	URL(key string) string
}

// imageTypes maps accepted extensions to their content type.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// New builds the store selected by cfg.MediaDriver.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch strings.ToLower(cfg.MediaDriver) {
	case "", "local":
		return NewLocal(cfg.MediaDir, cfg.MediaURL)
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			BaseURL:  cfg.MediaURL,
		})
	}
	return nil, fmt.Errorf("media: unknown driver %q", cfg.MediaDriver)
}

// CleanKey normalizes a slash-separated key and rejects traversal attempts,
// encoded or raw, and null bytes.
func CleanKey(key string) (string, error) {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "..") || strings.Contains(lower, "%2e") || strings.Contains(lower, "\x00") {
		return "", ErrBadKey
	}
	clean := path.Clean(strings.TrimLeft(filepath.ToSlash(key), "/"))
	if clean == "." || clean == "" || strings.HasPrefix(clean, "../") {
		return "", ErrBadKey
	}
	return clean, nil
}

// ImageType returns the content type for an image file name.
func ImageType(filename string) (string, error) {
	ct, ok := imageTypes[strings.ToLower(path.Ext(filename))]
	if !ok {
		return "", ErrBadType
	}
	return ct, nil
}

// ProductImageKey picks a fresh key under products/<productID>/ that keeps
// the upload's extension.
func ProductImageKey(productID, filename string) (string, error) {
	if _, err := ImageType(filename); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(filename))
	return CleanKey(path.Join("products", productID, uuid.NewString()+ext))
}
