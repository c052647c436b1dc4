// Package storage puts photo bytes somewhere retrievable: an S3-compatible bucket
// (Yandex Object Storage by default) or a local directory.
package storage

import (
	"context"
	"fmt"
	"path"
	"photopost-bot/internal/config"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// DefaultContentType is used when the bytes cannot be sniffed.
const DefaultContentType = "image/jpeg"

// ObjectStorage stores and retrieves photo payloads.
type ObjectStorage interface {
	// Put stores data under key and returns its location (URL or path).
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get reads back the bytes stored at a location previously returned by Put or Location.
	Get(ctx context.Context, location string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Location maps a key to the location Put would return for it.
	Location(key string) string
}

// New builds the storage backend selected by cfg.StorageDriver.
func New(ctx context.Context, cfg *config.Config) (ObjectStorage, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		return NewS3(ctx, cfg.S3)
	case config.StorageLocal:
		return NewLocal(cfg.LocalStorageDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// DetectContentType sniffs the MIME type and file extension of data.
func DetectContentType(data []byte) (mimeType, ext string) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return DefaultContentType, "jpg"
	}
	return kind.MIME.Value, kind.Extension
}

// NewKey builds an object key under prefix. A random id is used when uniqueID is empty.
func NewKey(prefix, uniqueID, ext string) string {
	if uniqueID == "" {
		uniqueID = uuid.NewString()
	}
	if ext == "" {
		ext = "jpg"
	}
	return strings.TrimPrefix(prefix, "/") + uniqueID + "." + ext
}

// ExternalIDFromKey recovers the photo identifier encoded in a key: its base name without extension.
func ExternalIDFromKey(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
