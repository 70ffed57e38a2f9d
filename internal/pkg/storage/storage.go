package storage

import (
	"context"
	"io"
)

// Storage is the object store used for exported statements.
type Storage interface {
	// Put stores the object under key, replacing any previous version.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Delete removes an object. Returns nil if it doesn't exist.
	Delete(ctx context.Context, key string) error

	// GetURL returns the URL of an object given its key.
	GetURL(key string) string
}

// Config for the S3 backend. Endpoint is set for MinIO and other
// S3-compatible services.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}
