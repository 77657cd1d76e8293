// Package blob abstracts the object store holding cached reports and
// generated export files.
package blob

import (
	"context"
	"time"
)

// Store is the blob-store contract the cache layer depends on. Save
// overwrites silently; SignedURL returns a time-limited download
// reference for an existing blob.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Save(ctx context.Context, path string, data []byte) error
	Open(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}
