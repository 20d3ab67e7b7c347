package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no blob.
var ErrNotFound = errors.New("blob not found")

// BlobStore is a flat key/value store for opaque documents. Keys use "/" as
// the path separator.
type BlobStore interface {
	// Put writes content under key, replacing any previous blob.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get opens the blob stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the keys below prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes a blob.
	Delete(ctx context.Context, key string) error
}
