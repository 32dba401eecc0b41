package interfaces

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("storage: key not found")

// BlobStorage stores opaque blobs under flat string keys.
type BlobStorage interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Open returns ErrNotFound when the key is missing.
	Open(ctx context.Context, key string) (io.ReadSeekCloser, error)
	// Write replaces the blob atomically with whatever fn writes. A failing fn leaves the old blob.
	Write(ctx context.Context, key string, fn func(w io.Writer) error) (int64, error)
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, key string) error
	// List returns the sorted keys ending with suffix.
	List(ctx context.Context, suffix string) ([]string, error)
	Close() error
}

// ModTimeStorage is implemented by backends that know when a blob was last written.
type ModTimeStorage interface {
	BlobStorage
	ModTime(ctx context.Context, key string) (int64, error)
}
