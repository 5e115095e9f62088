package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a path does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store defines the interface for a file storage backend.
type Store interface {
	Save(ctx context.Context, path string, reader io.Reader) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, dir string) ([]string, error)
}
