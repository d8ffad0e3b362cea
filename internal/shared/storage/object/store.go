package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for saving and retrieving chart source files.
type ObjectStore interface {
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
}
