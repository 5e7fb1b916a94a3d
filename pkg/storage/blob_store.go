package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned when the bytes for a stored path are gone.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore holds attachment bytes addressed by the path recorded on the file row.
type BlobStore interface {
	// Save streams r to path and returns the number of bytes written.
	// A failed save leaves nothing behind at path.
	Save(ctx context.Context, path string, r io.Reader) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove deletes the bytes at path; a missing blob is not an error.
	Remove(ctx context.Context, path string) error
}
