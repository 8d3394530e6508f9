package providers

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrBlobNotFound is returned when a locator does not point at a stored blob.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore stores raw document files. Locators are opaque to callers.
type BlobStore interface {
	// Put stores data under key and returns a locator for later access
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get opens the blob behind locator; the caller closes the reader
	Get(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the blob behind locator
	Delete(ctx context.Context, locator string) error

	// Presign returns a time-limited download URL
	Presign(ctx context.Context, locator string, ttl time.Duration) (string, error)
}
