// Package storage holds the remote object stores that back user assets and
// the local staging area uploads pass through on their way there.
package storage

import (
	"context"
	"io"
	"strings"
)

// ObjectStore is the remote object/CDN store
type ObjectStore interface {
	// Upload stores size bytes from r under key and returns the public URL
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete removes the object under key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// DeleteMany removes every key it can and reports the ones it could
	// not. A non-nil error means the batch as a whole could not be issued.
	DeleteMany(ctx context.Context, keys []string) (map[string]error, error)
}

// publicURL joins a base URL and an object key
func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
