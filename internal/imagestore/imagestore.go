// Package imagestore is the gateway to the S3-compatible object store holding
// uploaded images and job result artifacts.
package imagestore

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// Store is the object-store interface. Implementations must be safe for
// concurrent use.
//
// PublicURL is a pure string template over bucket and key: it performs no
// existence check, so callers must confirm a Put succeeded before persisting
// the URL anywhere.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	PublicURL(key string) string
	Ping(ctx context.Context) error
}
