// Package storage keeps uploaded files, such as payment screenshots, in an object store.
package storage

import (
	"context"
	"io"
	"time"
)

type ObjectStore interface {
	// Put writes r to object, replacing any previous content.
	Put(ctx context.Context, object string, r io.Reader, contentType string) error
	// SignedURL returns a time-limited download URL for object.
	SignedURL(ctx context.Context, object string, ttl time.Duration) (string, error)
	// Delete removes object. Deleting a missing object is not an error.
	Delete(ctx context.Context, object string) error
}
