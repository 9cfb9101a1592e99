// Package objectstore is the gateway to the object store holding raw and
// processed audio. Two implementations exist, MinIO for real deployments and
// Memory for tests and credential-less development; the variant is chosen
// once at construction and call sites never branch on mode.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Store abstracts the object store. All operations are remote calls; the
// store performs no retries, callers decide retry policy.
type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
	// SignedURL issues a time-limited download link. It must only be called
	// for keys the caller knows exist.
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
