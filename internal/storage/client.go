package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the object vanished since enumeration.
var ErrNotFound = errors.New("object not found")

// Client defines the S3-compatible operations consumed by the engine.
type Client interface {
	// BucketExists reports whether the bucket exists and is accessible.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// ListObjects streams object metadata under prefix. The sequence is
	// finite and restartable from the start only.
	ListObjects(ctx context.Context, bucket, prefix string) (<-chan ObjectInfo, <-chan error)

	// HeadObject fetches metadata for one object. Fails with ErrNotFound
	// if the object no longer exists.
	HeadObject(ctx context.Context, bucket, key string) (ObjectInfo, error)

	// DownloadObject transfers one object to destPath and returns the
	// number of bytes written.
	DownloadObject(ctx context.Context, bucket, key, destPath string) (int64, error)
}

// ObjectInfo contains object metadata
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Config contains client configuration
type Config struct {
	Endpoint string
	Secure   bool
}
