package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/JoshRudy-fn6/S3Swarm/internal/manifest"
	"github.com/JoshRudy-fn6/S3Swarm/internal/storage"
)

// ManifestBuilder enumerates the source buckets and records one pending
// task per discoverable object.
type ManifestBuilder struct {
	client   storage.Client
	store    *manifest.Store
	destRoot string
	logger   *zap.Logger
}

// Build walks every bucket and inserts pending tasks. Folder markers and
// zero-size placeholder entries are excluded. Returns the number of tasks
// added and their byte total.
func (b *ManifestBuilder) Build(ctx context.Context, buckets []string) (int64, int64, error) {
	var added, totalBytes int64

	for _, bucket := range buckets {
		accessible, err := b.client.BucketExists(ctx, bucket)
		if err != nil {
			if ctx.Err() != nil {
				return added, totalBytes, ctx.Err()
			}
			b.logger.Warn("Skipping bucket, access check failed",
				zap.String("bucket", bucket),
				zap.Error(err),
			)
			continue
		}
		if !accessible {
			b.logger.Warn("Skipping bucket, not accessible", zap.String("bucket", bucket))
			continue
		}

		n, bytes, err := b.enumerateBucket(ctx, bucket)
		if err != nil {
			return added, totalBytes, fmt.Errorf("enumerate bucket %s: %w", bucket, err)
		}
		added += n
		totalBytes += bytes

		b.logger.Info("Bucket enumerated",
			zap.String("bucket", bucket),
			zap.Int64("objects", n),
			zap.Int64("bytes", bytes),
		)
	}

	if err := b.store.Persist(); err != nil {
		return added, totalBytes, fmt.Errorf("persist manifest: %w", err)
	}
	return added, totalBytes, nil
}

func (b *ManifestBuilder) enumerateBucket(ctx context.Context, bucket string) (int64, int64, error) {
	objCh, errCh := b.client.ListObjects(ctx, bucket, "")

	var added, totalBytes int64
	for {
		select {
		case obj, ok := <-objCh:
			if !ok {
				// The listing goroutine closes both channels after a
				// failure, so the error may still be sitting in the
				// buffer when the object channel drains.
				if err := <-errCh; err != nil {
					return added, totalBytes, err
				}
				return added, totalBytes, nil
			}

			// Folder markers and zero-size placeholders are not
			// transferable objects.
			if strings.HasSuffix(obj.Key, "/") || obj.Size == 0 {
				continue
			}

			task := &manifest.Task{
				Bucket:      bucket,
				Object:      obj.Key,
				Size:        obj.Size,
				Destination: filepath.Join(b.destRoot, bucket, filepath.FromSlash(obj.Key)),
				Status:      manifest.StatusPending,
			}
			if b.store.Add(task) {
				added++
				totalBytes += obj.Size
			}

		case err := <-errCh:
			if err != nil {
				return added, totalBytes, err
			}

		case <-ctx.Done():
			return added, totalBytes, ctx.Err()
		}
	}
}
