// Package archive stores raw pull payloads in object storage.
//
// Archival is best effort from the cycle's point of view; the engine works
// fine without it. The payloads exist for debugging bad pulls and for
// replaying a cycle's input after parser changes.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"catalog-sync/core/storage"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Archiver writes one object per cycle under pulls/<cycle-id>.json.
type Archiver struct {
	client storage.Client
	bucket string
	logger *zap.Logger
}

// New creates an Archiver on the given bucket.
func New(client storage.Client, bucket string, logger *zap.Logger) *Archiver {
	return &Archiver{client: client, bucket: bucket, logger: logger}
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("checking archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating archive bucket: %w", err)
	}
	a.logger.Info("created archive bucket", zap.String("bucket", a.bucket))
	return nil
}

// Store uploads one cycle's raw payload.
func (a *Archiver) Store(ctx context.Context, cycleID string, payload []byte) error {
	name := objectName(cycleID)
	_, err := a.client.PutObject(ctx, a.bucket, name,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("archiving pull %s: %w", cycleID, err)
	}
	a.logger.Debug("archived raw pull",
		zap.String("cycle_id", cycleID), zap.Int("bytes", len(payload)))
	return nil
}

// Prune removes archived pulls older than the retention window and returns
// how many objects were deleted.
func (a *Archiver) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for object := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    "pulls/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return deleted, fmt.Errorf("listing archive: %w", object.Err)
		}
		if !object.LastModified.Before(cutoff) {
			continue
		}
		if err := a.client.RemoveObject(ctx, a.bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", object.Key, err)
		}
		deleted++
	}
	if deleted > 0 {
		a.logger.Info("pruned archived pulls", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func objectName(cycleID string) string {
	return "pulls/" + cycleID + ".json"
}
