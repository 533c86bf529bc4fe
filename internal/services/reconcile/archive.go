package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

const archivePrefix = "reconcile/"

// S3Archiver uploads reports as JSON objects under reconcile/.
type S3Archiver struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

func NewS3Archiver(client *minio.Client, bucket string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (a *S3Archiver) EnsureBucket(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if a.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	a.ensureOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.ensureErr = err
			return
		}
		if exists {
			return
		}
		a.ensureErr = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
	})

	if a.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", a.bucket, a.ensureErr)
	}

	return nil
}

func (a *S3Archiver) Archive(ctx context.Context, report Report) (string, error) {
	if err := a.EnsureBucket(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := ArchiveKey(report)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put object to s3: %w", err)
	}

	return key, nil
}

func ArchiveKey(report Report) string {
	return archivePrefix + report.StartedAt.UTC().Format("20060102T150405.000000000Z") + ".json"
}
