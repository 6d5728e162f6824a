// Package objectstore implements C5 (retrieval.ObjectFetcher): an
// S3-compatible fetcher grounded on the teacher's R2Storage adapter, plus an
// in-memory fallback for local runs and tests.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// defaultMaxObjectBytes bounds how much of a fetched object C5 will buffer
// before giving up (spec §4.5, default for `embedding.max_document_bytes`).
const defaultMaxObjectBytes = 50 * 1024 * 1024

// MinioFetcher is C5 against an S3-compatible bucket. It times out, retries
// at most twice with exponential backoff on a transient failure, and never
// retries a not-found (spec §4.5).
type MinioFetcher struct {
	client      *minio.Client
	bucket      string
	maxObjBytes int64
	logger      *slog.Logger
}

// NewMinioFetcher constructs C5's blob-storage adapter. maxObjBytes is the
// configured `embedding.max_document_bytes` cap (spec §6); 0 falls back to
// the spec default of 50 MiB.
func NewMinioFetcher(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, maxObjBytes int64, logger *slog.Logger) (*MinioFetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxObjBytes <= 0 {
		maxObjBytes = defaultMaxObjectBytes
	}
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &MinioFetcher{client: client, bucket: bucket, maxObjBytes: maxObjBytes, logger: logger.With("component", "objectstore.minio")}, nil
}

// Fetch implements spec §4.5: a timed fetch, at most two retries with
// exponential backoff on a transient failure, no retry on not-found.
func (f *MinioFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := f.fetchOnce(ctx, key)
		if err == nil {
			return data, nil
		}
		if apperrors.IsCode(err, apperrors.CodeNotFound) || apperrors.IsCode(err, apperrors.CodeTooLarge) {
			return nil, err
		}
		lastErr = err
		f.logger.Warn("object fetch attempt failed", "key", key, "attempt", attempt, "error", err)
	}
	return nil, apperrors.Wrap(apperrors.CodeTransientFailure, "object fetch exhausted retries", lastErr)
}

func (f *MinioFetcher) fetchOnce(ctx context.Context, key string) ([]byte, error) {
	obj, err := f.client.GetObject(ctx, f.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, classify(err)
	}
	if info.Size > f.maxObjBytes {
		return nil, apperrors.Wrap(apperrors.CodeTooLarge, "object exceeds fetch size cap", nil)
	}

	buf := bytes.NewBuffer(make([]byte, 0, info.Size))
	if _, err := io.CopyN(buf, obj, info.Size); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeTransientFailure, "read object body", err)
	}
	return buf.Bytes(), nil
}

func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return apperrors.Wrap(apperrors.CodeNotFound, "object not found", err)
	}
	return apperrors.Wrap(apperrors.CodeTransientFailure, "object store request failed", err)
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if idx := strings.Index(raw, "/"); idx >= 0 {
		raw = raw[:idx]
	}
	return raw
}
