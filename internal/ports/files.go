package ports

import (
	"context"
	"io"
	"time"
)

// Meta describes where a schedule file was read from.
type Meta struct {
	Source      string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

// FileOpener resolves a schedule file path (http(s) url, s3:// url or bare key).
type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}

// ObjectStore keeps uploaded schedules and generated ledger exports.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Meta, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
