package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"debtster_installments/internal/ports"

	"github.com/minio/minio-go/v7"
)

type Client interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// S3 stores objects in a single bucket.
type S3 struct {
	client Client
	bucket string
}

var _ ports.ObjectStore = (*S3)(nil)

func NewS3(client Client, bucket string) *S3 {
	return &S3{client: client, bucket: bucket}
}

func (s *S3) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ports.Meta, error) {
	if size <= 0 {
		size = -1
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ports.Meta{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	return ports.Meta{
		Source:      "s3",
		ContentType: contentType,
		Size:        info.Size,
		Bucket:      s.bucket,
		Key:         key,
	}, nil
}

func (s *S3) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Path renders the s3:// form the schedule importer accepts.
func Path(m ports.Meta) string {
	return fmt.Sprintf("s3://%s/%s", m.Bucket, m.Key)
}
