package objectstore

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

type fakeMinio struct {
	gotSize int64
	gotBody string
	err     error
}

func (f *fakeMinio) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	b, _ := io.ReadAll(r)
	f.gotSize = size
	f.gotBody = string(b)
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(b))}, nil
}

func (f *fakeMinio) PresignedGetObject(ctx context.Context, bucket, key string, expires time.Duration, _ url.Values) (*url.URL, error) {
	return url.Parse("https://s3.local/" + bucket + "/" + key + "?X-Amz-Expires=" + expires.String())
}

func TestPutAndPath(t *testing.T) {
	fm := &fakeMinio{}
	s := NewS3(fm, "exports")
	meta, err := s.Put(context.Background(), "ledgers/a.xlsx", strings.NewReader("xlsx"), 0, "application/octet-stream")
	if err != nil {
		t.Fatal(err)
	}
	if fm.gotSize != -1 || fm.gotBody != "xlsx" || meta.Size != 4 {
		t.Fatalf("unexpected put size=%d body=%q meta=%+v", fm.gotSize, fm.gotBody, meta)
	}
	if got := Path(meta); got != "s3://exports/ledgers/a.xlsx" {
		t.Fatalf("unexpected path %q", got)
	}
	u, err := s.PresignGet(context.Background(), meta.Key, time.Hour)
	if err != nil || !strings.HasPrefix(u, "https://s3.local/exports/ledgers/a.xlsx") {
		t.Fatalf("unexpected url %q err=%v", u, err)
	}
}

func TestPutError(t *testing.T) {
	s := NewS3(&fakeMinio{err: errors.New("denied")}, "exports")
	if _, err := s.Put(context.Background(), "k", strings.NewReader(""), 0, ""); err == nil {
		t.Fatalf("expected error")
	}
}
