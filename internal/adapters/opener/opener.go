// Package opener resolves schedule file paths to readable streams.
package opener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"debtster_installments/internal/ports"

	"github.com/minio/minio-go/v7"
)

var (
	ErrNoSource       = errors.New("no source configured for path")
	ErrHostNotAllowed = errors.New("host is not in the import allow-list")
)

type S3Client interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// Opener reads http(s) urls with HTTP, s3:// urls from their bucket and bare
// keys from the default bucket. A nil HTTP or S3 client disables that source.
// http(s) urls, redirects included, must point at an allowed host: an exact
// name, or a suffix when the entry starts with a dot.
type Opener struct {
	HTTP          *http.Client
	S3            S3Client
	DefaultBucket string
	AllowedHosts  []string
	Logger        *log.Logger
}

var _ ports.FileOpener = (*Opener)(nil)

func New(httpClient *http.Client, s3c S3Client, bucket string, hosts []string, logger *log.Logger) *Opener {
	if logger == nil {
		logger = log.Default()
	}
	return &Opener{HTTP: httpClient, S3: s3c, DefaultBucket: bucket, AllowedHosts: hosts, Logger: logger}
}

func (o *Opener) hostAllowed(u *url.URL) bool {
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return false
	}
	for _, h := range o.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "."):
			if strings.HasSuffix(host, h) {
				return true
			}
		case host == h:
			return true
		}
	}
	return false
}

func (o *Opener) Open(ctx context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	fp := strings.TrimSpace(filePath)

	switch {
	case strings.HasPrefix(fp, "http://") || strings.HasPrefix(fp, "https://"):
		if o.HTTP == nil {
			return nil, ports.Meta{}, fmt.Errorf("%w: http", ErrNoSource)
		}
		return o.openHTTP(ctx, fp)
	case strings.HasPrefix(fp, "s3://"):
		bucket, key, err := ParseS3URL(fp)
		if err != nil {
			return nil, ports.Meta{}, err
		}
		return o.openS3(ctx, bucket, key)
	default:
		if o.DefaultBucket == "" {
			return nil, ports.Meta{}, errors.New("missing bucket: pass s3://bucket/key or an http(s) url")
		}
		return o.openS3(ctx, o.DefaultBucket, strings.TrimPrefix(fp, "/"))
	}
}

func (o *Opener) openHTTP(ctx context.Context, u string) (io.ReadCloser, ports.Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, ports.Meta{}, err
	}
	if !o.hostAllowed(req.URL) {
		o.Logger.Printf("[OPEN][HTTP][DENY] url=%q", u)
		return nil, ports.Meta{}, fmt.Errorf("%w: %s", ErrHostNotAllowed, req.URL.Hostname())
	}

	client := *o.HTTP
	next := client.CheckRedirect
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if !o.hostAllowed(r.URL) {
			o.Logger.Printf("[OPEN][HTTP][DENY] redirect=%q", r.URL.String())
			return fmt.Errorf("%w: %s", ErrHostNotAllowed, r.URL.Hostname())
		}
		if next != nil {
			return next(r, via)
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		o.Logger.Printf("[OPEN][HTTP][ERR] url=%q err=%v", u, err)
		return nil, ports.Meta{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		o.Logger.Printf("[OPEN][HTTP][ERR] url=%q status=%d", u, resp.StatusCode)
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	return resp.Body, ports.Meta{
		Source:      "https",
		ContentType: resp.Header.Get("Content-Type"),
		Size:        size,
		Key:         path.Base(resp.Request.URL.Path),
	}, nil
}

func (o *Opener) openS3(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error) {
	if o.S3 == nil {
		return nil, ports.Meta{}, fmt.Errorf("%w: s3", ErrNoSource)
	}
	st, err := o.S3.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		o.Logger.Printf("[OPEN][S3][ERR] bucket=%q key=%q stat: %v", bucket, key, err)
		return nil, ports.Meta{}, fmt.Errorf("s3 stat: %w", err)
	}
	obj, err := o.S3.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		o.Logger.Printf("[OPEN][S3][ERR] bucket=%q key=%q get: %v", bucket, key, err)
		return nil, ports.Meta{}, fmt.Errorf("s3 get: %w", err)
	}
	return obj, ports.Meta{
		Source:      "s3",
		ContentType: st.ContentType,
		Size:        st.Size,
		Bucket:      bucket,
		Key:         key,
	}, nil
}

func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", errors.New("scheme must be s3")
	}
	bucket = u.Host
	key = path.Clean(strings.TrimPrefix(u.Path, "/"))
	if bucket == "" || key == "" || key == "." || key == "/" {
		return "", "", errors.New("empty bucket or key")
	}
	return bucket, key, nil
}
