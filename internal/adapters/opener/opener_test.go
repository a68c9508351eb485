package opener

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
)

func TestParseS3URL(t *testing.T) {
	b, k, err := ParseS3URL("s3://schedules/uploads/a.csv")
	if err != nil || b != "schedules" || k != "uploads/a.csv" {
		t.Fatalf("got bucket=%q key=%q err=%v", b, k, err)
	}
	if _, _, err := ParseS3URL("s3://schedules/"); err == nil {
		t.Fatalf("expected empty key error")
	}
	if _, _, err := ParseS3URL("http://x/y"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "amount,due_date\n")
	}))
	defer srv.Close()

	o := New(srv.Client(), nil, "", []string{"127.0.0.1"}, log.New(io.Discard, "", 0))
	rc, meta, err := o.Open(context.Background(), srv.URL+"/plan.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if meta.Source != "https" || meta.ContentType != "text/csv" || meta.Key != "plan.csv" {
		t.Fatalf("unexpected meta %+v", meta)
	}

	if _, _, err := o.Open(context.Background(), srv.URL+"/missing.csv"); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestOpenHTTPRejectsUnlistedHosts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/hop" {
			u, _ := url.Parse("http://" + r.Host)
			http.Redirect(w, r, "http://localhost:"+u.Port()+"/plan.csv", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "amount,due_date\n")
	}))
	defer srv.Close()
	logger := log.New(io.Discard, "", 0)

	closed := New(srv.Client(), nil, "", nil, logger)
	if _, _, err := closed.Open(context.Background(), srv.URL+"/plan.csv"); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("expected ErrHostNotAllowed with an empty list, got %v", err)
	}
	if _, _, err := closed.Open(context.Background(), "http://169.254.169.254/latest/meta-data/"); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("expected ErrHostNotAllowed for metadata address, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("denied urls must not be fetched, got %d requests", hits.Load())
	}

	o := New(srv.Client(), nil, "", []string{"127.0.0.1"}, logger)
	if _, _, err := o.Open(context.Background(), srv.URL+"/hop"); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("expected redirect to an unlisted host to fail, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected only the redirecting request, got %d", hits.Load())
	}
}

func TestHostAllowed(t *testing.T) {
	o := &Opener{AllowedHosts: []string{"Files.Example.com", ".cdn.example.com", " "}}
	cases := map[string]bool{
		"https://files.example.com/a.csv":      true,
		"https://FILES.example.com:8443/a.csv": true,
		"https://eu.cdn.example.com/a.csv":     true,
		"https://cdn.example.com/a.csv":        false,
		"https://evilcdn.example.com/a.csv":    false,
		"https://files.example.com.evil/a.csv": false,
		"https://example.com/a.csv":            false,
	}
	for raw, want := range cases {
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := o.hostAllowed(u); got != want {
			t.Fatalf("%s: got %t, want %t", raw, got, want)
		}
	}
}

func TestOpenWithoutSources(t *testing.T) {
	o := New(nil, nil, "bucket", nil, log.New(io.Discard, "", 0))
	if _, _, err := o.Open(context.Background(), "https://example.com/a.csv"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource for http, got %v", err)
	}
	if _, _, err := o.Open(context.Background(), "uploads/a.csv"); !errors.Is(err, ErrNoSource) {
		t.Fatalf("expected ErrNoSource for s3, got %v", err)
	}
}
