package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debtster_installments/internal/handlers"
	"debtster_installments/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func denyAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func TestRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveSubmission("success")

	h := handlers.New(handlers.Deps{
		Check:  func(context.Context) error { return nil },
		Logger: log.New(io.Discard, "", 0),
	})
	srv := httptest.NewServer(Routes(h, denyAll, reg))
	defer srv.Close()

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}

	if resp, _ := get("/health"); resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}

	resp, body := get("/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "installments_submissions_total") {
		t.Fatalf("metrics: unexpected %d %q", resp.StatusCode, body)
	}

	if resp, _ := get("/contracts/1/ledger"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("api: expected 401, got %d", resp.StatusCode)
	}
}
