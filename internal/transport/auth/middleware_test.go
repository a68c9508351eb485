package auth

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"debtster_installments/internal/ports"
	"debtster_installments/internal/repository"
)

type fakeRepo struct {
	tokens map[string]*repository.PersonalAccessToken
	seen   []string
}

func (f *fakeRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	f.seen = append(f.seen, plainToken)
	if t, ok := f.tokens[plainToken]; ok {
		return t, nil
	}
	return nil, repository.ErrTokenNotFound
}

var quiet = log.New(io.Discard, "", 0)

func TestSanctumMiddleware_setsUserAndActor(t *testing.T) {
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{"mytoken": {ID: 1, UserID: 123}}}

	var uid, actor string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		uid, err = GetUserID(r.Context())
		if err != nil {
			t.Fatalf("expected user id present, got err: %v", err)
		}
		actor = ports.ActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	srv := SanctumMiddleware(fr, quiet)(handler)

	req := httptest.NewRequest(http.MethodPost, "/contracts/1/installments", nil)
	req.Header.Set("Authorization", "Bearer mytoken")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if uid != "123" || actor != "123" {
		t.Fatalf("expected 123/123, got %q/%q", uid, actor)
	}
}

func TestSanctumMiddleware_queryFallback(t *testing.T) {
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{"q": {ID: 2, UserID: 9}}}
	srv := SanctumMiddleware(fr, quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/contracts/1/ledger?token=q", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if len(fr.seen) != 2 || fr.seen[0] != "wrong" || fr.seen[1] != "q" {
		t.Fatalf("expected header then query lookup, got %v", fr.seen)
	}
}

func TestSanctumMiddleware_blockWhenMissing(t *testing.T) {
	fr := &fakeRepo{}
	srv := SanctumMiddleware(fr, quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with missing token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/uploads", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 Unauthorized, got %d", rr.Code)
	}
}

func TestSanctumMiddleware_expired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{"old": {ID: 3, UserID: 1, ExpiresAt: &past}}}
	srv := SanctumMiddleware(fr, quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/contracts/1/ledger", nil)
	req.Header.Set("Authorization", "Bearer old")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestSanctumMiddleware_allowsOptions(t *testing.T) {
	reached := false
	srv := SanctumMiddleware(&fakeRepo{}, quiet)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/uploads", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent || !reached {
		t.Fatalf("expected handler reached with 204, got %d", rr.Code)
	}
}

func TestGetUserIDMissing(t *testing.T) {
	if _, err := GetUserID(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
}
