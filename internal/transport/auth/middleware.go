package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"debtster_installments/internal/ports"
	"debtster_installments/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

var ErrNoUser = errors.New("userID not found in context")

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error)
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// SanctumMiddleware resolves a personal access token from the Authorization header,
// falling back to the token query parameter used by download links.
func SanctumMiddleware(tokenRepo TokenRepo, logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var pat *repository.PersonalAccessToken
			candidates := []struct{ source, token string }{
				{"header", bearer(r)},
				{"query", r.URL.Query().Get("token")},
			}
			for _, c := range candidates {
				if c.token == "" {
					continue
				}
				p, err := tokenRepo.FindTokenByPlainToken(r.Context(), c.token)
				if err != nil {
					logger.Printf("[AUTH] token lookup (%s): %v", c.source, err)
					continue
				}
				pat = p
				break
			}

			if pat == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			uid := strconv.FormatInt(pat.UserID, 10)
			ctx := context.WithValue(r.Context(), UserIDKey, uid)
			ctx = context.WithValue(ctx, ports.CtxActorID, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (string, error) {
	v, ok := ctx.Value(UserIDKey).(string)
	if !ok || v == "" {
		return "", ErrNoUser
	}
	return v, nil
}
