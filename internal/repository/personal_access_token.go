package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"debtster_installments/internal/config/connections/postgres"

	"github.com/jackc/pgx/v5"
)

var (
	ErrEmptyToken    = errors.New("empty token")
	ErrTokenNotFound = errors.New("token not found")
)

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

const userTokenableType = "App\\Infrastructure\\Persistence\\Models\\User"

// PlainToken is a Sanctum token split into its optional id prefix and secret part.
type PlainToken struct {
	ID     *int64
	Secret string
	Hash   string
}

// ParsePlainToken splits "<id>|<secret>"; a token without a numeric prefix is all secret.
func ParsePlainToken(raw string) (PlainToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PlainToken{}, ErrEmptyToken
	}

	pt := PlainToken{Secret: raw}
	if idx := strings.Index(raw, "|"); idx > 0 {
		if id, err := strconv.ParseInt(raw[:idx], 10, 64); err == nil {
			pt.ID = &id
		}
		pt.Secret = raw[idx+1:]
	}

	sum := sha256.Sum256([]byte(pt.Secret))
	pt.Hash = hex.EncodeToString(sum[:])
	return pt, nil
}

func (pt PlainToken) Matches(stored string) bool {
	return stored == pt.Hash || stored == pt.Secret
}

type PersonalAccessTokenRepository struct {
	pg     *postgres.Postgres
	logger *log.Logger
}

func NewPersonalAccessTokenRepository(pg *postgres.Postgres, logger *log.Logger) *PersonalAccessTokenRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &PersonalAccessTokenRepository{pg: pg, logger: logger}
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*PersonalAccessToken, error) {
	pt, err := ParsePlainToken(plainToken)
	if err != nil {
		return nil, err
	}

	var pat PersonalAccessToken
	now := time.Now()

	if pt.ID != nil {
		const byID = `
            SELECT id, token, tokenable_id, abilities, expires_at
            FROM personal_access_tokens
            WHERE id = $1
              AND tokenable_type = $2
              AND (expires_at IS NULL OR expires_at > $3)
        `
		err := r.pg.Pool.QueryRow(ctx, byID, *pt.ID, userTokenableType, now).Scan(
			&pat.ID, &pat.TokenHash, &pat.UserID, &pat.Abilities, &pat.ExpiresAt,
		)
		switch {
		case err == nil && pt.Matches(pat.TokenHash):
			return &pat, nil
		case err == nil:
			r.logger.Printf("[TOKEN] secret mismatch for id=%d", pat.ID)
		case !errors.Is(err, pgx.ErrNoRows):
			r.logger.Printf("[TOKEN][ERR] query by id=%d: %v", *pt.ID, err)
		}
	}

	const byValue = `
        SELECT id, token, tokenable_id, abilities, expires_at
        FROM personal_access_tokens
        WHERE tokenable_type = $1
          AND token IN ($2, $3)
          AND (expires_at IS NULL OR expires_at > $4)
        ORDER BY created_at DESC
        LIMIT 1
    `
	err = r.pg.Pool.QueryRow(ctx, byValue, userTokenableType, pt.Hash, pt.Secret, now).Scan(
		&pat.ID, &pat.TokenHash, &pat.UserID, &pat.Abilities, &pat.ExpiresAt,
	)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("[TOKEN][ERR] query by value: %v", err)
		}
		return nil, ErrTokenNotFound
	}

	return &pat, nil
}
