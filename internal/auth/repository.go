package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists the token denylist.
type Repository struct {
	db *sql.DB
}

type CleanupResult struct {
	DeletedRevokedTokens int64 `json:"deleted_revoked_tokens"`
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, expires_at, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

func (r *Repository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)
	`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}

	return revoked, nil
}

// CleanupExpiredRevocations drops denylist rows whose token expired more
// than retention ago. Such tokens fail verification on their own.
func (r *Repository) CleanupExpiredRevocations(ctx context.Context, retention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if retention < 0 {
		retention = 0
	}

	cutoff := time.Now().UTC().Add(-retention)

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT jti
			FROM revoked_tokens
			WHERE expires_at < $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM revoked_tokens t
		USING stale
		WHERE t.jti = stale.jti
	`, cutoff, batchSize)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired revoked tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("expired revoked tokens rows affected: %w", err)
	}

	return CleanupResult{DeletedRevokedTokens: affected}, nil
}
