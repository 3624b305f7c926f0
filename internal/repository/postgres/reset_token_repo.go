package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewResetTokenRepository(pool *pgxpool.Pool) *ResetTokenRepository {
	return &ResetTokenRepository{pool: pool}
}

func (r *ResetTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO password_reset_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
			userID, tokenHash, expiresAt)
		return err
	})
}

// Consume is a single conditional update so two concurrent resets cannot
// both succeed with the same token.
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	q := `
UPDATE password_reset_tokens
SET used_at = $2
WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
RETURNING user_id::text`
	var userID string
	if err := r.pool.QueryRow(ctx, q, tokenHash, now).Scan(&userID); err != nil {
		return "", translate(err, tokenNotFound())
	}
	return userID, nil
}

func (r *ResetTokenRepository) InvalidateForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE password_reset_tokens SET used_at = NOW() WHERE user_id = $1 AND used_at IS NULL`, userID)
	return err
}
