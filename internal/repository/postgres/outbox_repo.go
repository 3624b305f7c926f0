package postgres

import (
	"context"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/jobs"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultClaimLease is how long a claimed job may stay in processing before
// another poll treats its worker as dead and claims it again.
const DefaultClaimLease = 10 * time.Minute

type OutboxRepository struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool, lease: DefaultClaimLease}
}

// WithClaimLease overrides DefaultClaimLease.
func (r *OutboxRepository) WithClaimLease(d time.Duration) *OutboxRepository {
	if d > 0 {
		r.lease = d
	}
	return r
}

func (r *OutboxRepository) Enqueue(ctx context.Context, topic string, payload []byte, availableAt time.Time) error {
	q := `INSERT INTO outbox_jobs (topic, payload, status, available_at) VALUES ($1, $2::jsonb, 'pending', $3)`
	_, err := r.pool.Exec(ctx, q, topic, payload, availableAt)
	return err
}

// ClaimPending moves due jobs to processing and bumps their attempt count.
// Jobs left in processing longer than the lease are claimed again.
// SKIP LOCKED lets several workers poll the same table.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int32) ([]jobs.OutboxJob, error) {
	if limit <= 0 {
		limit = 25
	}
	q := `
UPDATE outbox_jobs SET status = 'processing', attempts = attempts + 1, updated_at = NOW()
WHERE id IN (
  SELECT id FROM outbox_jobs
  WHERE (status IN ('pending', 'retry') AND available_at <= NOW())
     OR (status = 'processing' AND updated_at < NOW() - make_interval(secs => $2))
  ORDER BY available_at, id
  LIMIT $1
  FOR UPDATE SKIP LOCKED
)
RETURNING id, topic, payload, status, attempts, last_error, available_at`
	rows, err := r.pool.Query(ctx, q, limit, r.lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]jobs.OutboxJob, 0)
	for rows.Next() {
		var j jobs.OutboxJob
		if err := rows.Scan(&j.ID, &j.Topic, &j.Payload, &j.Status, &j.Attempts, &j.LastError, &j.AvailableAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkDone(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'done', updated_at = NOW() WHERE id = $1`, jobID)
	return err
}

func (r *OutboxRepository) MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE outbox_jobs SET status = 'retry', available_at = $2, last_error = $3, updated_at = NOW()
WHERE id = $1`, jobID, nextAvailableAt, lastError)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_jobs SET status = 'failed', last_error = $2, updated_at = NOW() WHERE id = $1`, jobID, lastError)
	return err
}
