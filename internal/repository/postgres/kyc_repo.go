package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kycColumns = `
  c.id::text, c.user_id::text, c.status, c.level, c.personal_info, c.id_verification,
  c.address_verification, c.financial_info, c.biometric_verification,
  c.submitted_at, c.verified_at, COALESCE(c.reviewed_by::text, ''), c.review_notes,
  c.rejection_reason, c.next_review_at, c.created_at, c.updated_at,
  u.first_name, u.last_name, u.email`

const kycFrom = ` FROM kyc_cases c JOIN users u ON u.id = c.user_id`

// TransitionObserver is told about every history row committed by Mutate.
type TransitionObserver func(action kyc.Action, status kyc.Status)

type KYCRepository struct {
	pool     *pgxpool.Pool
	observer TransitionObserver
}

func NewKYCRepository(pool *pgxpool.Pool, observer TransitionObserver) *KYCRepository {
	return &KYCRepository{pool: pool, observer: observer}
}

func scanCase(row pgx.Row) (*kyc.Case, error) {
	c := &kyc.Case{}
	var first, last, email string
	err := row.Scan(
		&c.ID, &c.UserID, &c.Status, &c.Level, &c.PersonalInfo, &c.IDVerification,
		&c.AddressVerification, &c.FinancialInfo, &c.BiometricVerification,
		&c.SubmittedAt, &c.VerifiedAt, &c.ReviewedBy, &c.ReviewNotes,
		&c.RejectionReason, &c.NextReviewAt, &c.CreatedAt, &c.UpdatedAt,
		&first, &last, &email,
	)
	if err != nil {
		return nil, err
	}
	c.Applicant = &kyc.Applicant{
		UserID:   c.UserID,
		FullName: strings.TrimSpace(first + " " + last),
		Email:    email,
	}
	if c.IDVerification.DocumentImages == nil {
		c.IDVerification.DocumentImages = []string{}
	}
	return c, nil
}

func (r *KYCRepository) Mutate(ctx context.Context, userID string, fn kyc.MutateFunc) (*kyc.Case, error) {
	return r.mutate(ctx, func(tx pgx.Tx) (*kyc.Case, error) {
		if _, err := tx.Exec(ctx, `INSERT INTO kyc_cases (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, userNotFound()
			}
			return nil, translate(err, userNotFound())
		}
		return scanCase(tx.QueryRow(ctx, `SELECT`+kycColumns+kycFrom+` WHERE c.user_id = $1 FOR UPDATE OF c`, userID))
	}, fn)
}

func (r *KYCRepository) MutateByID(ctx context.Context, caseID string, fn kyc.MutateFunc) (*kyc.Case, error) {
	return r.mutate(ctx, func(tx pgx.Tx) (*kyc.Case, error) {
		return scanCase(tx.QueryRow(ctx, `SELECT`+kycColumns+kycFrom+` WHERE c.id = $1 FOR UPDATE OF c`, caseID))
	}, fn)
}

func (r *KYCRepository) mutate(ctx context.Context, lock func(pgx.Tx) (*kyc.Case, error), fn kyc.MutateFunc) (*kyc.Case, error) {
	var out *kyc.Case
	var added []kyc.HistoryEntry

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := lock(tx)
		if err != nil {
			return translate(err, kycNotFound())
		}
		history, err := loadHistory(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		c.History = history
		seen := len(history)

		if err := fn(c); err != nil {
			return err
		}

		q := `
UPDATE kyc_cases SET
  status = $2, level = $3, personal_info = $4, id_verification = $5,
  address_verification = $6, financial_info = $7, biometric_verification = $8,
  submitted_at = $9, verified_at = $10, reviewed_by = NULLIF($11, '')::uuid,
  review_notes = $12, rejection_reason = $13, next_review_at = $14,
  version = version + 1, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`
		if err := tx.QueryRow(ctx, q, c.ID,
			string(c.Status), string(c.Level), c.PersonalInfo, c.IDVerification,
			c.AddressVerification, c.FinancialInfo, c.BiometricVerification,
			c.SubmittedAt, c.VerifiedAt, c.ReviewedBy,
			c.ReviewNotes, c.RejectionReason, c.NextReviewAt,
		).Scan(&c.UpdatedAt); err != nil {
			return err
		}

		added = c.History[seen:]
		for _, h := range added {
			_, err := tx.Exec(ctx, `
INSERT INTO kyc_history (case_id, action, status, level, performed_by, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				c.ID, string(h.Action), string(h.Status), string(h.Level), h.PerformedBy, h.Notes, h.CreatedAt)
			if err != nil {
				return err
			}
		}

		if err := writeMirror(ctx, tx, c.UserID, user.MirrorFromCase(c), user.ProfileFromCase(c)); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.observer != nil {
		for _, h := range added {
			r.observer(h.Action, h.Status)
		}
	}
	return out, nil
}

func loadHistory(ctx context.Context, q querier, caseID string) ([]kyc.HistoryEntry, error) {
	rows, err := q.Query(ctx, `
SELECT action, status, level, performed_by, notes, created_at
FROM kyc_history WHERE case_id = $1 ORDER BY id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]kyc.HistoryEntry, 0)
	for rows.Next() {
		var h kyc.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Status, &h.Level, &h.PerformedBy, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *KYCRepository) GetByUserID(ctx context.Context, userID string) (*kyc.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, `SELECT`+kycColumns+kycFrom+` WHERE c.user_id = $1`, userID))
	if err != nil {
		return nil, translate(err, kycNotFound())
	}
	return c, nil
}

func (r *KYCRepository) GetByID(ctx context.Context, caseID string) (*kyc.Case, error) {
	c, err := scanCase(r.pool.QueryRow(ctx, `SELECT`+kycColumns+kycFrom+` WHERE c.id = $1`, caseID))
	if err != nil {
		return nil, translate(err, kycNotFound())
	}
	if c.History, err = loadHistory(ctx, r.pool, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *KYCRepository) List(ctx context.Context, f kyc.ListFilter) ([]kyc.Case, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []any{}
	argPos := 1
	asOf := f.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	switch f.Status {
	case "":
	case kyc.StatusExpired:
		where.WriteString(" AND c.status = 'verified' AND c.next_review_at <= $" + strconv.Itoa(argPos))
		args = append(args, asOf)
		argPos++
	case kyc.StatusVerified:
		where.WriteString(" AND c.status = 'verified' AND (c.next_review_at IS NULL OR c.next_review_at > $" + strconv.Itoa(argPos) + ")")
		args = append(args, asOf)
		argPos++
	default:
		where.WriteString(" AND c.status = $" + strconv.Itoa(argPos))
		args = append(args, string(f.Status))
		argPos++
	}
	if f.Level != "" {
		where.WriteString(" AND c.level = $" + strconv.Itoa(argPos))
		args = append(args, string(f.Level))
		argPos++
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := "$" + strconv.Itoa(argPos)
		where.WriteString(" AND (u.email ILIKE " + p + " OR u.first_name ILIKE " + p + " OR u.last_name ILIKE " + p + ")")
		args = append(args, "%"+s+"%")
		argPos++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+kycFrom+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT` + kycColumns + kycFrom + where.String() +
		" ORDER BY c.submitted_at DESC NULLS LAST, c.created_at DESC" +
		" LIMIT $" + strconv.Itoa(argPos) + " OFFSET $" + strconv.Itoa(argPos+1)
	args = append(args, f.Limit, f.Offset)

	out, err := r.collect(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *KYCRepository) ListForExport(ctx context.Context, f kyc.ExportFilter) ([]kyc.Case, error) {
	q := `SELECT` + kycColumns + kycFrom + `
WHERE ($1::timestamptz IS NULL OR c.created_at >= $1)
  AND ($2::timestamptz IS NULL OR c.created_at <= $2)
ORDER BY c.created_at`
	return r.collect(ctx, q, f.From, f.To)
}

func (r *KYCRepository) collect(ctx context.Context, q string, args ...any) ([]kyc.Case, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]kyc.Case, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
