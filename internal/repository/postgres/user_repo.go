package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `
  id::text, first_name, last_name, email, password_hash, phone, address, date_of_birth,
  credit_score, user_type, account_status,
  kyc_status, kyc_level, kyc_verified_at, kyc_rejection_reason, kyc_verification_attempts,
  kyc_last_verification_attempt, kyc_review_due_at, kyc_document_type, kyc_document_number,
  kyc_document_front_url, kyc_document_back_url, kyc_selfie_url, kyc_proof_of_address_url,
  created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Phone, &u.Address, &u.DateOfBirth,
		&u.CreditScore, &u.UserType, &u.AccountStatus,
		&u.KYC.Status, &u.KYC.Level, &u.KYC.VerifiedAt, &u.KYC.RejectionReason, &u.KYC.VerificationAttempts,
		&u.KYC.LastVerificationAttempt, &u.KYC.ReviewDueAt, &u.KYC.DocumentType, &u.KYC.DocumentNumber,
		&u.KYC.DocumentFrontURL, &u.KYC.DocumentBackURL, &u.KYC.SelfieURL, &u.KYC.ProofOfAddressURL,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, in user.CreateInput) (*user.User, error) {
	q := `
INSERT INTO users (first_name, last_name, email, password_hash, phone, address, date_of_birth)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q,
		in.FirstName, in.LastName, user.NormalizeEmail(in.Email), in.PasswordHash, in.Phone, in.Address, in.DateOfBirth,
	))
	if err != nil {
		if apperr.IsKind(translate(err, userNotFound()), apperr.KindConflict) {
			return nil, apperr.Conflict("user_exists", "User already exists")
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, translate(err, userNotFound())
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	q := `SELECT` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(r.pool.QueryRow(ctx, q, user.NormalizeEmail(email)))
	if err != nil {
		return nil, translate(err, userNotFound())
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, f user.ListFilter) ([]user.User, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return translate(err, userNotFound())
	}
	if tag.RowsAffected() == 0 {
		return userNotFound()
	}
	return nil
}

func (r *UserRepository) SetRole(ctx context.Context, userID string, role user.Role) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET user_type = $2, updated_at = NOW() WHERE id = $1`, userID, string(role))
	if err != nil {
		return translate(err, userNotFound())
	}
	if tag.RowsAffected() == 0 {
		return userNotFound()
	}
	return nil
}

// writeMirror rewrites the user's KYC columns and any profile fields the
// case confirmed. It runs inside the caller's transaction.
func writeMirror(ctx context.Context, tx pgx.Tx, userID string, m user.KYCMirror, p user.ProfileUpdate) error {
	q := `
UPDATE users SET
  kyc_status = $2,
  kyc_level = $3,
  kyc_verified_at = $4,
  kyc_rejection_reason = $5,
  kyc_verification_attempts = $6,
  kyc_last_verification_attempt = $7,
  kyc_review_due_at = $8,
  kyc_document_type = $9,
  kyc_document_number = $10,
  kyc_document_front_url = $11,
  kyc_document_back_url = $12,
  kyc_selfie_url = $13,
  kyc_proof_of_address_url = $14,
  phone = COALESCE(NULLIF($15, ''), phone),
  address = COALESCE(NULLIF($16, ''), address),
  date_of_birth = COALESCE($17::date, date_of_birth),
  updated_at = NOW()
WHERE id = $1`
	var dob *time.Time
	if p.DateOfBirth != nil {
		d := p.DateOfBirth.UTC()
		dob = &d
	}
	_, err := tx.Exec(ctx, q, userID,
		string(m.Status), string(m.Level), m.VerifiedAt, m.RejectionReason, m.VerificationAttempts,
		m.LastVerificationAttempt, m.ReviewDueAt, m.DocumentType, m.DocumentNumber,
		m.DocumentFrontURL, m.DocumentBackURL, m.SelfieURL, m.ProofOfAddressURL,
		strings.TrimSpace(p.Phone), strings.TrimSpace(p.Address), dob,
	)
	return err
}
