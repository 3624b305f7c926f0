package postgres

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const loanColumns = `
  id::text, user_id::text, loan_amount, interest_rate, duration, duration_unit, repayment_date,
  payment_amount, total_repayment, total_interest, total_paid, remaining_balance,
  payments_made, next_payment_date, last_payment_date, status, purpose,
  kyc_level_required, kyc_status_at_application, kyc_level_at_application,
  COALESCE(reviewed_by::text, ''), reviewed_at, disbursed_at, created_at, updated_at`

type LoanRepository struct {
	pool *pgxpool.Pool
}

func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLoan(row pgx.Row) (*loan.Entity, error) {
	e := &loan.Entity{}
	err := row.Scan(
		&e.ID, &e.UserID, &e.Amount, &e.InterestRate, &e.Duration, &e.DurationUnit, &e.RepaymentDate,
		&e.PaymentAmount, &e.TotalRepayment, &e.TotalInterest, &e.TotalPaid, &e.RemainingBalance,
		&e.PaymentsMade, &e.NextPaymentDate, &e.LastPaymentDate, &e.Status, &e.Purpose,
		&e.KYC.LevelRequired, &e.KYC.StatusAtApplication, &e.KYC.LevelAtApplication,
		&e.ReviewedBy, &e.ReviewedAt, &e.DisbursedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *LoanRepository) Create(ctx context.Context, in *loan.Entity) (*loan.Entity, error) {
	var out *loan.Entity
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		q := `
INSERT INTO loans (
  user_id, loan_amount, interest_rate, duration, duration_unit, repayment_date,
  payment_amount, total_repayment, total_interest, total_paid, remaining_balance,
  payments_made, next_payment_date, status, purpose,
  kyc_level_required, kyc_status_at_application, kyc_level_at_application
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
RETURNING` + loanColumns
		e, err := scanLoan(tx.QueryRow(ctx, q,
			in.UserID, in.Amount, in.InterestRate, in.Duration, string(in.DurationUnit), in.RepaymentDate,
			in.PaymentAmount, in.TotalRepayment, in.TotalInterest, in.TotalPaid, in.RemainingBalance,
			in.PaymentsMade, in.NextPaymentDate, string(in.Status), in.Purpose,
			string(in.KYC.LevelRequired), string(in.KYC.StatusAtApplication), string(in.KYC.LevelAtApplication),
		))
		if err != nil {
			return translate(err, userNotFound())
		}

		batch := &pgx.Batch{}
		for _, inst := range in.Repayments {
			batch.Queue(`
INSERT INTO loan_repayments (loan_id, seq, due_date, amount, status, paid_amount, paid_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				e.ID, inst.Seq, inst.DueDate, inst.Amount, string(inst.Status), inst.PaidAmount, inst.PaidDate)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		e.Repayments = append([]loan.Installment(nil), in.Repayments...)
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id string) (*loan.Entity, error) {
	e, err := scanLoan(r.pool.QueryRow(ctx, `SELECT`+loanColumns+` FROM loans WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, loanNotFound())
	}
	if e.Repayments, err = loadInstallments(ctx, r.pool, e.ID); err != nil {
		return nil, err
	}
	return e, nil
}

func loadInstallments(ctx context.Context, q querier, loanID string) ([]loan.Installment, error) {
	rows, err := q.Query(ctx, `
SELECT seq, due_date, amount, status, paid_amount, paid_date
FROM loan_repayments WHERE loan_id = $1 ORDER BY seq`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]loan.Installment, 0)
	for rows.Next() {
		var i loan.Installment
		if err := rows.Scan(&i.Seq, &i.DueDate, &i.Amount, &i.Status, &i.PaidAmount, &i.PaidDate); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (r *LoanRepository) List(ctx context.Context, f loan.ListFilter) ([]loan.Entity, int64, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := strings.Builder{}
	where.WriteString(" WHERE 1=1")
	args := []any{}
	argPos := 1
	if strings.TrimSpace(f.UserID) != "" {
		where.WriteString(" AND user_id = $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, f.UserID)
		argPos++
	}
	if f.Status != "" {
		where.WriteString(" AND status = $")
		where.WriteString(strconv.Itoa(argPos))
		args = append(args, string(f.Status))
		argPos++
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loans`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT` + loanColumns + ` FROM loans` + where.String() +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(argPos) + " OFFSET $" + strconv.Itoa(argPos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	out := make([]loan.Entity, 0)
	for rows.Next() {
		e, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, *e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		if out[i].Repayments, err = loadInstallments(ctx, r.pool, out[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// Update locks the loan row, hands it to fn and writes the loan, its
// schedule and any ledger rows fn returned in one transaction.
func (r *LoanRepository) Update(ctx context.Context, loanID string, fn loan.UpdateFunc) (*loan.Entity, []loan.Transaction, error) {
	var out *loan.Entity
	var written []loan.Transaction

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		e, err := scanLoan(tx.QueryRow(ctx, `SELECT`+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, loanID))
		if err != nil {
			return translate(err, loanNotFound())
		}
		if e.Repayments, err = loadInstallments(ctx, tx, e.ID); err != nil {
			return err
		}

		txs, err := fn(e)
		if err != nil {
			return err
		}

		q := `
UPDATE loans SET
  total_paid = $2, remaining_balance = $3, payments_made = $4,
  next_payment_date = $5, last_payment_date = $6, status = $7,
  reviewed_by = NULLIF($8, '')::uuid, reviewed_at = $9, disbursed_at = $10,
  updated_at = NOW()
WHERE id = $1
RETURNING updated_at`
		if err := tx.QueryRow(ctx, q, e.ID,
			e.TotalPaid, e.RemainingBalance, e.PaymentsMade,
			e.NextPaymentDate, e.LastPaymentDate, string(e.Status),
			e.ReviewedBy, e.ReviewedAt, e.DisbursedAt,
		).Scan(&e.UpdatedAt); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, inst := range e.Repayments {
			batch.Queue(`
UPDATE loan_repayments SET status = $3, paid_amount = $4, paid_date = $5
WHERE loan_id = $1 AND seq = $2`,
				e.ID, inst.Seq, string(inst.Status), inst.PaidAmount, inst.PaidDate)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		for _, t := range txs {
			if !t.Amount.IsPositive() {
				continue
			}
			err := tx.QueryRow(ctx, `
INSERT INTO transactions (loan_id, user_id, amount, transaction_type, status, transaction_date)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text`,
				e.ID, e.UserID, t.Amount, string(t.Type), string(t.Status), t.TransactionDate,
			).Scan(&t.ID)
			if err != nil {
				return err
			}
			t.LoanID, t.UserID = e.ID, e.UserID
			written = append(written, t)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, written, nil
}

func (r *LoanRepository) MarkOverdue(ctx context.Context, now time.Time) ([]loan.Entity, error) {
	out := make([]loan.Entity, 0)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
UPDATE loan_repayments lr SET status = 'late'
FROM loans l
WHERE lr.loan_id = l.id
  AND lr.status IN ('pending', 'partially_paid')
  AND lr.due_date < $1
  AND l.status IN ('active', 'disbursed', 'late')`, now)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
UPDATE loans SET status = 'late', updated_at = NOW()
WHERE status IN ('active', 'disbursed')
  AND EXISTS (SELECT 1 FROM loan_repayments lr WHERE lr.loan_id = loans.id AND lr.status = 'late')
RETURNING`+loanColumns)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanLoan(rows)
			if err != nil {
				return err
			}
			out = append(out, *e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loans`).Scan(&n)
	return n, err
}

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]loan.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, loan_id::text, user_id::text, amount, transaction_type, status, transaction_date
FROM transactions WHERE user_id = $1
ORDER BY transaction_date DESC`, userID)
	if err != nil {
		return nil, translate(err, userNotFound())
	}
	defer rows.Close()

	out := make([]loan.Transaction, 0)
	for rows.Next() {
		var t loan.Transaction
		if err := rows.Scan(&t.ID, &t.LoanID, &t.UserID, &t.Amount, &t.Type, &t.Status, &t.TransactionDate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) SumCompleted(ctx context.Context, t loan.TransactionType) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(amount), 0) FROM transactions
WHERE transaction_type = $1 AND status = 'completed'`, string(t)).Scan(&sum)
	return sum, err
}
