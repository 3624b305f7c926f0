package loan

import (
	"context"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft       Status = "draft"
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusKYCPending  Status = "kyc_pending"
	StatusApproved    Status = "approved"
	StatusDisbursed   Status = "disbursed"
	StatusActive      Status = "active"
	StatusLate        Status = "late"
	StatusDefault     Status = "default"
	StatusRepaid      Status = "repaid"
	StatusRejected    Status = "rejected"
	StatusCancelled   Status = "cancelled"
)

func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	switch s {
	case StatusDraft, StatusPending, StatusUnderReview, StatusKYCPending, StatusApproved,
		StatusDisbursed, StatusActive, StatusLate, StatusDefault, StatusRepaid,
		StatusRejected, StatusCancelled:
		return s, true
	}
	return "", false
}

// Terminal loans accept no further payments or reminders.
func (s Status) Terminal() bool {
	switch s {
	case StatusRepaid, StatusRejected, StatusCancelled, StatusDefault:
		return true
	}
	return false
}

type DurationUnit string

const (
	UnitMonths DurationUnit = "months"
	UnitWeeks  DurationUnit = "weeks"
)

func (u DurationUnit) periodsPerYear() int64 {
	if u == UnitWeeks {
		return 52
	}
	return 12
}

func (u DurationUnit) step(from time.Time, n int) time.Time {
	if u == UnitWeeks {
		return from.AddDate(0, 0, 7*n)
	}
	return from.AddDate(0, n, 0)
}

type InstallmentStatus string

const (
	InstallmentPending       InstallmentStatus = "pending"
	InstallmentPartiallyPaid InstallmentStatus = "partially_paid"
	InstallmentPaid          InstallmentStatus = "paid"
	InstallmentLate          InstallmentStatus = "late"
	InstallmentMissed        InstallmentStatus = "missed"
)

type Installment struct {
	Seq        int               `json:"seq"`
	DueDate    time.Time         `json:"due_date"`
	Amount     decimal.Decimal   `json:"amount"`
	Status     InstallmentStatus `json:"status"`
	PaidAmount decimal.Decimal   `json:"paid_amount"`
	PaidDate   *time.Time        `json:"paid_date"`
}

func (i Installment) Outstanding() decimal.Decimal {
	out := i.Amount.Sub(i.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// KYCRequirement is frozen on the loan when it is applied for.
type KYCRequirement struct {
	LevelRequired       kyc.Level  `json:"level_required"`
	StatusAtApplication kyc.Status `json:"status_at_application"`
	LevelAtApplication  kyc.Level  `json:"level_at_application"`
}

type Entity struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	Amount           decimal.Decimal `json:"loan_amount"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	Duration         int             `json:"duration"`
	DurationUnit     DurationUnit    `json:"duration_unit"`
	RepaymentDate    time.Time       `json:"repayment_date"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	TotalRepayment   decimal.Decimal `json:"total_repayment"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	PaymentsMade     int             `json:"payments_made"`
	NextPaymentDate  *time.Time      `json:"next_payment_date"`
	LastPaymentDate  *time.Time      `json:"last_payment_date"`
	Status           Status          `json:"status"`
	Purpose          string          `json:"purpose,omitempty"`
	KYC              KYCRequirement  `json:"kyc_requirements"`
	ReviewedBy       string          `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty"`
	DisbursedAt      *time.Time      `json:"disbursed_at,omitempty"`
	Repayments       []Installment   `json:"repayments"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionRepayment    TransactionType = "repayment"
	TransactionDisbursement TransactionType = "disbursement"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an immutable ledger row. It is written once, in the same
// database transaction as the loan change it records.
type Transaction struct {
	ID              string            `json:"id"`
	LoanID          string            `json:"loan_id"`
	UserID          string            `json:"user_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Type            TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	TransactionDate time.Time         `json:"transaction_date"`
}

type ListFilter struct {
	UserID string
	Status Status
	Limit  int32
	Offset int32
}

// UpdateFunc edits a locked loan in place and returns ledger rows to insert
// alongside the update. Returning an error aborts both.
type UpdateFunc func(e *Entity) ([]Transaction, error)

type Repository interface {
	Create(ctx context.Context, e *Entity) (*Entity, error)
	GetByID(ctx context.Context, id string) (*Entity, error)
	List(ctx context.Context, f ListFilter) ([]Entity, int64, error)
	Update(ctx context.Context, loanID string, fn UpdateFunc) (*Entity, []Transaction, error)
	// MarkOverdue flags unpaid installments due before now as late and moves
	// running loans that carry one into late. It returns the loans affected.
	MarkOverdue(ctx context.Context, now time.Time) ([]Entity, error)
	Count(ctx context.Context) (int64, error)
}

type TransactionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]Transaction, error)
	SumCompleted(ctx context.Context, t TransactionType) (decimal.Decimal, error)
}
