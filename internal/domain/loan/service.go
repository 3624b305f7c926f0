package loan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicRepaymentReminder = "repayment_reminder"

	EventStatusChanged  = "loan_status_changed"
	EventPaymentApplied = "loan_payment_applied"

	maxDuration = 60
)

var maxAmount = decimal.NewFromInt(50000)

// Limits reports the bounds Apply enforces.
func Limits() (amount decimal.Decimal, duration int, units []string) {
	return maxAmount, maxDuration, []string{string(UnitMonths), string(UnitWeeks)}
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, topic string, payload []byte, availableAt time.Time) error
}

type Notifier interface {
	NotifyUser(userID, event string, data any)
}

type Options struct {
	ReminderLead   time.Duration
	MinCreditScore int
}

type Service struct {
	loanRepo   Repository
	userRepo   UserReader
	outboxRepo OutboxRepository
	notifier   Notifier
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

func NewService(loanRepo Repository, userRepo UserReader, outboxRepo OutboxRepository, notifier Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = 24 * time.Hour
	}
	if opts.MinCreditScore <= 0 {
		opts.MinCreditScore = 600
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loanRepo:   loanRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		notifier:   notifier,
		logger:     logger,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type ApplyInput struct {
	Amount        decimal.Decimal `json:"loan_amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Duration      int             `json:"duration"`
	DurationUnit  string          `json:"duration_unit"`
	RepaymentDate string          `json:"repayment_date"`
	Purpose       string          `json:"purpose"`
}

func (in ApplyInput) validate() (DurationUnit, time.Time, error) {
	if !in.Amount.IsPositive() || in.Amount.GreaterThan(maxAmount) {
		return "", time.Time{}, apperr.Validation("invalid_amount", "Loan amount must be greater than 0 and at most 50000")
	}
	if in.InterestRate.IsNegative() || in.InterestRate.GreaterThan(hundred) {
		return "", time.Time{}, apperr.Validation("invalid_interest_rate", "Interest rate must be between 0 and 100")
	}
	if in.Duration <= 0 || in.Duration > maxDuration {
		return "", time.Time{}, apperr.Validation("invalid_duration", "Duration must be between 1 and 60 periods")
	}
	unit := UnitMonths
	switch strings.ToLower(strings.TrimSpace(in.DurationUnit)) {
	case "", "months":
	case "weeks":
		unit = UnitWeeks
	default:
		return "", time.Time{}, apperr.Validation("invalid_duration_unit", "Duration unit must be months or weeks")
	}
	first, ok := parseDate(in.RepaymentDate)
	if !ok {
		return "", time.Time{}, apperr.Validation("invalid_repayment_date", "Repayment date must be a valid date")
	}
	return unit, first, nil
}

func (s *Service) Apply(ctx context.Context, userID string, in ApplyInput) (*Entity, error) {
	unit, first, err := in.validate()
	if err != nil {
		return nil, err
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := kyc.Gate(in.Amount, u.KYC.Standing(), now); err != nil {
		return nil, err
	}

	sched := Amortize(in.Amount, in.InterestRate, in.Duration, unit, first)
	next := sched.Installments[0].DueDate
	created, err := s.loanRepo.Create(ctx, &Entity{
		UserID:           userID,
		Amount:           in.Amount,
		InterestRate:     in.InterestRate,
		Duration:         in.Duration,
		DurationUnit:     unit,
		RepaymentDate:    first,
		PaymentAmount:    sched.Payment,
		TotalRepayment:   sched.TotalRepayment,
		TotalInterest:    sched.TotalInterest,
		TotalPaid:        decimal.Zero,
		RemainingBalance: sched.TotalRepayment,
		NextPaymentDate:  &next,
		Status:           StatusPending,
		Purpose:          strings.TrimSpace(in.Purpose),
		KYC: KYCRequirement{
			LevelRequired:       kyc.RequirementForAmount(in.Amount).Level,
			StatusAtApplication: kyc.EffectiveStatus(u.KYC.Status, u.KYC.ReviewDueAt, now),
			LevelAtApplication:  u.KYC.Level,
		},
		Repayments: sched.Installments,
	})
	if err != nil {
		return nil, err
	}

	s.scheduleReminders(ctx, created)
	s.logger.Info("loan application accepted", "loan_id", created.ID, "user_id", userID)
	return created, nil
}

// ReminderPayload is the body of a repayment_reminder outbox job.
type ReminderPayload struct {
	LoanID string `json:"loan_id"`
	Seq    int    `json:"seq"`
}

// scheduleReminders enqueues one durable reminder per installment. Failures
// are logged; the application already stands.
func (s *Service) scheduleReminders(ctx context.Context, e *Entity) {
	if s.outboxRepo == nil {
		return
	}
	now := s.now()
	for _, r := range e.Repayments {
		at := r.DueDate.Add(-s.opts.ReminderLead)
		if at.Before(now) {
			continue
		}
		payload, _ := json.Marshal(ReminderPayload{LoanID: e.ID, Seq: r.Seq})
		if err := s.outboxRepo.Enqueue(ctx, TopicRepaymentReminder, payload, at); err != nil {
			s.logger.Warn("repayment reminder enqueue failed", "loan_id", e.ID, "seq", r.Seq, "err", err)
		}
	}
}

type Page struct {
	Items []Entity
	Total int64
}

func (s *Service) ListMine(ctx context.Context, userID string, limit, offset int32) (*Page, error) {
	items, total, err := s.loanRepo.List(ctx, ListFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total}, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	items, total, err := s.loanRepo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Total: total}, nil
}

type PreApproval struct {
	IsPreApproved    bool   `json:"isPreApproved"`
	CreditScore      int    `json:"creditScore"`
	MinRequiredScore int    `json:"minRequiredScore"`
	Message          string `json:"message"`
}

func (s *Service) PreApproval(ctx context.Context, userID string) (*PreApproval, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &PreApproval{
		IsPreApproved:    u.CreditScore >= s.opts.MinCreditScore,
		CreditScore:      u.CreditScore,
		MinRequiredScore: s.opts.MinCreditScore,
	}
	if out.IsPreApproved {
		out.Message = fmt.Sprintf("Congratulations! You are pre-approved for a loan with a credit score of %d.", u.CreditScore)
	} else {
		out.Message = fmt.Sprintf("Your credit score of %d is below the minimum of %d required for pre-approval.", u.CreditScore, s.opts.MinCreditScore)
	}
	return out, nil
}

type PaymentOutcome struct {
	Applied     decimal.Decimal `json:"appliedAmount"`
	Unapplied   decimal.Decimal `json:"unappliedAmount"`
	Loan        *Entity         `json:"loan"`
	Transaction *Transaction    `json:"transaction"`
}

func (s *Service) Pay(ctx context.Context, userID, loanID string, amount decimal.Decimal) (*PaymentOutcome, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, apperr.Validation("invalid_id", "Invalid loan id")
	}
	if !amount.IsPositive() {
		return nil, apperr.Validation("invalid_amount", "amount must be a number greater than 0")
	}

	var result PaymentResult
	now := s.now()
	updated, txs, err := s.loanRepo.Update(ctx, loanID, func(e *Entity) ([]Transaction, error) {
		if e.UserID != userID {
			return nil, apperr.NotFound("loan_not_found", "Loan not found")
		}
		res, err := ApplyPayment(e, amount, now)
		if err != nil {
			return nil, err
		}
		result = res
		return []Transaction{{
			LoanID:          e.ID,
			UserID:          userID,
			Amount:          res.Applied,
			Type:            TransactionRepayment,
			Status:          TransactionCompleted,
			TransactionDate: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	out := &PaymentOutcome{Applied: result.Applied, Unapplied: result.Unapplied, Loan: updated}
	if len(txs) > 0 {
		out.Transaction = &txs[0]
	}
	if s.notifier != nil {
		s.notifier.NotifyUser(userID, EventPaymentApplied, map[string]any{
			"loan_id":           updated.ID,
			"applied_amount":    result.Applied,
			"remaining_balance": updated.RemainingBalance,
			"status":            updated.Status,
		})
	}
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, userID, loanID string) (*Entity, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, apperr.Validation("invalid_id", "Invalid loan id")
	}
	updated, _, err := s.loanRepo.Update(ctx, loanID, func(e *Entity) ([]Transaction, error) {
		if e.UserID != userID {
			return nil, apperr.NotFound("loan_not_found", "Loan not found")
		}
		return nil, e.Cancel()
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(updated)
	return updated, nil
}

func (s *Service) Review(ctx context.Context, reviewerID, loanID string, decision Status) (*Entity, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, apperr.Validation("invalid_id", "Invalid loan id")
	}
	now := s.now()
	updated, _, err := s.loanRepo.Update(ctx, loanID, func(e *Entity) ([]Transaction, error) {
		return nil, e.Review(decision, reviewerID, now)
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(updated)
	return updated, nil
}

func (s *Service) Disburse(ctx context.Context, loanID string) (*Entity, *Transaction, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, nil, apperr.Validation("invalid_id", "Invalid loan id")
	}
	now := s.now()
	updated, txs, err := s.loanRepo.Update(ctx, loanID, func(e *Entity) ([]Transaction, error) {
		tx, err := e.Disburse(now)
		if err != nil {
			return nil, err
		}
		return []Transaction{tx}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.publishStatus(updated)
	var tx *Transaction
	if len(txs) > 0 {
		tx = &txs[0]
	}
	return updated, tx, nil
}

// SweepOverdue is run by the worker to age unpaid installments.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	affected, err := s.loanRepo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for i := range affected {
		s.publishStatus(&affected[i])
	}
	return len(affected), nil
}

func (s *Service) publishStatus(e *Entity) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUser(e.UserID, EventStatusChanged, map[string]any{"loan_id": e.ID, "status": e.Status})
}

func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
