package admin

import (
	"context"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	List(ctx context.Context, f user.ListFilter) ([]user.User, int64, error)
	SetRole(ctx context.Context, userID string, role user.Role) error
}

type LoanWorkflow interface {
	List(ctx context.Context, f loan.ListFilter) (*loan.Page, error)
	Review(ctx context.Context, reviewerID, loanID string, decision loan.Status) (*loan.Entity, error)
	Disburse(ctx context.Context, loanID string) (*loan.Entity, *loan.Transaction, error)
}

type LoanCounter interface {
	Count(ctx context.Context) (int64, error)
}

type Service struct {
	userRepo    UserRepository
	loans       LoanWorkflow
	loanCounter LoanCounter
	txRepo      loan.TransactionRepository
	audit       *audit.Recorder
}

func NewService(userRepo UserRepository, loans LoanWorkflow, loanCounter LoanCounter, txRepo loan.TransactionRepository, recorder *audit.Recorder) *Service {
	return &Service{userRepo: userRepo, loans: loans, loanCounter: loanCounter, txRepo: txRepo, audit: recorder}
}

func (s *Service) ListLoans(ctx context.Context, status string, limit, offset int32) (*loan.Page, error) {
	f := loan.ListFilter{Limit: limit, Offset: offset}
	if strings.TrimSpace(status) != "" {
		st, ok := loan.ParseStatus(strings.TrimSpace(status))
		if !ok {
			return nil, apperr.Validation("invalid_status", "Unknown loan status")
		}
		f.Status = st
	}
	return s.loans.List(ctx, f)
}

func (s *Service) ReviewLoan(ctx context.Context, actor audit.Actor, loanID, status string) (*loan.Entity, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionLoanReview, TargetType: "Loan", TargetID: loanID, Metadata: map[string]any{"status": status}}
	decision := loan.Status(strings.TrimSpace(status))
	if decision != loan.StatusApproved && decision != loan.StatusRejected {
		s.audit.Failure(ctx, entry, "invalid_status")
		return nil, apperr.Validation("invalid_status", "Invalid status")
	}
	updated, err := s.loans.Review(ctx, actor.UserID, loanID, decision)
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}
	s.audit.Success(ctx, entry)
	return updated, nil
}

func (s *Service) DisburseLoan(ctx context.Context, actor audit.Actor, loanID string) (*loan.Entity, *loan.Transaction, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionLoanDisburse, TargetType: "Loan", TargetID: loanID}
	updated, tx, err := s.loans.Disburse(ctx, loanID)
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, nil, err
	}
	entry.Metadata = map[string]any{"amount": updated.Amount}
	s.audit.Success(ctx, entry)
	return updated, tx, nil
}

func (s *Service) ListUsers(ctx context.Context, actor audit.Actor, limit, offset int32) ([]user.Summary, int64, error) {
	items, total, err := s.userRepo.List(ctx, user.ListFilter{Limit: limit, Offset: offset})
	if err != nil {
		s.audit.Failure(ctx, audit.Entry{Actor: actor, Action: audit.ActionUsersList, TargetType: "User"}, "list_failed")
		return nil, 0, err
	}
	out := make([]user.Summary, 0, len(items))
	for i := range items {
		out = append(out, items[i].Summary())
	}
	s.audit.Success(ctx, audit.Entry{Actor: actor, Action: audit.ActionUsersList, TargetType: "User", Metadata: map[string]any{"count": len(out)}})
	return out, total, nil
}

func (s *Service) UserTransactions(ctx context.Context, actor audit.Actor, userID string) ([]loan.Transaction, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionUserTxView, TargetType: "User", TargetID: userID}
	if _, err := uuid.Parse(userID); err != nil {
		s.audit.Failure(ctx, entry, "invalid_id")
		return nil, apperr.Validation("invalid_id", "Invalid user id")
	}
	target, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}
	entry.TargetLabel = target.Email
	items, err := s.txRepo.ListByUser(ctx, userID)
	if err != nil {
		s.audit.Failure(ctx, entry, "list_failed")
		return nil, err
	}
	s.audit.Success(ctx, entry)
	return items, nil
}

// PromoteTarget names the user to promote by id or, failing that, by email.
type PromoteTarget struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (s *Service) Promote(ctx context.Context, actor audit.Actor, target PromoteTarget) (*user.Summary, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionUserPromote, TargetType: "User", TargetID: target.UserID, TargetLabel: target.Email}

	u, err := s.resolveTarget(ctx, target)
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}
	entry.TargetID, entry.TargetLabel = u.ID, u.Email

	if u.ID == actor.UserID {
		s.audit.Failure(ctx, entry, "self_promotion")
		return nil, apperr.Forbidden("self_promotion", "You cannot modify your own role")
	}
	if u.IsAdmin() {
		s.audit.Failure(ctx, entry, "already_admin")
		return nil, apperr.Conflict("already_admin", "User is already an admin")
	}
	if err := s.userRepo.SetRole(ctx, u.ID, user.RoleAdmin); err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}

	u.UserType = user.RoleAdmin
	entry.Metadata = map[string]any{"from": user.RoleUser, "to": user.RoleAdmin}
	s.audit.Success(ctx, entry)
	summary := u.Summary()
	return &summary, nil
}

func (s *Service) resolveTarget(ctx context.Context, target PromoteTarget) (*user.User, error) {
	id := strings.TrimSpace(target.UserID)
	email := user.NormalizeEmail(target.Email)
	switch {
	case id != "":
		if _, err := uuid.Parse(id); err != nil {
			return nil, apperr.Validation("invalid_id", "Invalid user id")
		}
		return s.userRepo.GetByID(ctx, id)
	case email != "":
		return s.userRepo.GetByEmail(ctx, email)
	default:
		return nil, apperr.Validation("missing_target", "Provide userId or email")
	}
}

type Report struct {
	TotalLoans      int64           `json:"totalLoans"`
	TotalRepayments decimal.Decimal `json:"totalRepayments"`
}

func (s *Service) Reports(ctx context.Context, actor audit.Actor) (*Report, error) {
	count, err := s.loanCounter.Count(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := s.txRepo.SumCompleted(ctx, loan.TransactionRepayment)
	if err != nil {
		return nil, err
	}
	s.audit.Success(ctx, audit.Entry{Actor: actor, Action: audit.ActionReportsView, TargetType: "Report"})
	return &Report{TotalLoans: count, TotalRepayments: sum}, nil
}

func (s *Service) AuditLogs(ctx context.Context, f audit.ListFilter) ([]audit.Entry, int64, error) {
	if f.Status != "" && f.Status != audit.StatusSuccess && f.Status != audit.StatusFail {
		return nil, 0, apperr.Validation("invalid_status", "Status must be success or fail")
	}
	return s.audit.List(ctx, f)
}
