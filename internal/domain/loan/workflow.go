package loan

import (
	"fmt"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
)

var reviewable = map[Status]bool{
	StatusPending:     true,
	StatusUnderReview: true,
	StatusKYCPending:  true,
}

func invalidState(e *Entity, action string) error {
	return apperr.Conflict("invalid_loan_state", fmt.Sprintf("Cannot %s a loan in status %s", action, e.Status)).
		With("currentStatus", e.Status)
}

// Review records an admin decision on a loan still awaiting one.
func (e *Entity) Review(decision Status, reviewerID string, at time.Time) error {
	if decision != StatusApproved && decision != StatusRejected {
		return apperr.Validation("invalid_status", "Status must be approved or rejected")
	}
	if !reviewable[e.Status] {
		return invalidState(e, "review")
	}
	e.Status = decision
	e.ReviewedBy = reviewerID
	e.ReviewedAt = &at
	return nil
}

// Disburse releases an approved loan and returns the ledger row for it.
func (e *Entity) Disburse(at time.Time) (Transaction, error) {
	if e.Status != StatusApproved {
		return Transaction{}, invalidState(e, "disburse")
	}
	e.Status = StatusDisbursed
	e.DisbursedAt = &at
	return Transaction{
		LoanID:          e.ID,
		UserID:          e.UserID,
		Amount:          e.Amount,
		Type:            TransactionDisbursement,
		Status:          TransactionCompleted,
		TransactionDate: at,
	}, nil
}

// Cancel withdraws an application the borrower no longer wants.
func (e *Entity) Cancel() error {
	if e.Status != StatusDraft && e.Status != StatusPending {
		return invalidState(e, "cancel")
	}
	e.Status = StatusCancelled
	return nil
}
