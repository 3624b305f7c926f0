package loan

import (
	"fmt"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/shopspring/decimal"
)

type PaymentResult struct {
	Applied   decimal.Decimal
	Unapplied decimal.Decimal
}

// activatedBy lists the statuses a first payment moves into active.
var activatedBy = map[Status]bool{
	StatusApproved:    true,
	StatusDisbursed:   true,
	StatusPending:     true,
	StatusUnderReview: true,
	StatusKYCPending:  true,
}

// ApplyPayment allocates amount to installments in schedule order and
// re-derives the loan aggregates and status. Any amount left once the
// schedule is covered is reported as unapplied rather than absorbed.
func ApplyPayment(e *Entity, amount decimal.Decimal, now time.Time) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, apperr.Validation("invalid_amount", "amount must be a number greater than 0")
	}
	switch e.Status {
	case StatusRejected, StatusCancelled, StatusDraft:
		return PaymentResult{}, apperr.Conflict("loan_not_payable", fmt.Sprintf("Cannot make payment while loan is '%s'", e.Status)).
			With("currentStatus", e.Status)
	case StatusRepaid:
		return PaymentResult{}, apperr.Conflict("loan_already_repaid", "Loan is already fully repaid")
	}
	if len(e.Repayments) == 0 {
		return PaymentResult{}, apperr.Conflict("no_repayment_schedule", "This loan has no repayment schedule")
	}

	remaining := amount
	applied := decimal.Zero
	for i := range e.Repayments {
		if !remaining.IsPositive() {
			break
		}
		r := &e.Repayments[i]
		if r.Status == InstallmentPaid {
			continue
		}
		due := r.Outstanding()
		if !due.IsPositive() {
			r.Status = InstallmentPaid
			if r.PaidDate == nil {
				r.PaidDate = &now
			}
			continue
		}
		payNow := decimal.Min(remaining, due)
		r.PaidAmount = r.PaidAmount.Add(payNow)
		r.PaidDate = &now
		if r.PaidAmount.GreaterThanOrEqual(r.Amount) {
			r.Status = InstallmentPaid
		} else {
			r.Status = InstallmentPartiallyPaid
		}
		remaining = remaining.Sub(payNow)
		applied = applied.Add(payNow)
	}

	if !applied.IsPositive() {
		return PaymentResult{}, apperr.Conflict("no_repayment_items", "No repayment items available to pay")
	}

	e.TotalPaid = e.TotalPaid.Add(applied)
	e.RemainingBalance = decimal.Max(e.RemainingBalance.Sub(applied), decimal.Zero)
	e.LastPaymentDate = &now

	paid := 0
	allPaid := true
	overdue := false
	e.NextPaymentDate = nil
	for i := range e.Repayments {
		r := e.Repayments[i]
		if r.Status == InstallmentPaid {
			paid++
			continue
		}
		allPaid = false
		if r.DueDate.Before(now) {
			overdue = true
		}
		if e.NextPaymentDate == nil {
			due := r.DueDate
			e.NextPaymentDate = &due
		}
	}
	e.PaymentsMade = paid

	if allPaid || !e.RemainingBalance.IsPositive() {
		e.Status = StatusRepaid
	} else if activatedBy[e.Status] || (e.Status == StatusLate && !overdue) {
		e.Status = StatusActive
	}

	return PaymentResult{Applied: applied, Unapplied: amount.Sub(applied)}, nil
}
