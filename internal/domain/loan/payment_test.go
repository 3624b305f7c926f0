package loan

import (
	"testing"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payAt = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newScheduledLoan(status Status, amount string, periods int) *Entity {
	s := Amortize(d(amount), d("0"), periods, UnitMonths, firstDue)
	return &Entity{
		ID:               "loan-1",
		UserID:           "u1",
		Amount:           d(amount),
		Status:           status,
		TotalPaid:        decimal.Zero,
		RemainingBalance: s.TotalRepayment,
		Repayments:       s.Installments,
	}
}

func TestApplyPaymentPartialThenActive(t *testing.T) {
	e := newScheduledLoan(StatusDisbursed, "2000", 10)

	res, err := ApplyPayment(e, d("250"), payAt)
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(d("250")))
	assert.True(t, res.Unapplied.IsZero())
	assert.Equal(t, InstallmentPaid, e.Repayments[0].Status)
	assert.Equal(t, InstallmentPartiallyPaid, e.Repayments[1].Status)
	assert.True(t, e.Repayments[1].PaidAmount.Equal(d("50")))
	assert.Equal(t, 1, e.PaymentsMade)
	assert.Equal(t, StatusActive, e.Status)
	assert.True(t, e.RemainingBalance.Equal(d("1750")))
	require.NotNil(t, e.NextPaymentDate)
	assert.Equal(t, e.Repayments[1].DueDate, *e.NextPaymentDate)
}

func TestApplyPaymentOverpaymentIsUnapplied(t *testing.T) {
	e := newScheduledLoan(StatusActive, "2000", 10)

	res, err := ApplyPayment(e, d("2500"), payAt)
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(d("2000")))
	assert.True(t, res.Unapplied.Equal(d("500")))
	assert.Equal(t, StatusRepaid, e.Status)
	assert.True(t, e.RemainingBalance.IsZero())
	assert.Nil(t, e.NextPaymentDate)
	assert.Equal(t, 10, e.PaymentsMade)

	_, err = ApplyPayment(e, d("10"), payAt)
	require.Error(t, err)
	assert.Equal(t, "loan_already_repaid", apperr.As(err).Code)
	assert.False(t, e.RemainingBalance.IsNegative())
}

func TestApplyPaymentNoItemsLeft(t *testing.T) {
	e := newScheduledLoan(StatusLate, "300", 3)
	for i := range e.Repayments {
		e.Repayments[i].Status = InstallmentPaid
		e.Repayments[i].PaidAmount = e.Repayments[i].Amount
	}

	_, err := ApplyPayment(e, d("50"), payAt)
	require.Error(t, err)
	assert.Equal(t, "no_repayment_items", apperr.As(err).Code)
}

func TestApplyPaymentRejectsBadStates(t *testing.T) {
	for _, st := range []Status{StatusRejected, StatusCancelled, StatusDraft} {
		e := newScheduledLoan(st, "300", 3)
		_, err := ApplyPayment(e, d("50"), payAt)
		require.Error(t, err)
		assert.Equal(t, "loan_not_payable", apperr.As(err).Code, st)
	}

	e := newScheduledLoan(StatusActive, "300", 3)
	_, err := ApplyPayment(e, d("0"), payAt)
	assert.Equal(t, apperr.KindValidation, apperr.As(err).Kind)

	e.Repayments = nil
	_, err = ApplyPayment(e, d("5"), payAt)
	assert.Equal(t, "no_repayment_schedule", apperr.As(err).Code)
}

func TestApplyPaymentLateLoanRecovers(t *testing.T) {
	e := newScheduledLoan(StatusLate, "300", 3)
	e.Repayments[0].Status = InstallmentLate

	_, err := ApplyPayment(e, d("100"), payAt)
	require.NoError(t, err)
	assert.Equal(t, InstallmentPaid, e.Repayments[0].Status)
	assert.Equal(t, StatusActive, e.Status)
}

func TestApplyPaymentLateLoanStaysLateWhileOverdue(t *testing.T) {
	e := newScheduledLoan(StatusLate, "300", 3)
	e.Repayments[0].Status = InstallmentLate
	e.Repayments[1].Status = InstallmentLate
	afterSecondDue := e.Repayments[1].DueDate.Add(24 * time.Hour)

	_, err := ApplyPayment(e, d("100"), afterSecondDue)
	require.NoError(t, err)
	assert.Equal(t, InstallmentPaid, e.Repayments[0].Status)
	assert.Equal(t, InstallmentLate, e.Repayments[1].Status)
	assert.Equal(t, StatusLate, e.Status)
}

func TestReviewDisburseCancelTransitions(t *testing.T) {
	e := newScheduledLoan(StatusPending, "300", 3)

	require.Error(t, e.Review(StatusActive, "admin", payAt))
	require.NoError(t, e.Review(StatusApproved, "admin", payAt))
	assert.Equal(t, "admin", e.ReviewedBy)

	err := e.Review(StatusRejected, "admin", payAt)
	assert.Equal(t, apperr.KindConflict, apperr.As(err).Kind)

	require.Error(t, e.Cancel())

	tx, err := e.Disburse(payAt)
	require.NoError(t, err)
	assert.Equal(t, StatusDisbursed, e.Status)
	assert.Equal(t, TransactionDisbursement, tx.Type)
	assert.True(t, tx.Amount.Equal(d("300")))

	_, err = e.Disburse(payAt)
	assert.Equal(t, "invalid_loan_state", apperr.As(err).Code)

	pending := newScheduledLoan(StatusPending, "300", 3)
	require.NoError(t, pending.Cancel())
	assert.Equal(t, StatusCancelled, pending.Status)
}

func TestApplyPaymentNeverCollectsMoreThanTotal(t *testing.T) {
	e := newScheduledLoan(StatusActive, "10", 60)
	total := e.RemainingBalance

	res, err := ApplyPayment(e, d("100"), payAt)
	require.NoError(t, err)
	assert.True(t, res.Applied.Equal(total), "applied %s total %s", res.Applied, total)
	assert.True(t, res.Unapplied.Equal(d("90")))
	assert.True(t, e.TotalPaid.Equal(total))
	assert.True(t, e.RemainingBalance.IsZero())
	assert.Equal(t, StatusRepaid, e.Status)
	assert.Equal(t, 60, e.PaymentsMade)
}
