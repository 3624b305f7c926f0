package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	Apply(ctx context.Context, userID string, in loan.ApplyInput) (*loan.Entity, error)
	ListMine(ctx context.Context, userID string, limit, offset int32) (*loan.Page, error)
	PreApproval(ctx context.Context, userID string) (*loan.PreApproval, error)
	Pay(ctx context.Context, userID, loanID string, amount decimal.Decimal) (*loan.PaymentOutcome, error)
	Cancel(ctx context.Context, userID, loanID string) (*loan.Entity, error)
}

type TransactionLister interface {
	ListByUser(ctx context.Context, userID string) ([]loan.Transaction, error)
}

type LoanHandler struct {
	loanService LoanService
	txs         TransactionLister
	metrics     *observability.Metrics
}

func NewLoanHandler(loanService LoanService, txs TransactionLister, metrics *observability.Metrics) *LoanHandler {
	return &LoanHandler{loanService: loanService, txs: txs, metrics: metrics}
}

func (h *LoanHandler) Apply(c *gin.Context) {
	var req loan.ApplyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.countApplication("invalid")
		badRequest(c)
		return
	}

	created, err := h.loanService.Apply(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		switch {
		case apperr.IsKind(err, apperr.KindAuthorization):
			h.countApplication("kyc_blocked")
		case apperr.IsKind(err, apperr.KindValidation):
			h.countApplication("invalid")
		default:
			h.countApplication("error")
		}
		respondError(c, err)
		return
	}
	h.countApplication("submitted")
	c.JSON(http.StatusCreated, created)
}

func (h *LoanHandler) MyLoans(c *gin.Context) {
	p := parsePage(c, 10)
	result, err := h.loanService.ListMine(c.Request.Context(), middleware.UserID(c), p.Limit, p.offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": result.Items, "pagination": p.envelope(result.Total)})
}

func (h *LoanHandler) PreApproval(c *gin.Context) {
	out, err := h.loanService.PreApproval(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *LoanHandler) Pay(c *gin.Context) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": "amount must be a number greater than 0"})
		return
	}

	out, err := h.loanService.Pay(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Param("loanId")), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.PaymentsApplied.Add(out.Applied.InexactFloat64())
	}
	c.JSON(http.StatusOK, gin.H{
		"message":         "Payment recorded successfully",
		"appliedAmount":   out.Applied,
		"unappliedAmount": out.Unapplied,
		"loan":            out.Loan,
		"transaction":     out.Transaction,
	})
}

func (h *LoanHandler) Cancel(c *gin.Context) {
	updated, err := h.loanService.Cancel(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Param("loanId")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Loan cancelled", "loan": updated})
}

func (h *LoanHandler) MyTransactions(c *gin.Context) {
	items, err := h.txs.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []loan.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

func (h *LoanHandler) countApplication(outcome string) {
	if h.metrics != nil {
		h.metrics.LoanApplications.WithLabelValues(outcome).Inc()
	}
}
