package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/admin"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

type AdminService interface {
	ListLoans(ctx context.Context, status string, limit, offset int32) (*loan.Page, error)
	ReviewLoan(ctx context.Context, actor audit.Actor, loanID, status string) (*loan.Entity, error)
	DisburseLoan(ctx context.Context, actor audit.Actor, loanID string) (*loan.Entity, *loan.Transaction, error)
	ListUsers(ctx context.Context, actor audit.Actor, limit, offset int32) ([]user.Summary, int64, error)
	UserTransactions(ctx context.Context, actor audit.Actor, userID string) ([]loan.Transaction, error)
	Promote(ctx context.Context, actor audit.Actor, target admin.PromoteTarget) (*user.Summary, error)
	Reports(ctx context.Context, actor audit.Actor) (*admin.Report, error)
	AuditLogs(ctx context.Context, f audit.ListFilter) ([]audit.Entry, int64, error)
}

type AdminHandler struct {
	adminService AdminService
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

func (h *AdminHandler) ListLoans(c *gin.Context) {
	p := parsePage(c, 20)
	result, err := h.adminService.ListLoans(c.Request.Context(), c.Query("status"), p.Limit, p.offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": result.Items, "pagination": p.envelope(result.Total)})
}

func (h *AdminHandler) ReviewLoan(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	updated, err := h.adminService.ReviewLoan(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("id")), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Loan " + string(updated.Status) + " successfully", "loan": updated})
}

func (h *AdminHandler) DisburseLoan(c *gin.Context) {
	updated, tx, err := h.adminService.DisburseLoan(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Loan disbursed", "loan": updated, "transaction": tx})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	p := parsePage(c, 20)
	items, total, err := h.adminService.ListUsers(c.Request.Context(), middleware.Actor(c), p.Limit, p.offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": items, "pagination": p.envelope(total)})
}

func (h *AdminHandler) UserTransactions(c *gin.Context) {
	items, err := h.adminService.UserTransactions(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("userId")))
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []loan.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": items})
}

func (h *AdminHandler) PromoteByID(c *gin.Context) {
	h.promote(c, admin.PromoteTarget{UserID: c.Param("userId")})
}

func (h *AdminHandler) Promote(c *gin.Context) {
	var req admin.PromoteTarget
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	h.promote(c, req)
}

func (h *AdminHandler) promote(c *gin.Context, target admin.PromoteTarget) {
	promoted, err := h.adminService.Promote(c.Request.Context(), middleware.Actor(c), target)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User promoted to admin", "user": promoted})
}

func (h *AdminHandler) Reports(c *gin.Context) {
	report, err := h.adminService.Reports(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	p := parsePage(c, 20)
	items, total, err := h.adminService.AuditLogs(c.Request.Context(), audit.ListFilter{
		Action:      strings.TrimSpace(c.Query("action")),
		Status:      audit.Status(strings.TrimSpace(c.Query("status"))),
		ActorUserID: strings.TrimSpace(c.Query("actor")),
		TargetType:  strings.TrimSpace(c.Query("target_type")),
		TargetID:    strings.TrimSpace(c.Query("target_id")),
		Limit:       p.Limit,
		Offset:      p.offset(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []audit.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": items, "pagination": p.envelope(total)})
}
