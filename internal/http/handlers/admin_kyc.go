package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

type KYCReviewService interface {
	Pending(ctx context.Context, limit, offset int32) (*kyc.Listing, error)
	Applications(ctx context.Context, f kyc.ListFilter) (*kyc.Listing, error)
	Get(ctx context.Context, actor audit.Actor, caseID string) (*kyc.Case, error)
	Approve(ctx context.Context, actor audit.Actor, caseID string, in kyc.ReviewInput) (*kyc.Case, error)
	Reject(ctx context.Context, actor audit.Actor, caseID string, in kyc.ReviewInput) (*kyc.Case, error)
	SignedDocumentURL(ctx context.Context, actor audit.Actor, rawURL string) (string, time.Duration, error)
	Export(ctx context.Context, actor audit.Actor, f kyc.ExportFilter, w io.Writer) error
}

type AdminKYCHandler struct {
	kycService KYCReviewService
	now        func() time.Time
}

func NewAdminKYCHandler(kycService KYCReviewService) *AdminKYCHandler {
	return &AdminKYCHandler{kycService: kycService, now: func() time.Time { return time.Now().UTC() }}
}

func (h *AdminKYCHandler) Pending(c *gin.Context) {
	p := parsePage(c, 20)
	result, err := h.kycService.Pending(c.Request.Context(), p.Limit, p.offset())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kycs": result.Items, "pagination": p.envelope(result.Total)})
}

// Applications ignores unknown status and level filters rather than failing.
func (h *AdminKYCHandler) Applications(c *gin.Context) {
	p := parsePage(c, 20)
	f := kyc.ListFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Limit:  p.Limit,
		Offset: p.offset(),
	}
	if st, ok := kyc.ParseStatus(c.Query("status")); ok {
		f.Status = st
	}
	if lvl, ok := kyc.ParseLevel(c.Query("level")); ok {
		f.Level = lvl
	}

	result, err := h.kycService.Applications(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kycs": result.Items, "pagination": p.envelope(result.Total)})
}

func (h *AdminKYCHandler) Get(c *gin.Context) {
	item, err := h.kycService.Get(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kyc": item})
}

func (h *AdminKYCHandler) Approve(c *gin.Context) {
	var req kyc.ReviewInput
	_ = c.ShouldBindJSON(&req)

	item, err := h.kycService.Approve(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "KYC approved", "kyc": item})
}

func (h *AdminKYCHandler) Reject(c *gin.Context) {
	var req kyc.ReviewInput
	_ = c.ShouldBindJSON(&req)

	item, err := h.kycService.Reject(c.Request.Context(), middleware.Actor(c), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "KYC rejected", "kyc": item})
}

func (h *AdminKYCHandler) SignedURL(c *gin.Context) {
	signed, ttl, err := h.kycService.SignedDocumentURL(c.Request.Context(), middleware.Actor(c), c.Query("url"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signed_url": signed,
		"expires_in": int64(ttl.Seconds()),
		"expires_at": h.now().Add(ttl),
	})
}

// Export buffers the CSV so a failure can still be reported as JSON.
func (h *AdminKYCHandler) Export(c *gin.Context) {
	var f kyc.ExportFilter
	from, err := parseDay(c.Query("from"))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := parseDay(c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	f.From = from
	if to != nil {
		end := to.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}

	var buf bytes.Buffer
	if err := h.kycService.Export(c.Request.Context(), middleware.Actor(c), f, &buf); err != nil {
		respondError(c, err)
		return
	}
	name := "kyc-export-" + h.now().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func parseDay(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperr.Validation("invalid_date", "Dates must use YYYY-MM-DD").With("value", raw)
	}
	return &t, nil
}
