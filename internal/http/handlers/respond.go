package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/gin-gonic/gin"
)

// respondError renders service failures as {"error": code, "message": ...}.
// Unexpected errors are attached to the context for the request logger and
// never leak their cause.
func respondError(c *gin.Context, err error) {
	appErr := apperr.As(err)
	status := apperr.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal_error", "message": "Server error"})
		return
	}

	body := gin.H{"error": appErr.Code}
	if appErr.Message != "" {
		body["message"] = appErr.Message
	}
	for k, v := range appErr.Details {
		body[k] = v
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Malformed request body"})
}

type page struct {
	Page  int32
	Limit int32
}

func (p page) offset() int32 {
	return (p.Page - 1) * p.Limit
}

func (p page) envelope(total int64) gin.H {
	pages := int64(0)
	if p.Limit > 0 {
		pages = int64(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return gin.H{"page": p.Page, "limit": p.Limit, "total": total, "pages": pages}
}

// parsePage reads ?page=&limit= with page >= 1 and 1 <= limit <= 50.
// Malformed values fall back to the defaults.
func parsePage(c *gin.Context, defaultLimit int32) page {
	p := page{Page: 1, Limit: defaultLimit}
	if v, err := strconv.ParseInt(strings.TrimSpace(c.Query("page")), 10, 32); err == nil && v >= 1 {
		p.Page = int32(v)
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(c.Query("limit")), 10, 32); err == nil {
		p.Limit = int32(v)
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > 50 {
		p.Limit = 50
	}
	return p
}
