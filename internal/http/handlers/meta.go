package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Meta is what clients need to render forms before calling the API: the
// build, and the loan and KYC limits the server enforces.
type Meta struct {
	Name    string
	Env     string
	Version string

	MaxLoanAmount     decimal.Decimal
	MaxLoanDuration   int
	DurationUnits     []string
	BasicKYCAbove     decimal.Decimal
	EnhancedKYCAbove  decimal.Decimal
	KYCValidityMonths int32
	MaxUploadBytes    int64
}

type MetaHandler struct {
	meta Meta
}

func NewMetaHandler(meta Meta) *MetaHandler {
	return &MetaHandler{meta: meta}
}

func (h *MetaHandler) GetMeta(c *gin.Context) {
	m := h.meta
	c.JSON(http.StatusOK, gin.H{
		"name":    m.Name,
		"version": m.Version,
		"env":     m.Env,
		"loan": gin.H{
			"max_amount":     m.MaxLoanAmount,
			"max_duration":   m.MaxLoanDuration,
			"duration_units": m.DurationUnits,
		},
		"kyc": gin.H{
			"basic_above":      m.BasicKYCAbove,
			"enhanced_above":   m.EnhancedKYCAbove,
			"validity_months":  m.KYCValidityMonths,
			"max_upload_bytes": m.MaxUploadBytes,
		},
	})
}
