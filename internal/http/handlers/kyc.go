package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

// uploadFields are the multipart parts accepted by the document upload.
var uploadFields = []string{"front", "back", "selfie"}

type KYCService interface {
	Requirements(amount string) (kyc.Requirement, error)
	Start(ctx context.Context, userID, level string) (*kyc.StatusView, error)
	UploadDocuments(ctx context.Context, userID string, uploads []kyc.Upload) (*kyc.UploadResult, error)
	Submit(ctx context.Context, userID string, in kyc.SubmitInput) (*kyc.StatusView, error)
	Status(ctx context.Context, userID string) (*kyc.StatusView, error)
}

type KYCHandler struct {
	kycService KYCService
}

func NewKYCHandler(kycService KYCService) *KYCHandler {
	return &KYCHandler{kycService: kycService}
}

func (h *KYCHandler) Requirements(c *gin.Context) {
	amount := c.Param("amount")
	req, err := h.kycService.Requirements(amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amount": amount, "requirements": req})
}

func (h *KYCHandler) Start(c *gin.Context) {
	var req struct {
		Level string `json:"level"`
	}
	_ = c.ShouldBindJSON(&req)

	view, err := h.kycService.Start(c.Request.Context(), middleware.UserID(c), req.Level)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "KYC verification started", "kyc": view})
}

func (h *KYCHandler) UploadDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file_too_large", "message": "Upload exceeds the size limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_files_uploaded", "message": "No files uploaded"})
		return
	}

	var uploads []kyc.Upload
	for _, field := range uploadFields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_file", "field": field})
			return
		}
		defer f.Close()
		uploads = append(uploads, upload(field, fh, f))
	}

	result, err := h.kycService.UploadDocuments(c.Request.Context(), middleware.UserID(c), uploads)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Documents uploaded", "kyc": result})
}

func upload(field string, fh *multipart.FileHeader, f multipart.File) kyc.Upload {
	return kyc.Upload{
		Field:       field,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}
}

func (h *KYCHandler) Submit(c *gin.Context) {
	var req kyc.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	view, err := h.kycService.Submit(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "KYC submitted for review", "kyc": view})
}

func (h *KYCHandler) Status(c *gin.Context) {
	view, err := h.kycService.Status(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
