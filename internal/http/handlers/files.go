package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/storage"
	"github.com/gin-gonic/gin"
)

type ObjectPaths interface {
	Path(key string) (string, error)
}

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// FilesHandler serves stored KYC documents. Owners and admins read through
// /v1/files/*key; anyone holding a document grant reads through the signed
// route.
type FilesHandler struct {
	store  ObjectPaths
	tokens TokenParser
}

func NewFilesHandler(store ObjectPaths, tokens TokenParser) *FilesHandler {
	return &FilesHandler{store: store, tokens: tokens}
}

func (h *FilesHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if c.GetString("user_role") != string(user.RoleAdmin) && storage.OwnerOf(key) != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Access denied"})
		return
	}
	h.serveKey(c, key)
}

func (h *FilesHandler) ServeSigned(c *gin.Context) {
	claims, err := h.tokens.Parse(c.Param("token"))
	if err != nil || claims.Type != auth.TokenTypeDocument || claims.Object == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_or_expired_link", "message": "This link is invalid or has expired"})
		return
	}
	h.serveKey(c, claims.Object)
}

func (h *FilesHandler) serveKey(c *gin.Context, key string) {
	path, err := h.store.Path(key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		return
	}
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "file_not_found"})
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.File(path)
}
