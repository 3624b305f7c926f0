package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Me(ctx context.Context, userID string) (*user.User, error)
	ForgotPassword(ctx context.Context, email string) string
	ResetPassword(ctx context.Context, token, newPassword string) error
	AccessTTL() time.Duration
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
	Password    string `json:"password"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	session, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	auth.SetAccessCookie(c.Writer, h.cookieCfg, session.Token, h.authService.AccessTTL())
	c.JSON(http.StatusCreated, session)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	auth.SetAccessCookie(c.Writer, h.cookieCfg, session.Token, h.authService.AccessTTL())
	c.JSON(http.StatusOK, session)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	auth.ClearAccessCookie(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ForgotPassword answers identically whether or not the address is known.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	_ = c.ShouldBindJSON(&req)
	msg := h.authService.ForgotPassword(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	password := req.NewPassword
	if password == "" {
		password = req.Password
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset. You can now log in."})
}

func (h *AuthHandler) Me(c *gin.Context) {
	u, err := h.authService.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
