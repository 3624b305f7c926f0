package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/config"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/handlers"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/middleware"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/observability"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/version"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/ws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const jsonBodyLimit = 1 << 20

type Dependencies struct {
	Pinger     handlers.Pinger
	Storage    handlers.Pinger
	JWTManager *auth.JWTManager
	Metrics    *observability.Metrics
	Audit      *audit.Recorder

	AuthHandler     *handlers.AuthHandler
	LoanHandler     *handlers.LoanHandler
	KYCHandler      *handlers.KYCHandler
	AdminHandler    *handlers.AdminHandler
	AdminKYCHandler *handlers.AdminKYCHandler
	FilesHandler    *handlers.FilesHandler
	WSHandler       *ws.Handler
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(cors.New(corsConfig(cfg.CORSOrigin)))

	health := handlers.NewHealthHandler("short-term-loan-platform", map[string]handlers.Pinger{
		"database": deps.Pinger,
		"storage":  deps.Storage,
	})
	meta := handlers.NewMetaHandler(newMeta(cfg))

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	if deps.JWTManager == nil {
		r.NoRoute(notFound)
		return r
	}

	requireAuth := middleware.RequireAuth(deps.JWTManager)
	requireAdmin := middleware.RequireRole(user.RoleAdmin)
	limit := newLimiters(cfg, deps)

	api := r.Group("/api")
	api.Use(limit.api, middleware.RequestTimeout(cfg.RequestTimeout))

	if h := deps.AuthHandler; h != nil {
		g := api.Group("/auth")
		g.Use(middleware.RequestBodyLimit(jsonBodyLimit))
		g.POST("/register", limit.auth, h.Register)
		g.POST("/login", limit.auth, h.Login)
		g.POST("/forgot-password", limit.auth, h.ForgotPassword)
		g.POST("/reset-password", limit.auth, h.ResetPassword)
		g.POST("/logout", h.Logout)
		g.GET("/me", requireAuth, h.Me)
	}

	if h := deps.LoanHandler; h != nil {
		g := api.Group("/loan")
		g.Use(requireAuth, middleware.RequestBodyLimit(jsonBodyLimit))
		g.POST("/apply", h.Apply)
		g.GET("/my-loans", h.MyLoans)
		g.GET("/pre-approval", h.PreApproval)
		g.POST("/:loanId/pay", h.Pay)
		g.POST("/:loanId/cancel", h.Cancel)

		api.GET("/transactions/my-transactions", requireAuth, h.MyTransactions)
	}

	if h := deps.KYCHandler; h != nil {
		g := api.Group("/kyc")
		g.GET("/requirements/:amount", h.Requirements)
		g.POST("/start", requireAuth, middleware.RequestBodyLimit(jsonBodyLimit), h.Start)
		g.POST("/documents/upload", requireAuth, middleware.RequestBodyLimit(uploadBodyLimit(cfg.MaxUploadBytes)), h.UploadDocuments)
		g.POST("/submit", requireAuth, limit.kycSubmit, middleware.RequestBodyLimit(jsonBodyLimit), h.Submit)
		g.GET("/status", requireAuth, h.Status)
	}

	adminGroup := api.Group("/admin")
	adminGroup.Use(requireAuth, requireAdmin, middleware.RequestBodyLimit(jsonBodyLimit))
	if h := deps.AdminHandler; h != nil {
		adminGroup.GET("/loans", h.ListLoans)
		adminGroup.PUT("/loans/:id/approve", h.ReviewLoan)
		adminGroup.POST("/loans/:id/disburse", h.DisburseLoan)
		adminGroup.GET("/users", h.ListUsers)
		adminGroup.PUT("/users/:userId/promote", h.PromoteByID)
		adminGroup.GET("/users/:userId/transactions", h.UserTransactions)
		adminGroup.POST("/promote", h.Promote)
		adminGroup.GET("/reports", h.Reports)
		adminGroup.GET("/audit-logs", h.AuditLogs)
	}
	if h := deps.AdminKYCHandler; h != nil {
		adminGroup.GET("/kyc/pending", h.Pending)
		adminGroup.GET("/kyc/applications", h.Applications)
		adminGroup.GET("/kyc/export", h.Export)
		adminGroup.GET("/kyc/signed-url", h.SignedURL)
		adminGroup.GET("/kyc/:id", h.Get)
		adminGroup.POST("/kyc/:id/approve", h.Approve)
		adminGroup.POST("/kyc/:id/reject", h.Reject)
	}

	if h := deps.FilesHandler; h != nil {
		r.GET("/v1/files/*key", requireAuth, h.Serve)
		r.GET("/v1/documents/:token", h.ServeSigned)
	}
	if deps.WSHandler != nil {
		r.GET("/v1/ws", middleware.RequireAuthOrQuery(deps.JWTManager), deps.WSHandler.HandleWebSocket)
	}

	r.NoRoute(notFound)
	return r
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

// uploadBodyLimit leaves room for three documents plus multipart framing.
func uploadBodyLimit(perFile int64) int64 {
	return 3*perFile + jsonBodyLimit
}

func corsConfig(origins string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "x-auth-token"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cfg
}

type limiters struct {
	api       gin.HandlerFunc
	auth      gin.HandlerFunc
	kycSubmit gin.HandlerFunc
}

func newLimiters(cfg config.Config, deps Dependencies) limiters {
	onLimited := func(string) {}
	if deps.Metrics != nil {
		onLimited = func(name string) { deps.Metrics.RateLimited.WithLabelValues(name).Inc() }
	}
	build := func(name string, n int32, window time.Duration, msg string) gin.HandlerFunc {
		return middleware.NewRateLimiter(name, int(n), window, msg).WithAudit(deps.Audit, onLimited).Middleware()
	}
	return limiters{
		api:       build("api", cfg.RateLimitAPIPer15m, 15*time.Minute, "Too many requests, please try again later."),
		auth:      build("auth", cfg.RateLimitAuthPer15m, 15*time.Minute, "Too many authentication attempts, please try again later."),
		kycSubmit: build("kyc_submit", cfg.RateLimitKYCSubmitPerHour, time.Hour, "Too many KYC submissions, please try again later."),
	}
}

func newMeta(cfg config.Config) handlers.Meta {
	maxAmount, maxDuration, units := loan.Limits()
	basic, enhanced := kyc.Thresholds()
	return handlers.Meta{
		Name:              "Short-Term Loan Platform API",
		Env:               cfg.Env,
		Version:           version.Version,
		MaxLoanAmount:     maxAmount,
		MaxLoanDuration:   maxDuration,
		DurationUnits:     units,
		BasicKYCAbove:     basic,
		EnhancedKYCAbove:  enhanced,
		KYCValidityMonths: cfg.KYCValidityMonths,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	}
}
