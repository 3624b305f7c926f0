package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/config"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/db"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/admin"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	loandomain "github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/http/handlers"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/mail"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/observability"
	postgresrepo "github.com/Hackoholiq/Short-Term-Loan-Platform/internal/repository/postgres"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/server"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/storage"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/ws"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	decimal.MarshalJSONWithoutQuotes = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg, "lending-api")
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	metrics := observability.NewMetrics()
	jwtManager := auth.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSigningKey)

	store, err := storage.NewLocalStore(cfg.StorageDir, cfg.PublicBaseURL, jwtManager)
	if err != nil {
		logger.Error("failed to open document store", "err", err)
		os.Exit(1)
	}

	userRepo := postgresrepo.NewUserRepository(pool)
	loanRepo := postgresrepo.NewLoanRepository(pool)
	txRepo := postgresrepo.NewTransactionRepository(pool)
	outboxRepo := postgresrepo.NewOutboxRepository(pool)
	kycRepo := postgresrepo.NewKYCRepository(pool, func(action kyc.Action, status kyc.Status) {
		metrics.KYCTransitions.WithLabelValues(string(action), string(status)).Inc()
	})

	recorder := audit.NewRecorder(postgresrepo.NewAuditRepository(pool), logger, metrics.AuditWriteFailures.Inc).Async()
	emails := mail.NewQueue(outboxRepo)
	hub := ws.NewHub()
	notifier := ws.NewNotifier(hub, logger)

	authService := auth.NewService(userRepo, postgresrepo.NewResetTokenRepository(pool), emails, jwtManager, logger, auth.Options{
		AccessTTL:     cfg.JWTAccessTTL,
		ResetTTL:      cfg.PasswordResetTTL,
		ResetLinkBase: cfg.FrontendURL,
	})
	loanService := loandomain.NewService(loanRepo, userRepo, outboxRepo, notifier, logger, loandomain.Options{
		ReminderLead:   cfg.ReminderLeadTime,
		MinCreditScore: int(cfg.MinCreditScore),
	})
	kycService := kyc.NewService(kycRepo, store, notifier, emails, recorder, logger, kyc.Options{
		ValidityMonths: int(cfg.KYCValidityMonths),
		MaxUploadBytes: cfg.MaxUploadBytes,
		SignedURLTTL:   cfg.SignedURLTTL,
	})
	adminService := admin.NewService(userRepo, loanService, loanRepo, txRepo, recorder)

	r := server.NewRouter(cfg, logger, server.Dependencies{
		Pinger:          pool,
		Storage:         store,
		JWTManager:      jwtManager,
		Metrics:         metrics,
		Audit:           recorder,
		AuthHandler:     handlers.NewAuthHandler(authService, auth.CookieConfig{Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}),
		LoanHandler:     handlers.NewLoanHandler(loanService, txRepo, metrics),
		KYCHandler:      handlers.NewKYCHandler(kycService),
		AdminHandler:    handlers.NewAdminHandler(adminService),
		AdminKYCHandler: handlers.NewAdminKYCHandler(kycService),
		FilesHandler:    handlers.NewFilesHandler(store, jwtManager),
		WSHandler:       ws.NewHandler(hub),
	})
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server starting", "addr", cfg.Addr(), "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Warn("audit writes still pending at shutdown", "err", err)
	}
	logger.Info("api server stopped")
}
