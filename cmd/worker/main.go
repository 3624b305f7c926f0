package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/config"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/db"
	loandomain "github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/jobs"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/mail"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/observability"
	postgresrepo "github.com/Hackoholiq/Short-Term-Loan-Platform/internal/repository/postgres"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg, "lending-worker")
	if err != nil {
		logger.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var sender mail.Sender = mail.NewLogSender(logger)
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     int(cfg.SMTPPort),
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
	} else {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
	}

	metrics := observability.NewMetrics()
	userRepo := postgresrepo.NewUserRepository(pool)
	loanRepo := postgresrepo.NewLoanRepository(pool)
	outboxRepo := postgresrepo.NewOutboxRepository(pool)

	worker := jobs.NewWorker(outboxRepo, loanRepo, userRepo, sender, logger)
	worker.OnResult(func(topic, result string) {
		metrics.OutboxJobs.WithLabelValues(topic, result).Inc()
	})
	loans := loandomain.NewService(loanRepo, userRepo, outboxRepo, nil, logger, loandomain.Options{
		ReminderLead:   cfg.ReminderLeadTime,
		MinCreditScore: int(cfg.MinCreditScore),
	})

	interval := cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started", "interval", interval.String(), "batch_size", cfg.WorkerBatchSize)
	for {
		select {
		case <-sigCtx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCtx, runCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := worker.RunOnce(runCtx, cfg.WorkerBatchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker run failed", "err", err)
			}
			if n, err := loans.SweepOverdue(runCtx); err != nil {
				logger.Error("overdue sweep failed", "err", err)
			} else if n > 0 {
				logger.Info("loans marked late", "count", n)
			}
			runCancel()
		}
	}
}
