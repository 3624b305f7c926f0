package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/mail"
)

type OutboxJob struct {
	ID          int64
	Topic       string
	Payload     []byte
	Status      string
	Attempts    int32
	LastError   string
	AvailableAt time.Time
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]OutboxJob, error)
	MarkDone(ctx context.Context, jobID int64) error
	MarkRetry(ctx context.Context, jobID int64, nextAvailableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, jobID int64, lastError string) error
}

type LoanRepository interface {
	GetByID(ctx context.Context, id string) (*loan.Entity, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Worker struct {
	outboxRepo   OutboxRepository
	loanRepo     LoanRepository
	userRepo     UserRepository
	sender       mail.Sender
	logger       *slog.Logger
	observe      func(topic, result string)
	maxAttempts  int32
	now          func() time.Time
	retryBackoff func(attempt int32) time.Duration
}

func NewWorker(outboxRepo OutboxRepository, loanRepo LoanRepository, userRepo UserRepository, sender mail.Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		outboxRepo:  outboxRepo,
		loanRepo:    loanRepo,
		userRepo:    userRepo,
		sender:      sender,
		logger:      logger,
		observe:     func(string, string) {},
		maxAttempts: 5,
		now:         func() time.Time { return time.Now().UTC() },
		retryBackoff: func(attempt int32) time.Duration {
			if attempt < 1 {
				attempt = 1
			}
			return time.Duration(attempt*15) * time.Second
		},
	}
}

// OnResult registers a callback told the outcome (done, retry, failed,
// skipped) of every processed job.
func (w *Worker) OnResult(fn func(topic, result string)) {
	if fn != nil {
		w.observe = fn
	}
}

func (w *Worker) RunOnce(ctx context.Context, batchSize int32) error {
	jobs, err := w.outboxRepo.ClaimPending(ctx, batchSize)
	if err != nil {
		return err
	}

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("outbox job bookkeeping failed", "job_id", job.ID, "topic", job.Topic, "err", err)
			errs = append(errs, fmt.Errorf("job %d: %w", job.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (w *Worker) processJob(ctx context.Context, job OutboxJob) error {
	switch job.Topic {
	case loan.TopicRepaymentReminder:
		return w.processReminder(ctx, job)
	case mail.TopicSendEmail:
		return w.processEmail(ctx, job)
	default:
		return w.handleJobError(ctx, job, errors.New("unsupported_topic"))
	}
}

func (w *Worker) processReminder(ctx context.Context, job OutboxJob) error {
	var payload loan.ReminderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return w.handleJobError(ctx, job, fmt.Errorf("invalid_payload"))
	}
	if payload.LoanID == "" {
		return w.handleJobError(ctx, job, errors.New("missing_loan_id"))
	}

	l, err := w.loanRepo.GetByID(ctx, payload.LoanID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return w.skip(ctx, job, "loan gone")
		}
		return w.handleJobError(ctx, job, err)
	}
	if l.Status.Terminal() {
		return w.skip(ctx, job, "loan "+string(l.Status))
	}

	var inst *loan.Installment
	for i := range l.Repayments {
		if l.Repayments[i].Seq == payload.Seq {
			inst = &l.Repayments[i]
			break
		}
	}
	if inst == nil || inst.Status == loan.InstallmentPaid {
		return w.skip(ctx, job, "installment settled")
	}

	u, err := w.userRepo.GetByID(ctx, l.UserID)
	if err != nil {
		return w.handleJobError(ctx, job, err)
	}

	body := fmt.Sprintf("Your repayment of $%s is due on %s.",
		inst.Outstanding().StringFixed(2), inst.DueDate.Format("January 2, 2006"))
	msg := mail.Message{
		To:      u.Email,
		Subject: "Loan repayment reminder",
		Body:    body,
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return w.handleJobError(ctx, job, err)
	}
	return w.done(ctx, job)
}

func (w *Worker) processEmail(ctx context.Context, job OutboxJob) error {
	var msg mail.Message
	if err := json.Unmarshal(job.Payload, &msg); err != nil {
		return w.handleJobError(ctx, job, fmt.Errorf("invalid_payload"))
	}
	if msg.To == "" {
		return w.handleJobError(ctx, job, errors.New("missing_recipient"))
	}
	if err := w.sender.Send(ctx, msg); err != nil {
		return w.handleJobError(ctx, job, err)
	}
	return w.done(ctx, job)
}

func (w *Worker) done(ctx context.Context, job OutboxJob) error {
	w.observe(job.Topic, "done")
	return w.outboxRepo.MarkDone(ctx, job.ID)
}

func (w *Worker) skip(ctx context.Context, job OutboxJob, why string) error {
	w.logger.Debug("outbox job skipped", "job_id", job.ID, "topic", job.Topic, "reason", why)
	w.observe(job.Topic, "skipped")
	return w.outboxRepo.MarkDone(ctx, job.ID)
}

func (w *Worker) handleJobError(ctx context.Context, job OutboxJob, err error) error {
	msg := err.Error()
	if job.Attempts >= w.maxAttempts {
		w.logger.Error("outbox job failed", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "err", msg)
		w.observe(job.Topic, "failed")
		return w.outboxRepo.MarkFailed(ctx, job.ID, msg)
	}
	w.logger.Warn("outbox job will retry", "job_id", job.ID, "topic", job.Topic, "attempts", job.Attempts, "err", msg)
	w.observe(job.Topic, "retry")
	next := w.now().Add(w.retryBackoff(job.Attempts))
	return w.outboxRepo.MarkRetry(ctx, job.ID, next, msg)
}
