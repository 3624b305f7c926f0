package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

const (
	ActionLoanReview      = "LOAN_REVIEW"
	ActionLoanDisburse    = "LOAN_DISBURSE"
	ActionUserPromote     = "USER_PROMOTE"
	ActionUsersList       = "USERS_LIST"
	ActionUserTxView      = "USER_TRANSACTIONS_VIEW"
	ActionReportsView     = "REPORTS_VIEW"
	ActionKYCApprove      = "KYC_APPROVE"
	ActionKYCReject       = "KYC_REJECT"
	ActionKYCView         = "KYC_VIEW"
	ActionKYCExport       = "KYC_EXPORT"
	ActionKYCDocumentLink = "KYC_DOCUMENT_SIGNED_URL"
	ActionRateLimited     = "RATE_LIMIT_EXCEEDED"
)

type Actor struct {
	UserID    string `json:"actor_user_id,omitempty"`
	Email     string `json:"actor_email,omitempty"`
	Role      string `json:"actor_role,omitempty"`
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

type Entry struct {
	ID          int64          `json:"id"`
	Actor       Actor          `json:"actor"`
	Action      string         `json:"action"`
	TargetType  string         `json:"target_type,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	TargetLabel string         `json:"target_label,omitempty"`
	Status      Status         `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type ListFilter struct {
	Action      string
	Status      Status
	ActorUserID string
	TargetType  string
	TargetID    string
	Limit       int32
	Offset      int32
}

type Repository interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f ListFilter) ([]Entry, int64, error)
}

// Recorder writes audit entries without ever failing the caller. A nil
// Recorder is valid and drops entries.
type Recorder struct {
	repo     Repository
	logger   *slog.Logger
	timeout  time.Duration
	onFailed func()
	now      func() time.Time

	mu       sync.Mutex
	async    bool
	closed   bool
	inflight sync.WaitGroup
}

func NewRecorder(repo Repository, logger *slog.Logger, onFailed func()) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if onFailed == nil {
		onFailed = func() {}
	}
	return &Recorder{
		repo:     repo,
		logger:   logger,
		timeout:  3 * time.Second,
		onFailed: onFailed,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Async makes Record return immediately and write in the background.
// Close drains pending writes.
func (r *Recorder) Async() *Recorder {
	r.mu.Lock()
	r.async = true
	r.mu.Unlock()
	return r
}

// Close waits for background writes until ctx is done. Entries recorded
// after Close are written inline.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil || r.repo == nil {
		return
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	// The entry outlives a cancelled request.
	detached := context.WithoutCancel(ctx)

	r.mu.Lock()
	background := r.async && !r.closed
	if background {
		r.inflight.Add(1)
	}
	r.mu.Unlock()

	if !background {
		r.write(detached, e)
		return
	}
	go func() {
		defer r.inflight.Done()
		r.write(detached, e)
	}()
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	writeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.repo.Insert(writeCtx, e); err != nil {
		r.onFailed()
		r.logger.Warn("audit write failed", "action", e.Action, "target_type", e.TargetType, "target_id", e.TargetID, "err", err)
	}
}

func (r *Recorder) Success(ctx context.Context, e Entry) {
	e.Status = StatusSuccess
	r.Record(ctx, e)
}

func (r *Recorder) Failure(ctx context.Context, e Entry, reason string) {
	e.Status = StatusFail
	e.Reason = reason
	r.Record(ctx, e)
}

// List is the read side used by the admin audit log view.
func (r *Recorder) List(ctx context.Context, f ListFilter) ([]Entry, int64, error) {
	if r == nil || r.repo == nil {
		return []Entry{}, 0, nil
	}
	return r.repo.List(ctx, f)
}
