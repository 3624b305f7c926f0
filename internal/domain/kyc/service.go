package kyc

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/google/uuid"
)

const (
	EventStatusChanged = "kyc_status_changed"
	EventSubmitted     = "kyc_submitted"
)

var allowedUploadTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	SignedURL(rawURL string, ttl time.Duration) (string, error)
}

type Notifier interface {
	NotifyUser(userID, event string, data any)
	NotifyAdmins(event string, data any)
}

type EmailQueue interface {
	QueueEmail(ctx context.Context, to, subject, body string) error
}

type Options struct {
	ValidityMonths int
	MaxUploadBytes int64
	SignedURLTTL   time.Duration
}

type Service struct {
	repo     Repository
	store    ObjectStore
	notifier Notifier
	emails   EmailQueue
	audit    *audit.Recorder
	logger   *slog.Logger
	opts     Options
	now      func() time.Time
}

func NewService(repo Repository, store ObjectStore, notifier Notifier, emails EmailQueue, recorder *audit.Recorder, logger *slog.Logger, opts Options) *Service {
	if opts.ValidityMonths <= 0 {
		opts.ValidityMonths = 12
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		store:    store,
		notifier: notifier,
		emails:   emails,
		audit:    recorder,
		logger:   logger,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Requirements(amount string) (Requirement, error) {
	a, err := parseAmount(amount)
	if err != nil || a.IsNegative() {
		return Requirement{}, apperr.Validation("invalid_amount", "Invalid amount")
	}
	return RequirementForAmount(a), nil
}

func (s *Service) Start(ctx context.Context, userID, level string) (*StatusView, error) {
	lvl := RequestedLevel(level)
	c, err := s.repo.Mutate(ctx, userID, func(c *Case) error {
		c.Level = lvl
		return c.advance(ActionStart, userID, fmt.Sprintf("User started KYC at level %s", lvl), s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(c)
	return s.view(c), nil
}

// Upload is one multipart file destined for a document slot.
type Upload struct {
	Field       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadResult struct {
	StatusView
	DocumentImages []string `json:"document_images"`
}

func (s *Service) UploadDocuments(ctx context.Context, userID string, uploads []Upload) (*UploadResult, error) {
	if len(uploads) == 0 {
		return nil, apperr.Validation("no_files_uploaded", "No files uploaded")
	}
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.FileName))
		if _, ok := allowedUploadTypes[ext]; !ok {
			return nil, apperr.Validation("invalid_file_type", "Only JPG, PNG and PDF files are allowed").With("field", u.Field)
		}
		if u.Size > s.opts.MaxUploadBytes {
			return nil, apperr.Validation("file_too_large", "File exceeds the upload size limit").With("field", u.Field)
		}
	}

	stored := map[string]string{}
	fields := make([]string, 0, len(uploads))
	for _, u := range uploads {
		ext := strings.ToLower(filepath.Ext(u.FileName))
		key := fmt.Sprintf("kyc/%s/%s-%s%s", userID, u.Field, uuid.NewString(), ext)
		url, err := s.store.Put(ctx, key, allowedUploadTypes[ext], u.Body)
		if err != nil {
			s.logger.Warn("kyc document store failed", "user_id", userID, "field", u.Field, "err", err)
			continue
		}
		stored[u.Field] = url
		fields = append(fields, u.Field)
	}
	if len(stored) == 0 {
		return nil, apperr.Validation("no_documents", "Files were received but no valid URLs were produced")
	}

	c, err := s.repo.Mutate(ctx, userID, func(c *Case) error {
		if c.Level == LevelNone || c.Level == "" {
			c.Level = LevelBasic
		}
		urls := make([]string, 0, len(stored))
		for _, field := range fields {
			urls = append(urls, stored[field])
		}
		c.AddDocumentImages(urls...)
		if u := stored["front"]; u != "" {
			c.IDVerification.FrontURL = u
		}
		if u := stored["back"]; u != "" {
			c.IDVerification.BackURL = u
		}
		if u := stored["selfie"]; u != "" {
			c.IDVerification.SelfieURL = u
		}
		return c.advance(ActionUpload, userID, "Uploaded: "+strings.Join(fields, ", "), s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishStatus(c)
	return &UploadResult{StatusView: *s.view(c), DocumentImages: c.IDVerification.DocumentImages}, nil
}

type DocumentRef struct {
	URL string `json:"url"`
}

type SubmitPersonalInfo struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	PhoneNumber string `json:"phone_number"`
}

type SubmitIdentity struct {
	IDType         string      `json:"id_type"`
	IDNumber       string      `json:"id_number"`
	IDDocument     DocumentRef `json:"id_document"`
	IDDocumentBack DocumentRef `json:"id_document_back"`
}

type SubmitDocuments struct {
	ProofOfAddress DocumentRef `json:"proof_of_address"`
	IncomeProof    DocumentRef `json:"income_proof"`
	Selfie         DocumentRef `json:"selfie"`
}

type SubmitContext struct {
	KYCLevelRequired string `json:"kyc_level_required"`
}

type SubmitInput struct {
	PersonalInfo        *SubmitPersonalInfo `json:"personal_info"`
	Address             string              `json:"address"`
	Identity            *SubmitIdentity     `json:"identity"`
	Documents           SubmitDocuments     `json:"documents"`
	VerificationContext SubmitContext       `json:"verification_context"`
}

// validate checks fields in a fixed order so each gap has one reported reason.
func (in SubmitInput) validate(level Level) (time.Time, error) {
	pi := in.PersonalInfo
	if pi == nil || blank(pi.FullName) || blank(pi.DateOfBirth) || blank(pi.PhoneNumber) {
		return time.Time{}, apperr.Validation("missing_personal_info", "Missing personal info")
	}
	if blank(in.Address) {
		return time.Time{}, apperr.Validation("missing_address", "Missing address")
	}
	id := in.Identity
	if id == nil || blank(id.IDNumber) || blank(id.IDType) || blank(id.IDDocument.URL) {
		return time.Time{}, apperr.Validation("missing_identity_document", "Missing identity document")
	}
	if blank(in.Documents.ProofOfAddress.URL) {
		return time.Time{}, apperr.Validation("missing_proof_of_address", "Missing proof of address")
	}
	if level == LevelEnhanced && blank(in.Documents.Selfie.URL) {
		return time.Time{}, apperr.Validation("selfie_required", "Enhanced KYC requires a selfie upload")
	}
	dob, ok := ParseDateOfBirth(pi.DateOfBirth)
	if !ok {
		return time.Time{}, apperr.Validation("invalid_date_of_birth", "Invalid date_of_birth format (use YYYY-MM-DD or DD/MM/YYYY)")
	}
	return dob, nil
}

func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*StatusView, error) {
	level := RequestedLevel(in.VerificationContext.KYCLevelRequired)
	dob, err := in.validate(level)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c, err := s.repo.Mutate(ctx, userID, func(c *Case) error {
		c.Level = level
		c.SubmittedAt = &now
		c.PersonalInfo = &PersonalInfo{
			FullName:    strings.TrimSpace(in.PersonalInfo.FullName),
			DateOfBirth: &dob,
			PhoneNumber: strings.TrimSpace(in.PersonalInfo.PhoneNumber),
		}
		c.AddressVerification = &AddressVerification{
			Street:        strings.TrimSpace(in.Address),
			ProofDocument: in.Documents.ProofOfAddress.URL,
		}
		c.IDVerification.DocumentType = NormalizeIDType(in.Identity.IDType)
		c.IDVerification.DocumentNumber = strings.TrimSpace(in.Identity.IDNumber)
		c.IDVerification.FrontURL = in.Identity.IDDocument.URL
		if u := in.Identity.IDDocumentBack.URL; u != "" {
			c.IDVerification.BackURL = u
		}
		c.IDVerification.Verified = false
		c.AddDocumentImages(in.Identity.IDDocument.URL, in.Identity.IDDocumentBack.URL)
		if u := in.Documents.IncomeProof.URL; u != "" {
			c.FinancialInfo = &FinancialInfo{IncomeProof: u}
		}
		if u := in.Documents.Selfie.URL; u != "" {
			c.IDVerification.SelfieURL = u
			c.BiometricVerification = &BiometricVerification{LivenessCheck: true}
		}
		return c.advance(ActionSubmit, userID, "User submitted KYC for review", now)
	})
	if err != nil {
		return nil, err
	}

	s.publishStatus(c)
	if s.notifier != nil {
		s.notifier.NotifyAdmins(EventSubmitted, map[string]any{"case_id": c.ID, "user_id": c.UserID, "level": c.Level})
	}
	return s.view(c), nil
}

func (s *Service) Status(ctx context.Context, userID string) (*StatusView, error) {
	c, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return &StatusView{Status: StatusNotStarted, Level: LevelNone}, nil
		}
		return nil, err
	}
	return s.view(c), nil
}

type ReviewInput struct {
	Level  string `json:"level"`
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

func (s *Service) Approve(ctx context.Context, actor audit.Actor, caseID string, in ReviewInput) (*Case, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionKYCApprove, TargetType: "KYC", TargetID: caseID}
	if _, err := uuid.Parse(caseID); err != nil {
		s.audit.Failure(ctx, entry, "invalid_id")
		return nil, apperr.Validation("invalid_id", "Invalid KYC id")
	}

	var override Level
	if !blank(in.Level) {
		lvl, ok := ParseLevel(in.Level)
		if !ok || lvl == LevelNone {
			s.audit.Failure(ctx, entry, "invalid_level")
			return nil, apperr.Validation("invalid_level", "Level must be basic or enhanced")
		}
		override = lvl
	}

	now := s.now()
	c, err := s.repo.MutateByID(ctx, caseID, func(c *Case) error {
		if override != "" {
			c.Level = override
		}
		if c.Level == LevelNone || c.Level == "" {
			c.Level = LevelBasic
		}
		if err := c.advance(ActionApprove, actor.UserID, strings.TrimSpace(in.Notes), now); err != nil {
			return err
		}
		due := now.AddDate(0, s.opts.ValidityMonths, 0)
		c.VerifiedAt = &now
		c.NextReviewAt = &due
		c.ReviewedBy = actor.UserID
		c.ReviewNotes = strings.TrimSpace(in.Notes)
		c.RejectionReason = ""
		c.IDVerification.Verified = true
		if c.AddressVerification != nil {
			c.AddressVerification.Verified = true
		}
		if c.FinancialInfo != nil {
			c.FinancialInfo.Verified = true
		}
		if c.BiometricVerification != nil {
			c.BiometricVerification.VerificationDate = &now
		}
		return nil
	})
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}

	entry.TargetLabel = applicantLabel(c)
	entry.Metadata = map[string]any{"level": c.Level}
	s.audit.Success(ctx, entry)
	s.publishStatus(c)
	s.queueDecisionEmail(ctx, c, "Your identity verification was approved",
		fmt.Sprintf("Your KYC verification has been approved at the %s level.", c.Level))
	return c, nil
}

func (s *Service) Reject(ctx context.Context, actor audit.Actor, caseID string, in ReviewInput) (*Case, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionKYCReject, TargetType: "KYC", TargetID: caseID}
	if _, err := uuid.Parse(caseID); err != nil {
		s.audit.Failure(ctx, entry, "invalid_id")
		return nil, apperr.Validation("invalid_id", "Invalid KYC id")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		s.audit.Failure(ctx, entry, "rejection_reason_required")
		return nil, apperr.Validation("rejection_reason_required", "Rejection reason is required")
	}

	now := s.now()
	c, err := s.repo.MutateByID(ctx, caseID, func(c *Case) error {
		if err := c.advance(ActionReject, actor.UserID, reason, now); err != nil {
			return err
		}
		c.RejectionReason = reason
		c.ReviewedBy = actor.UserID
		c.ReviewNotes = strings.TrimSpace(in.Notes)
		return nil
	})
	if err != nil {
		s.audit.Failure(ctx, entry, apperr.As(err).Code)
		return nil, err
	}

	entry.TargetLabel = applicantLabel(c)
	entry.Metadata = map[string]any{"reason": reason}
	s.audit.Success(ctx, entry)
	s.publishStatus(c)
	s.queueDecisionEmail(ctx, c, "Your identity verification needs attention",
		fmt.Sprintf("Your KYC verification was rejected: %s. You can restart verification from your dashboard.", reason))
	return c, nil
}

type Listing struct {
	Items []Case
	Total int64
}

func (s *Service) Applications(ctx context.Context, f ListFilter) (*Listing, error) {
	now := s.now()
	f.AsOf = now
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Status = EffectiveStatus(items[i].Status, items[i].NextReviewAt, now)
	}
	return &Listing{Items: items, Total: total}, nil
}

func (s *Service) Pending(ctx context.Context, limit, offset int32) (*Listing, error) {
	return s.Applications(ctx, ListFilter{Status: StatusPendingReview, Limit: limit, Offset: offset})
}

func (s *Service) Get(ctx context.Context, actor audit.Actor, caseID string) (*Case, error) {
	if _, err := uuid.Parse(caseID); err != nil {
		return nil, apperr.Validation("invalid_id", "Invalid KYC id")
	}
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	c.Status = EffectiveStatus(c.Status, c.NextReviewAt, s.now())
	s.audit.Success(ctx, audit.Entry{Actor: actor, Action: audit.ActionKYCView, TargetType: "KYC", TargetID: caseID, TargetLabel: applicantLabel(c)})
	return c, nil
}

func (s *Service) SignedDocumentURL(ctx context.Context, actor audit.Actor, rawURL string) (string, time.Duration, error) {
	entry := audit.Entry{Actor: actor, Action: audit.ActionKYCDocumentLink, TargetType: "Document", TargetLabel: rawURL}
	if blank(rawURL) {
		s.audit.Failure(ctx, entry, "missing_url")
		return "", 0, apperr.Validation("missing_url", "Document url is required")
	}
	signed, err := s.store.SignedURL(rawURL, s.opts.SignedURLTTL)
	if err != nil {
		s.audit.Failure(ctx, entry, "invalid_url")
		return "", 0, apperr.Validation("invalid_url", "Document url is not a stored document")
	}
	s.audit.Success(ctx, entry)
	return signed, s.opts.SignedURLTTL, nil
}

var exportHeader = []string{
	"KYC ID", "User Name", "User Email", "Status", "Level",
	"Submitted Date", "Verified Date", "Reviewed By", "Rejection Reason",
}

func (s *Service) Export(ctx context.Context, actor audit.Actor, f ExportFilter, w io.Writer) error {
	items, err := s.repo.ListForExport(ctx, f)
	if err != nil {
		s.audit.Failure(ctx, audit.Entry{Actor: actor, Action: audit.ActionKYCExport, TargetType: "KYC"}, "export_failed")
		return err
	}

	now := s.now()
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, c := range items {
		var name, email string
		if c.Applicant != nil {
			name, email = c.Applicant.FullName, c.Applicant.Email
		}
		row := []string{
			c.ID, name, email,
			string(EffectiveStatus(c.Status, c.NextReviewAt, now)),
			string(c.Level),
			formatDate(c.SubmittedAt), formatDate(c.VerifiedAt),
			c.ReviewedBy, c.RejectionReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	s.audit.Success(ctx, audit.Entry{Actor: actor, Action: audit.ActionKYCExport, TargetType: "KYC", Metadata: map[string]any{"rows": len(items)}})
	return nil
}

func (s *Service) view(c *Case) *StatusView {
	return &StatusView{
		Status:      EffectiveStatus(c.Status, c.NextReviewAt, s.now()),
		Level:       c.Level,
		SubmittedAt: c.SubmittedAt,
		VerifiedAt:  c.VerifiedAt,
	}
}

func (s *Service) publishStatus(c *Case) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUser(c.UserID, EventStatusChanged, s.view(c))
}

func (s *Service) queueDecisionEmail(ctx context.Context, c *Case, subject, body string) {
	if s.emails == nil || c.Applicant == nil || c.Applicant.Email == "" {
		return
	}
	if err := s.emails.QueueEmail(ctx, c.Applicant.Email, subject, body); err != nil {
		s.logger.Warn("kyc decision email enqueue failed", "case_id", c.ID, "err", err)
	}
}

func applicantLabel(c *Case) string {
	if c.Applicant == nil {
		return ""
	}
	return c.Applicant.Email
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
