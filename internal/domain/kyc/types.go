package kyc

import (
	"context"
	"strings"
	"time"
)

type Status string

const (
	StatusNotStarted    Status = "not_started"
	StatusInProgress    Status = "in_progress"
	StatusPendingReview Status = "pending_review"
	StatusVerified      Status = "verified"
	StatusRejected      Status = "rejected"
	StatusExpired       Status = "expired"
)

func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusNotStarted, StatusInProgress, StatusPendingReview, StatusVerified, StatusRejected, StatusExpired:
		return s, true
	}
	return "", false
}

type Level string

const (
	LevelNone     Level = "none"
	LevelBasic    Level = "basic"
	LevelEnhanced Level = "enhanced"
)

// Rank orders levels so a higher verification satisfies a lower requirement.
func (l Level) Rank() int {
	switch l {
	case LevelBasic:
		return 1
	case LevelEnhanced:
		return 2
	default:
		return 0
	}
}

func ParseLevel(raw string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(raw)))
	switch l {
	case LevelNone, LevelBasic, LevelEnhanced:
		return l, true
	}
	return "", false
}

// RequestedLevel maps a client-supplied level onto a workable tier.
// Anything other than enhanced starts a basic verification.
func RequestedLevel(raw string) Level {
	if l, _ := ParseLevel(raw); l == LevelEnhanced {
		return LevelEnhanced
	}
	return LevelBasic
}

type IDType string

const (
	IDPassport       IDType = "passport"
	IDNationalID     IDType = "national_id"
	IDDriversLicense IDType = "drivers_license"
	IDVotersCard     IDType = "voters_card"
	IDOther          IDType = "other"
)

func NormalizeIDType(raw string) IDType {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "passport", "national_id", "drivers_license", "voters_card", "other":
		return IDType(v)
	case "drivers_licence", "driver_licence", "driver_license":
		return IDDriversLicense
	case "nationalid", "national-id":
		return IDNationalID
	default:
		return IDOther
	}
}

type PersonalInfo struct {
	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
}

type IDVerification struct {
	DocumentType   IDType   `json:"document_type,omitempty"`
	DocumentNumber string   `json:"document_number,omitempty"`
	DocumentImages []string `json:"document_images"`
	FrontURL       string   `json:"front_url,omitempty"`
	BackURL        string   `json:"back_url,omitempty"`
	SelfieURL      string   `json:"selfie_url,omitempty"`
	Verified       bool     `json:"verified"`
}

type AddressVerification struct {
	Street        string `json:"street"`
	ProofDocument string `json:"proof_document"`
	Verified      bool   `json:"verified"`
}

type FinancialInfo struct {
	IncomeProof string `json:"income_proof"`
	Verified    bool   `json:"verified"`
}

type BiometricVerification struct {
	LivenessCheck    bool       `json:"liveness_check"`
	VerificationDate *time.Time `json:"verification_date"`
}

type HistoryEntry struct {
	Action      Action    `json:"action"`
	Status      Status    `json:"status"`
	Level       Level     `json:"level"`
	PerformedBy string    `json:"performed_by"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Applicant struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Case is the authoritative verification record; one per user.
type Case struct {
	ID                    string                 `json:"id"`
	UserID                string                 `json:"user_id"`
	Status                Status                 `json:"status"`
	Level                 Level                  `json:"level"`
	PersonalInfo          *PersonalInfo          `json:"personal_info,omitempty"`
	IDVerification        IDVerification         `json:"id_verification"`
	AddressVerification   *AddressVerification   `json:"address_verification,omitempty"`
	FinancialInfo         *FinancialInfo         `json:"financial_info,omitempty"`
	BiometricVerification *BiometricVerification `json:"biometric_verification,omitempty"`
	SubmittedAt           *time.Time             `json:"submitted_at"`
	VerifiedAt            *time.Time             `json:"verified_at"`
	ReviewedBy            string                 `json:"reviewed_by,omitempty"`
	ReviewNotes           string                 `json:"review_notes,omitempty"`
	RejectionReason       string                 `json:"rejection_reason,omitempty"`
	NextReviewAt          *time.Time             `json:"next_review_at,omitempty"`
	History               []HistoryEntry         `json:"history,omitempty"`
	Applicant             *Applicant             `json:"applicant,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// AddDocumentImages appends urls not already present, preserving order.
func (c *Case) AddDocumentImages(urls ...string) {
	seen := make(map[string]struct{}, len(c.IDVerification.DocumentImages))
	for _, u := range c.IDVerification.DocumentImages {
		seen[u] = struct{}{}
	}
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		c.IDVerification.DocumentImages = append(c.IDVerification.DocumentImages, u)
	}
}

// SubmissionCount is the number of times the case was sent for review.
func (c *Case) SubmissionCount() int {
	n := 0
	for _, h := range c.History {
		if h.Action == ActionSubmit {
			n++
		}
	}
	return n
}

type StatusView struct {
	Status      Status     `json:"status"`
	Level       Level      `json:"level"`
	SubmittedAt *time.Time `json:"submitted_at"`
	VerifiedAt  *time.Time `json:"verified_at"`
}

// ListFilter selects cases. Status matches the effective status as of AsOf,
// so expired and verified are told apart by next review date.
type ListFilter struct {
	Status Status
	Level  Level
	Search string
	AsOf   time.Time
	Limit  int32
	Offset int32
}

type ExportFilter struct {
	From *time.Time
	To   *time.Time
}

// MutateFunc edits a locked case in place. Returning an error aborts the write.
type MutateFunc func(c *Case) error

type Repository interface {
	// Mutate locks the user's case, creating a not_started case if none exists,
	// applies fn and persists the case, its new history rows and the user's
	// KYC mirror atomically.
	Mutate(ctx context.Context, userID string, fn MutateFunc) (*Case, error)
	MutateByID(ctx context.Context, caseID string, fn MutateFunc) (*Case, error)
	GetByUserID(ctx context.Context, userID string) (*Case, error)
	GetByID(ctx context.Context, caseID string) (*Case, error)
	List(ctx context.Context, f ListFilter) ([]Case, int64, error)
	ListForExport(ctx context.Context, f ExportFilter) ([]Case, error)
}
