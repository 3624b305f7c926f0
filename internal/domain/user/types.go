package user

import (
	"context"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type AccountStatus string

const (
	AccountActive      AccountStatus = "active"
	AccountSuspended   AccountStatus = "suspended"
	AccountClosed      AccountStatus = "closed"
	AccountUnderReview AccountStatus = "under_review"
)

// KYCMirror is the denormalized copy of a user's KYC case. It is only ever
// rewritten from the case, see MirrorFromCase.
type KYCMirror struct {
	Status                  kyc.Status `json:"status"`
	Level                   kyc.Level  `json:"level"`
	VerifiedAt              *time.Time `json:"verified_at"`
	RejectionReason         string     `json:"rejection_reason,omitempty"`
	VerificationAttempts    int        `json:"verification_attempts"`
	LastVerificationAttempt *time.Time `json:"last_verification_attempt,omitempty"`
	ReviewDueAt             *time.Time `json:"next_kyc_review_due,omitempty"`
	DocumentType            string     `json:"document_type,omitempty"`
	DocumentNumber          string     `json:"-"`
	DocumentFrontURL        string     `json:"document_front_url,omitempty"`
	DocumentBackURL         string     `json:"document_back_url,omitempty"`
	SelfieURL               string     `json:"selfie_with_document_url,omitempty"`
	ProofOfAddressURL       string     `json:"proof_of_address_url,omitempty"`
}

func (m KYCMirror) Standing() kyc.Standing {
	return kyc.Standing{Status: m.Status, Level: m.Level, ReviewDueAt: m.ReviewDueAt}
}

type User struct {
	ID            string        `json:"id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	Phone         string        `json:"phone,omitempty"`
	Address       string        `json:"address,omitempty"`
	DateOfBirth   *time.Time    `json:"date_of_birth,omitempty"`
	CreditScore   int           `json:"credit_score"`
	UserType      Role          `json:"user_type"`
	AccountStatus AccountStatus `json:"account_status"`
	KYC           KYCMirror     `json:"kyc"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) IsAdmin() bool {
	return u.UserType == RoleAdmin
}

// CanResetPassword excludes accounts that must not regain access by email.
func (u *User) CanResetPassword() bool {
	return u.AccountStatus != AccountSuspended && u.AccountStatus != AccountClosed
}

// Summary is the projection handed to admins. It never carries credentials.
type Summary struct {
	ID            string        `json:"id"`
	FirstName     string        `json:"first_name"`
	LastName      string        `json:"last_name"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	UserType      Role          `json:"user_type"`
	AccountStatus AccountStatus `json:"account_status"`
	CreditScore   int           `json:"credit_score"`
	KYCStatus     kyc.Status    `json:"kyc_status"`
	KYCLevel      kyc.Level     `json:"kyc_level"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (u *User) Summary() Summary {
	return Summary{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		UserType:      u.UserType,
		AccountStatus: u.AccountStatus,
		CreditScore:   u.CreditScore,
		KYCStatus:     u.KYC.Status,
		KYCLevel:      u.KYC.Level,
		CreatedAt:     u.CreatedAt,
	}
}

type CreateInput struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Phone        string
	Address      string
	DateOfBirth  *time.Time
}

type ListFilter struct {
	Limit  int32
	Offset int32
}

type Repository interface {
	Create(ctx context.Context, in CreateInput) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f ListFilter) ([]User, int64, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetRole(ctx context.Context, userID string, role Role) error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
