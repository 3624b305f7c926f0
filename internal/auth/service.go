package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
)

// ForgotPasswordMessage is returned whether or not the address is known.
const ForgotPasswordMessage = "If the email exists, a reset link has been sent."

type UserRepository interface {
	Create(ctx context.Context, in user.CreateInput) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type ResetTokenRepository interface {
	// Create stores a new token hash after burning the user's outstanding ones.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// Consume marks an unused, unexpired token as used and returns its owner.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)
	InvalidateForUser(ctx context.Context, userID string) error
}

type EmailQueue interface {
	QueueEmail(ctx context.Context, to, subject, body string) error
}

type Options struct {
	AccessTTL     time.Duration
	ResetTTL      time.Duration
	ResetLinkBase string
}

type Service struct {
	users   UserRepository
	resets  ResetTokenRepository
	emails  EmailQueue
	jwt     *JWTManager
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
	randTok func() (string, error)
}

type Session struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

func NewService(users UserRepository, resets ResetTokenRepository, emails EmailQueue, jwt *JWTManager, logger *slog.Logger, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:   users,
		resets:  resets,
		emails:  emails,
		jwt:     jwt,
		logger:  logger,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		randTok: randomToken,
	}
}

func (s *Service) AccessTTL() time.Duration {
	return s.opts.AccessTTL
}

type RegisterInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	DateOfBirth string `json:"date_of_birth"`
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, apperr.Validation("missing_name", "First and last name are required")
	}
	email := user.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("invalid_email", "A valid email is required")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, apperr.Validation("weak_password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}
	var dob *time.Time
	if v := strings.TrimSpace(in.DateOfBirth); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, apperr.Validation("invalid_date_of_birth", "date_of_birth must be YYYY-MM-DD")
		}
		dob = &t
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("user_exists", "User already exists")
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	u, err := s.users.Create(ctx, user.CreateInput{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		DateOfBirth:  dob,
	})
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Unauthenticated("invalid_credentials", "Invalid credentials")
		}
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, apperr.Unauthenticated("invalid_credentials", "Invalid credentials")
	}
	if u.AccountStatus == user.AccountSuspended || u.AccountStatus == user.AccountClosed {
		return nil, apperr.Forbidden("account_inactive", "This account is not active")
	}
	return s.session(u)
}

func (s *Service) Me(ctx context.Context, userID string) (*user.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ForgotPassword never reveals whether the address exists: every outcome,
// including internal failures, yields the same message.
func (s *Service) ForgotPassword(ctx context.Context, email string) string {
	addr := user.NormalizeEmail(email)
	if addr == "" {
		return ForgotPasswordMessage
	}
	u, err := s.users.GetByEmail(ctx, addr)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			s.logger.Error("forgot password lookup failed", "err", err)
		}
		return ForgotPasswordMessage
	}
	if !u.CanResetPassword() {
		return ForgotPasswordMessage
	}

	raw, err := s.randTok()
	if err != nil {
		s.logger.Error("reset token generation failed", "err", err)
		return ForgotPasswordMessage
	}
	if err := s.resets.Create(ctx, u.ID, hashToken(raw), s.now().Add(s.opts.ResetTTL)); err != nil {
		s.logger.Error("reset token store failed", "user_id", u.ID, "err", err)
		return ForgotPasswordMessage
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.opts.ResetLinkBase, "/"), raw)
	body := fmt.Sprintf("We received a request to reset your password.\n\nReset it here: %s\n\nThis link expires in %d minutes. If you did not ask for this, ignore this email.",
		link, int(s.opts.ResetTTL.Minutes()))
	if err := s.emails.QueueEmail(ctx, u.Email, "Reset your password", body); err != nil {
		s.logger.Error("reset email enqueue failed", "user_id", u.ID, "err", err)
	}
	return ForgotPasswordMessage
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("missing_token", "Reset token is required")
	}
	if len(newPassword) < MinPasswordLength {
		return apperr.Validation("weak_password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	userID, err := s.resets.Consume(ctx, hashToken(token), s.now())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.Validation("invalid_or_expired_token", "Reset link is invalid or has expired")
		}
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.CanResetPassword() {
		return apperr.Forbidden("account_inactive", "This account cannot reset its password")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return apperr.Unexpected(err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.resets.InvalidateForUser(ctx, u.ID); err != nil {
		s.logger.Warn("reset token cleanup failed", "user_id", u.ID, "err", err)
	}
	return nil
}

func (s *Service) session(u *user.User) (*Session, error) {
	token, err := s.jwt.MintAccess(u.ID, u.Email, string(u.UserType), s.opts.AccessTTL)
	if err != nil {
		return nil, apperr.Unexpected(err)
	}
	return &Session{Token: token, User: *u}, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ClientIP(r *http.Request) string {
	xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
