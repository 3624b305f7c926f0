package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userRepoMock struct {
	byID map[string]*user.User
	next int
}

func (m *userRepoMock) Create(_ context.Context, in user.CreateInput) (*user.User, error) {
	m.next++
	u := &user.User{
		ID:            "u" + string(rune('0'+m.next)),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		PasswordHash:  in.PasswordHash,
		UserType:      user.RoleUser,
		AccountStatus: user.AccountActive,
	}
	m.byID[u.ID] = u
	return u, nil
}

func (m *userRepoMock) GetByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.NotFound("user_not_found", "User not found")
}

func (m *userRepoMock) GetByEmail(_ context.Context, email string) (*user.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user_not_found", "User not found")
}

func (m *userRepoMock) UpdatePassword(_ context.Context, userID, hash string) error {
	m.byID[userID].PasswordHash = hash
	return nil
}

type resetToken struct {
	userID    string
	expiresAt time.Time
	used      bool
}

type resetRepoMock struct {
	tokens    map[string]*resetToken
	createErr error
}

func (m *resetRepoMock) Create(_ context.Context, userID, hash string, expiresAt time.Time) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, t := range m.tokens {
		if t.userID == userID {
			t.used = true
		}
	}
	m.tokens[hash] = &resetToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *resetRepoMock) Consume(_ context.Context, hash string, now time.Time) (string, error) {
	t, ok := m.tokens[hash]
	if !ok || t.used || !now.Before(t.expiresAt) {
		return "", apperr.NotFound("reset_token_not_found", "Token not found")
	}
	t.used = true
	return t.userID, nil
}

func (m *resetRepoMock) InvalidateForUser(_ context.Context, userID string) error {
	for _, t := range m.tokens {
		if t.userID == userID {
			t.used = true
		}
	}
	return nil
}

type sentEmail struct{ to, subject, body string }

type emailQueueMock struct{ sent []sentEmail }

func (m *emailQueueMock) QueueEmail(_ context.Context, to, subject, body string) error {
	m.sent = append(m.sent, sentEmail{to, subject, body})
	return nil
}

type fixture struct {
	svc    *Service
	users  *userRepoMock
	resets *resetRepoMock
	emails *emailQueueMock
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  &userRepoMock{byID: map[string]*user.User{}},
		resets: &resetRepoMock{tokens: map[string]*resetToken{}},
		emails: &emailQueueMock{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewService(f.users, f.resets, f.emails, NewJWTManager("iss", "aud", "secret"), logger, Options{
		ResetLinkBase: "https://app.example.com/",
	})
	f.svc.now = func() time.Time { return f.now }
	f.svc.randTok = func() (string, error) { return "raw-token", nil }
	return f
}

func (f *fixture) register(t *testing.T, email string) *Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Obi", Email: email, Password: "password1",
	})
	require.NoError(t, err)
	return s
}

func TestRegisterIssuesToken(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "  Ada@Example.com ")

	assert.Equal(t, "ada@example.com", s.User.Email)
	assert.NotEqual(t, "password1", f.users.byID[s.User.ID].PasswordHash)

	claims, err := f.svc.jwt.Parse(s.Token)
	require.NoError(t, err)
	assert.Equal(t, s.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]RegisterInput{
		"missing_name":          {LastName: "Obi", Email: "a@b.co", Password: "password1"},
		"invalid_email":         {FirstName: "A", LastName: "B", Email: "nope", Password: "password1"},
		"weak_password":         {FirstName: "A", LastName: "B", Email: "a@b.co", Password: "short"},
		"invalid_date_of_birth": {FirstName: "A", LastName: "B", Email: "a@b.co", Password: "password1", DateOfBirth: "01-31-1990"},
	}
	for code, in := range cases {
		t.Run(code, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, code, apperr.As(err).Code)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		FirstName: "Ada", LastName: "Obi", Email: "ADA@example.com", Password: "password1",
	})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")

	s, err := f.svc.Login(context.Background(), "ADA@example.com", "password1")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Token)

	_, err = f.svc.Login(context.Background(), "ada@example.com", "wrong-pass")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))

	_, err = f.svc.Login(context.Background(), "ghost@example.com", "password1")
	assert.True(t, apperr.IsKind(err, apperr.KindAuthentication))
}

func TestForgotPasswordGenericForUnknownEmail(t *testing.T) {
	f := newFixture(t)
	msg := f.svc.ForgotPassword(context.Background(), "ghost@example.com")
	assert.Equal(t, ForgotPasswordMessage, msg)
	assert.Empty(t, f.emails.sent)
}

func TestForgotPasswordSwallowsStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")
	f.resets.createErr = errors.New("db down")

	assert.Equal(t, ForgotPasswordMessage, f.svc.ForgotPassword(context.Background(), "ada@example.com"))
	assert.Empty(t, f.emails.sent)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "ada@example.com")

	msg := f.svc.ForgotPassword(context.Background(), "ada@example.com")
	assert.Equal(t, ForgotPasswordMessage, msg)
	require.Len(t, f.emails.sent, 1)
	assert.Equal(t, "ada@example.com", f.emails.sent[0].to)
	assert.Contains(t, f.emails.sent[0].body, "https://app.example.com/reset-password?token=raw-token")

	// only the hash is stored
	_, rawStored := f.resets.tokens["raw-token"]
	assert.False(t, rawStored)
	_, hashStored := f.resets.tokens[hashToken("raw-token")]
	assert.True(t, hashStored)

	require.NoError(t, f.svc.ResetPassword(context.Background(), "raw-token", "new-password"))
	assert.True(t, CheckPassword(f.users.byID[s.User.ID].PasswordHash, "new-password"))

	err := f.svc.ResetPassword(context.Background(), "raw-token", "another-pass")
	require.Error(t, err)
	assert.Equal(t, "invalid_or_expired_token", apperr.As(err).Code)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com")
	f.svc.ForgotPassword(context.Background(), "ada@example.com")

	f.now = f.now.Add(31 * time.Minute)
	err := f.svc.ResetPassword(context.Background(), "raw-token", "new-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestResetPasswordRejectsSuspendedAccount(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "ada@example.com")
	f.svc.ForgotPassword(context.Background(), "ada@example.com")
	f.users.byID[s.User.ID].AccountStatus = user.AccountSuspended

	err := f.svc.ResetPassword(context.Background(), "raw-token", "new-password")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAuthorization))
}

func TestForgotPasswordSkipsClosedAccount(t *testing.T) {
	f := newFixture(t)
	s := f.register(t, "ada@example.com")
	f.users.byID[s.User.ID].AccountStatus = user.AccountClosed

	f.svc.ForgotPassword(context.Background(), "ada@example.com")
	assert.Empty(t, f.emails.sent)
	assert.Empty(t, f.resets.tokens)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
	assert.False(t, strings.Contains(ClientIP(r), ","))
}
