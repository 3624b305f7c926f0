package user

import (
	"testing"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/stretchr/testify/assert"
)

func TestMirrorFromCaseVerified(t *testing.T) {
	verified := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	due := verified.AddDate(1, 0, 0)
	c := &kyc.Case{
		Status:       kyc.StatusVerified,
		Level:        kyc.LevelEnhanced,
		VerifiedAt:   &verified,
		NextReviewAt: &due,
		IDVerification: kyc.IDVerification{
			DocumentType: kyc.IDPassport,
			FrontURL:     "front",
			SelfieURL:    "selfie",
		},
		AddressVerification: &kyc.AddressVerification{Street: "12 Marina", ProofDocument: "poa"},
		History: []kyc.HistoryEntry{
			{Action: kyc.ActionSubmit}, {Action: kyc.ActionReject}, {Action: kyc.ActionSubmit}, {Action: kyc.ActionApprove},
		},
	}

	m := MirrorFromCase(c)
	assert.Equal(t, kyc.StatusVerified, m.Status)
	assert.Equal(t, kyc.LevelEnhanced, m.Level)
	assert.Equal(t, &verified, m.VerifiedAt)
	assert.Equal(t, &due, m.ReviewDueAt)
	assert.Equal(t, 2, m.VerificationAttempts)
	assert.Equal(t, "poa", m.ProofOfAddressURL)
	assert.Empty(t, m.RejectionReason)

	p := ProfileFromCase(c)
	assert.Equal(t, "12 Marina", p.Address)
	assert.Nil(t, p.DateOfBirth)
}

func TestMirrorFromCaseRejectedCarriesReason(t *testing.T) {
	due := time.Now()
	m := MirrorFromCase(&kyc.Case{Status: kyc.StatusRejected, Level: kyc.LevelBasic, RejectionReason: "blurry", NextReviewAt: &due})
	assert.Equal(t, "blurry", m.RejectionReason)
	assert.Nil(t, m.ReviewDueAt)
}

func TestSummaryOmitsCredentials(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.c", PasswordHash: "$2a$secret", UserType: RoleUser}
	s := u.Summary()
	assert.Equal(t, "u1", s.ID)
	assert.NotContains(t, s.Email, "secret")
	assert.False(t, u.IsAdmin())
	assert.True(t, u.CanResetPassword())
}
