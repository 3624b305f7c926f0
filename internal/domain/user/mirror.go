package user

import (
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
)

// MirrorFromCase projects the authoritative case onto the user record. The
// KYC repository writes the result in the same transaction as the case.
func MirrorFromCase(c *kyc.Case) KYCMirror {
	m := KYCMirror{
		Status:                  c.Status,
		Level:                   c.Level,
		VerifiedAt:              c.VerifiedAt,
		RejectionReason:         c.RejectionReason,
		VerificationAttempts:    c.SubmissionCount(),
		LastVerificationAttempt: c.SubmittedAt,
		DocumentType:            string(c.IDVerification.DocumentType),
		DocumentNumber:          c.IDVerification.DocumentNumber,
		DocumentFrontURL:        c.IDVerification.FrontURL,
		DocumentBackURL:         c.IDVerification.BackURL,
		SelfieURL:               c.IDVerification.SelfieURL,
	}
	if c.Status == kyc.StatusVerified {
		m.ReviewDueAt = c.NextReviewAt
	}
	if c.AddressVerification != nil {
		m.ProofOfAddressURL = c.AddressVerification.ProofDocument
	}
	return m
}

// ProfileUpdate carries contact details the user confirmed during KYC. Empty
// fields leave the stored profile unchanged.
type ProfileUpdate struct {
	Phone       string
	Address     string
	DateOfBirth *time.Time
}

func ProfileFromCase(c *kyc.Case) ProfileUpdate {
	var p ProfileUpdate
	if c.PersonalInfo != nil {
		p.Phone = c.PersonalInfo.PhoneNumber
		p.DateOfBirth = c.PersonalInfo.DateOfBirth
	}
	if c.AddressVerification != nil {
		p.Address = c.AddressVerification.Street
	}
	return p
}
