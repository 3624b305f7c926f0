package kyc

import (
	"strings"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/shopspring/decimal"
)

var (
	basicThreshold    = decimal.NewFromInt(1000)
	enhancedThreshold = decimal.NewFromInt(5000)
)

type Requirement struct {
	Required bool   `json:"required"`
	Level    Level  `json:"level"`
	Message  string `json:"message"`
}

// Thresholds returns the amounts above which basic and enhanced KYC apply.
func Thresholds() (basic, enhanced decimal.Decimal) {
	return basicThreshold, enhancedThreshold
}

// RequirementForAmount is the single source of the amount-to-tier policy.
// Both thresholds are strict: exactly 1000 or 5000 does not escalate.
func RequirementForAmount(amount decimal.Decimal) Requirement {
	switch {
	case amount.GreaterThan(enhancedThreshold):
		return Requirement{Required: true, Level: LevelEnhanced, Message: "Enhanced KYC required"}
	case amount.GreaterThan(basicThreshold):
		return Requirement{Required: true, Level: LevelBasic, Message: "Basic KYC required"}
	default:
		return Requirement{Required: false, Level: LevelNone, Message: "No KYC required"}
	}
}

// Meets reports whether a user's verification satisfies the required tier.
func Meets(status Status, userLevel, required Level) bool {
	return status == StatusVerified && userLevel.Rank() >= required.Rank()
}

// EffectiveStatus derives expiry at read time: a verification whose review
// date has passed reads as expired. The stored status is left untouched.
func EffectiveStatus(status Status, reviewDueAt *time.Time, now time.Time) Status {
	if status == StatusVerified && reviewDueAt != nil && !now.Before(*reviewDueAt) {
		return StatusExpired
	}
	return status
}

// Standing is the caller's verification state as seen by the loan gate.
type Standing struct {
	Status      Status
	Level       Level
	ReviewDueAt *time.Time
}

// Gate enforces the tier a loan amount requires against a user's standing.
func Gate(amount decimal.Decimal, s Standing, now time.Time) error {
	req := RequirementForAmount(amount)
	if !req.Required {
		return nil
	}
	status := EffectiveStatus(s.Status, s.ReviewDueAt, now)
	level := s.Level
	if level == "" {
		level = LevelNone
	}
	if status == "" {
		status = StatusNotStarted
	}
	if status != StatusVerified {
		return apperr.Forbidden("KYC_VERIFICATION_REQUIRED", "KYC verification is required for this loan amount").
			With("requiredLevel", req.Level).
			With("currentStatus", status).
			With("redirectTo", "/kyc/verify")
	}
	if !Meets(status, level, req.Level) {
		return apperr.Forbidden("KYC_LEVEL_INSUFFICIENT", "Your KYC level is insufficient for this loan amount").
			With("requiredLevel", req.Level).
			With("currentLevel", level).
			With("redirectTo", "/kyc/verify")
	}
	return nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}
