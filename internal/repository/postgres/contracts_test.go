package postgres

import (
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/kyc"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/loan"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/user"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/jobs"
)

var (
	_ user.Repository            = (*UserRepository)(nil)
	_ auth.UserRepository        = (*UserRepository)(nil)
	_ auth.ResetTokenRepository  = (*ResetTokenRepository)(nil)
	_ kyc.Repository             = (*KYCRepository)(nil)
	_ loan.Repository            = (*LoanRepository)(nil)
	_ loan.TransactionRepository = (*TransactionRepository)(nil)
	_ loan.OutboxRepository      = (*OutboxRepository)(nil)
	_ audit.Repository           = (*AuditRepository)(nil)
	_ jobs.OutboxRepository      = (*OutboxRepository)(nil)
)
