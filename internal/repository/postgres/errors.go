package postgres

import (
	"errors"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"
	pgInvalidText     = "22P02"
)

// translate maps driver errors onto the application taxonomy. notFound is
// returned for empty results so each aggregate keeps its own code.
func translate(err error, notFound *apperr.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Conflict("duplicate", "Record already exists").With("constraint", pgErr.ConstraintName)
		case pgInvalidText:
			// malformed uuid in a lookup reads as a miss
			return notFound
		}
	}
	return err
}

func userNotFound() *apperr.Error {
	return apperr.NotFound("user_not_found", "User not found")
}

func loanNotFound() *apperr.Error {
	return apperr.NotFound("loan_not_found", "Loan not found")
}

func kycNotFound() *apperr.Error {
	return apperr.NotFound("kyc_not_found", "KYC application not found")
}

func tokenNotFound() *apperr.Error {
	return apperr.NotFound("reset_token_not_found", "Reset token not found")
}
