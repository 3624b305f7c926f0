package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad", ""), http.StatusBadRequest},
		{Unauthenticated("unauthorized", ""), http.StatusUnauthorized},
		{Forbidden("forbidden", ""), http.StatusForbidden},
		{NotFound("not_found", ""), http.StatusNotFound},
		{Conflict("invalid_state", ""), http.StatusConflict},
		{RateLimited("too_many_requests", ""), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("loan_not_found", "")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestUnexpectedKeepsCauseOutOfCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unexpected(cause)

	assert.Equal(t, "internal_error", err.Code)
	assert.ErrorIs(t, err, cause)
}

func TestWithCopiesDetails(t *testing.T) {
	base := Forbidden("KYC_LEVEL_INSUFFICIENT", "")
	withLevel := base.With("requiredLevel", "enhanced")

	require.Nil(t, base.Details)
	assert.Equal(t, "enhanced", withLevel.Details["requiredLevel"])
	assert.True(t, IsKind(withLevel, KindAuthorization))
}
