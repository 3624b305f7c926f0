package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
)

// Error is the typed failure returned by services. Code is a stable snake_case
// identifier safe to render to clients; cause is never rendered.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.cause
}

// With returns a copy carrying an extra detail field.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *Error     { return newError(KindValidation, code, msg) }
func Unauthenticated(code, msg string) *Error { return newError(KindAuthentication, code, msg) }
func Forbidden(code, msg string) *Error      { return newError(KindAuthorization, code, msg) }
func NotFound(code, msg string) *Error       { return newError(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error       { return newError(KindConflict, code, msg) }
func RateLimited(code, msg string) *Error    { return newError(KindRateLimited, code, msg) }

// Unexpected wraps an infrastructure failure. The cause is kept for logging only.
func Unexpected(cause error) *Error {
	return &Error{Kind: KindUnexpected, Code: "internal_error", Message: "Server error", cause: cause}
}

// As extracts an *Error from err, wrapping unknown errors as Unexpected.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Unexpected(err)
}

func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func HTTPStatus(err error) int {
	switch As(err).Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
