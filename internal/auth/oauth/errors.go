package oauth

import (
	"errors"
	"fmt"
)

// Error codes for OAuth flow failures.
const (
	ErrStateMismatch    = "state_mismatch"
	ErrExchangeFailed   = "exchange_failed"
	ErrRefreshFailed    = "refresh_failed"
	ErrNotAuthenticated = "not_authenticated"
	ErrSessionError     = "session_error"
)

// AuthError is returned by every Manager operation that fails.
type AuthError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, Cause: cause}
}

// IsCode reports whether err is an AuthError carrying code.
func IsCode(err error, code string) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code == code
	}
	return false
}
