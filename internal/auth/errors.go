package auth

import (
	"errors"
	"time"
)

// Kind classifies a failure the adapter layer can map to a transport status.
type Kind string

const (
	KindValidationFailed        Kind = "validation_failed"
	KindDuplicateEmail          Kind = "duplicate_email"
	KindInvalidCredentials      Kind = "invalid_credentials"
	KindAccountLocked           Kind = "account_locked"
	KindInvalidOrExpiredToken   Kind = "invalid_or_expired_token"
	KindRefreshRevokedOrExpired Kind = "refresh_revoked_or_expired"
	KindUnauthenticated         Kind = "unauthenticated"
	KindForbidden               Kind = "forbidden"
)

// Error is the only error type the Service hands back for expected outcomes.
// Two errors are equal under errors.Is when their kinds match.
type Error struct {
	Kind    Kind
	Message string
	// RetryAt is set for account_locked.
	RetryAt time.Time
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidationFailed        = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrDuplicateEmail          = &Error{Kind: KindDuplicateEmail, Message: "email already registered"}
	ErrInvalidCredentials      = &Error{Kind: KindInvalidCredentials, Message: "invalid credentials"}
	ErrAccountLocked           = &Error{Kind: KindAccountLocked, Message: "account locked, try again later"}
	ErrInvalidOrExpiredToken   = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid or expired token"}
	ErrRefreshRevokedOrExpired = &Error{Kind: KindRefreshRevokedOrExpired, Message: "refresh token revoked or expired"}
	ErrUnauthenticated         = &Error{Kind: KindUnauthenticated, Message: "not authenticated"}
	ErrForbidden               = &Error{Kind: KindForbidden, Message: "forbidden"}

	// ErrInvalidRefreshToken is what Refresh reports for a token that fails
	// verification or whose owner no longer resolves.
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidOrExpiredToken, Message: "invalid refresh token"}
)

// ErrNotFound is returned by directory lookups. It never leaves the package
// through Service.
var ErrNotFound = errors.New("not found")

func validationError(message string) *Error {
	return &Error{Kind: KindValidationFailed, Message: message}
}

func lockedError(until time.Time) *Error {
	return &Error{Kind: KindAccountLocked, Message: ErrAccountLocked.Message, RetryAt: until}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
