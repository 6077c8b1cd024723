package auth

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the auth service.  Callers test them with
// errors.Is; most are wrapped with a descriptive detail.  None of them is
// retried by the service.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid token")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrAccessDenied          = errors.New("access denied")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenNotFound         = errors.New("token not found")
	ErrSamePassword          = errors.New("new password must differ from the current one")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// errPasswordMismatch marks an ErrInvalidCredentials caused by a wrong
// password on an existing account.  It never leaves the package.
var errPasswordMismatch = errors.New("password mismatch")

// unavailable wraps a repository, cache or broker failure.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependencyUnavailable, op, err)
}
