package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownIdentity      = errors.New("unknown identity")
	ErrNotVerified          = errors.New("account not verified")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountSuspended     = errors.New("account suspended")
	ErrBadCredential        = errors.New("bad credential")
	ErrDuplicateIdentity    = errors.New("identity already registered")
	ErrTokenNotFound        = errors.New("token not found")
	ErrTokenExpired         = errors.New("token expired")
	ErrTokenAlreadyConsumed = errors.New("token already consumed")
	ErrSignatureInvalid     = errors.New("token signature invalid")
	ErrTokenMalformed       = errors.New("token malformed")
	ErrForbidden            = errors.New("access forbidden")
	ErrNotSuspended         = errors.New("account not suspended")

	// ErrAccountNotFound is returned by stores when no record matches. Services
	// translate it; it never reaches the transport layer.
	ErrAccountNotFound = errors.New("account not found")
)

// AccountLockedError reports an active lockout and how long it still runs.
type AccountLockedError struct {
	RemainingSeconds int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d seconds", e.RemainingSeconds)
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// BadCredentialError reports a password mismatch and the attempts left before
// the account locks.
type BadCredentialError struct {
	RemainingAttempts int
}

func (e *BadCredentialError) Error() string {
	return fmt.Sprintf("bad credential, %d attempts remaining", e.RemainingAttempts)
}

func (e *BadCredentialError) Is(target error) bool { return target == ErrBadCredential }

// AccountSuspendedError is a refinement of ErrNotVerified: the account exists
// but an administrator has taken it out of service.
type AccountSuspendedError struct {
	Until  *time.Time
	Reason string
}

func (e *AccountSuspendedError) Error() string {
	if e.Until == nil {
		return "account suspended"
	}
	return fmt.Sprintf("account suspended until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *AccountSuspendedError) Is(target error) bool {
	return target == ErrAccountSuspended || target == ErrNotVerified
}
