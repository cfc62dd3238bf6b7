package domain

import (
	"strings"
	"time"
)

// Role is the authority granted to an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Provider names the identity source that created the account.
type Provider string

const (
	ProviderLocal Provider = "LOCAL"
	ProviderNaver Provider = "NAVER"
)

// AccountStatus is the stored lifecycle state of an account. Lockout is not a
// status: it is derived from LockUntil.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
)

// LoginState is the slice of an account mutated by login attempts.
type LoginState struct {
	FailCount int
	LockUntil *time.Time
}

// Equal reports whether both states carry the same counter and lock instant.
func (s LoginState) Equal(o LoginState) bool {
	if s.FailCount != o.FailCount {
		return false
	}
	if s.LockUntil == nil || o.LockUntil == nil {
		return s.LockUntil == nil && o.LockUntil == nil
	}
	return s.LockUntil.Equal(*o.LockUntil)
}

// VerificationToken is a single-use secret mailed to the account owner. It
// backs both email verification and password reset.
type VerificationToken struct {
	Value     string
	ExpiresAt time.Time
}

// Account is the identity record owned by the credential store.
type Account struct {
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	FullName       string
	Role           Role
	Provider       Provider
	Status         AccountStatus
	FailCount      int
	LockUntil      *time.Time
	VerifyToken    *string
	TokenExpireAt  *time.Time
	ResetToken     *string
	ResetExpireAt  *time.Time
	SuspendedUntil *time.Time
	SuspendReason  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LoginState returns the failure counter and lock instant of the account.
func (a *Account) LoginState() LoginState {
	return LoginState{FailCount: a.FailCount, LockUntil: a.LockUntil}
}

// SetLoginState copies a login state back onto the account.
func (a *Account) SetLoginState(s LoginState) {
	a.FailCount = s.FailCount
	a.LockUntil = s.LockUntil
}

// Clone returns a deep copy so callers never share pointer fields.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.LockUntil = cloneTime(a.LockUntil)
	c.TokenExpireAt = cloneTime(a.TokenExpireAt)
	c.ResetExpireAt = cloneTime(a.ResetExpireAt)
	c.SuspendedUntil = cloneTime(a.SuspendedUntil)
	c.VerifyToken = cloneString(a.VerifyToken)
	c.ResetToken = cloneString(a.ResetToken)
	return &c
}

// FullNameOf composes the display name the way the account record stores it:
// family name first, no separator.
func FullNameOf(firstName, lastName string) string {
	return strings.TrimSpace(lastName) + strings.TrimSpace(firstName)
}

// NormalizeEmail lower-cases and trims an address so it can be used as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
