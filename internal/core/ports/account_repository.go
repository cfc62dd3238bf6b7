package ports

import (
	"context"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// LoginStateMutation computes the next login state from the one currently
// stored. Stores call it while holding whatever guarantees atomicity for them,
// so it must be pure and may run more than once.
type LoginStateMutation func(current domain.LoginState) domain.LoginState

// AccountRepository is the credential store. Lookups return
// domain.ErrAccountNotFound when no record matches.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*domain.Account, error)
	// Create inserts a new record; domain.ErrDuplicateIdentity on key clash.
	Create(ctx context.Context, account *domain.Account) error
	// UpdateLoginState applies mutate to the stored counter and lock instant
	// as one atomic read-modify-write keyed by email and returns the state
	// that was persisted.
	UpdateLoginState(ctx context.Context, email string, mutate LoginStateMutation) (domain.LoginState, error)
	// Activate flips a PENDING_VERIFICATION account holding token to ACTIVE
	// and clears the token. domain.ErrTokenAlreadyConsumed when the record no
	// longer matches (raced by another verification).
	Activate(ctx context.Context, email, token string, now time.Time) error
	// ReplaceVerificationToken stores a fresh token on a pending account.
	ReplaceVerificationToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error
	FindByResetToken(ctx context.Context, token string) (*domain.Account, error)
	// SetResetToken stores a password reset token, replacing any earlier one.
	SetResetToken(ctx context.Context, email string, token domain.VerificationToken, now time.Time) error
	// ResetPassword replaces the password hash of the account holding the
	// reset token, clears the token and lifts any lockout.
	// domain.ErrTokenAlreadyConsumed when the token no longer matches.
	ResetPassword(ctx context.Context, email, token, passwordHash string, now time.Time) error
	// UpdateStatus sets the stored status together with suspension details.
	UpdateStatus(ctx context.Context, email string, status domain.AccountStatus, suspendedUntil *time.Time, reason string, now time.Time) error
	List(ctx context.Context) ([]*domain.Account, error)
}

// AdminLogRepository persists the administrative audit trail.
type AdminLogRepository interface {
	Insert(ctx context.Context, entry *domain.AdminLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*domain.AdminLogEntry, error)
}
