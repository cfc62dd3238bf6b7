// Package memory holds process-local stores used for development runs and
// tests. Records are cloned on every boundary crossing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

type AccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (r *AccountRepository) FindByVerificationToken(_ context.Context, token string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.VerifyToken != nil && *a.VerifyToken == token {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.Email]; exists {
		return domain.ErrDuplicateIdentity
	}
	r.accounts[account.Email] = account.Clone()
	return nil
}

func (r *AccountRepository) UpdateLoginState(_ context.Context, email string, mutate ports.LoginStateMutation) (domain.LoginState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok {
		return domain.LoginState{}, domain.ErrAccountNotFound
	}
	next := mutate(a.Clone().LoginState())
	a.SetLoginState(next)
	a.UpdatedAt = time.Now().UTC()
	return a.Clone().LoginState(), nil
}

func (r *AccountRepository) Activate(_ context.Context, email, token string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok || a.Status != domain.StatusPendingVerification || a.VerifyToken == nil || *a.VerifyToken != token {
		return domain.ErrTokenAlreadyConsumed
	}
	a.Status = domain.StatusActive
	a.VerifyToken = nil
	a.TokenExpireAt = nil
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) ReplaceVerificationToken(_ context.Context, email string, token domain.VerificationToken, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok || a.Status != domain.StatusPendingVerification {
		return domain.ErrAccountNotFound
	}
	value, expires := token.Value, token.ExpiresAt
	a.VerifyToken = &value
	a.TokenExpireAt = &expires
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) FindByResetToken(_ context.Context, token string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.ResetToken != nil && *a.ResetToken == token {
			return a.Clone(), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *AccountRepository) SetResetToken(_ context.Context, email string, token domain.VerificationToken, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok {
		return domain.ErrAccountNotFound
	}
	value, expires := token.Value, token.ExpiresAt
	a.ResetToken = &value
	a.ResetExpireAt = &expires
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) ResetPassword(_ context.Context, email, token, passwordHash string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok || a.ResetToken == nil || *a.ResetToken != token {
		return domain.ErrTokenAlreadyConsumed
	}
	a.PasswordHash = passwordHash
	a.ResetToken = nil
	a.ResetExpireAt = nil
	a.FailCount = 0
	a.LockUntil = nil
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) UpdateStatus(_ context.Context, email string, status domain.AccountStatus, suspendedUntil *time.Time, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[email]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Status = status
	a.SuspendedUntil = nil
	if suspendedUntil != nil {
		until := *suspendedUntil
		a.SuspendedUntil = &until
	}
	a.SuspendReason = reason
	a.UpdatedAt = now
	return nil
}

// List returns accounts ordered by creation time, newest first.
func (r *AccountRepository) List(_ context.Context) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
