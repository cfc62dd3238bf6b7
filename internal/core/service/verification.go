package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

// DefaultVerificationTTL bounds how long a verification token is accepted.
const DefaultVerificationTTL = 30 * time.Minute

// VerificationOption configures a VerificationManager.
type VerificationOption func(*VerificationManager)

// WithVerificationTTL overrides the token lifetime.
func WithVerificationTTL(ttl time.Duration) VerificationOption {
	return func(m *VerificationManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithVerificationClock overrides the time source.
func WithVerificationClock(c Clock) VerificationOption {
	return func(m *VerificationManager) {
		if c != nil {
			m.now = c
		}
	}
}

// WithTokenGenerator overrides how opaque token values are produced.
func WithTokenGenerator(gen func() string) VerificationOption {
	return func(m *VerificationManager) {
		if gen != nil {
			m.generate = gen
		}
	}
}

// VerificationManager issues and consumes the single-use tokens held on
// accounts: email verification tokens on pending accounts and password reset
// tokens on any account.
type VerificationManager struct {
	repo     ports.AccountRepository
	ttl      time.Duration
	now      Clock
	generate func() string
}

func NewVerificationManager(repo ports.AccountRepository, opts ...VerificationOption) *VerificationManager {
	m := &VerificationManager{
		repo:     repo,
		ttl:      DefaultVerificationTTL,
		now:      systemClock,
		generate: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue generates a fresh token expiring ttl from now. It does not persist it.
func (m *VerificationManager) Issue() domain.VerificationToken {
	return domain.VerificationToken{
		Value:     m.generate(),
		ExpiresAt: m.now().Add(m.ttl),
	}
}

// Verify consumes token and activates its account.
func (m *VerificationManager) Verify(ctx context.Context, token string) (*domain.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenNotFound
	}

	account, err := m.repo.FindByVerificationToken(ctx, token)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if account.Status != domain.StatusPendingVerification {
		return nil, domain.ErrTokenAlreadyConsumed
	}

	now := m.now()
	if account.TokenExpireAt == nil || account.TokenExpireAt.Before(now) {
		return nil, domain.ErrTokenExpired
	}

	if err := m.repo.Activate(ctx, account.Email, token, now); err != nil {
		if errors.Is(err, domain.ErrTokenAlreadyConsumed) {
			return nil, err
		}
		return nil, fmt.Errorf("verify email: %w", err)
	}

	account.Status = domain.StatusActive
	account.VerifyToken = nil
	account.TokenExpireAt = nil
	account.UpdatedAt = now
	return account, nil
}

// CheckReset reports whether token is a live password reset token and returns
// the account holding it. Nothing is consumed.
func (m *VerificationManager) CheckReset(ctx context.Context, token string) (*domain.Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenNotFound
	}

	account, err := m.repo.FindByResetToken(ctx, token)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check reset token: %w", err)
	}

	if account.ResetExpireAt == nil || account.ResetExpireAt.Before(m.now()) {
		return nil, domain.ErrTokenExpired
	}
	return account, nil
}

// ConsumeReset stores passwordHash on the account holding token and retires
// the token. Only one caller wins a given token; the rest get
// domain.ErrTokenAlreadyConsumed.
func (m *VerificationManager) ConsumeReset(ctx context.Context, token, passwordHash string) (*domain.Account, error) {
	account, err := m.CheckReset(ctx, token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if err := m.repo.ResetPassword(ctx, account.Email, strings.TrimSpace(token), passwordHash, now); err != nil {
		if errors.Is(err, domain.ErrTokenAlreadyConsumed) {
			return nil, err
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}

	account.PasswordHash = passwordHash
	account.ResetToken = nil
	account.ResetExpireAt = nil
	account.SetLoginState(domain.LoginState{})
	account.UpdatedAt = now
	return account, nil
}
