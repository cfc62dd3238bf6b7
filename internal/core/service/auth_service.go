package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

// LoginOutcome labels a finished login attempt for observers.
type LoginOutcome string

const (
	OutcomeSuccess         LoginOutcome = "success"
	OutcomeUnknownIdentity LoginOutcome = "unknown_identity"
	OutcomeNotVerified     LoginOutcome = "not_verified"
	OutcomeSuspended       LoginOutcome = "suspended"
	OutcomeLocked          LoginOutcome = "locked"
	OutcomeBadCredential   LoginOutcome = "bad_credential"
	OutcomeError           LoginOutcome = "error"
)

// AuthObserver receives security-relevant events. Implementations must not
// block.
type AuthObserver interface {
	LoginAttempt(outcome LoginOutcome)
	AccountLocked()
	Verification(outcome string)
	PasswordReset(outcome string)
}

type noopObserver struct{}

func (noopObserver) LoginAttempt(LoginOutcome) {}
func (noopObserver) AccountLocked()            {}
func (noopObserver) Verification(string)       {}
func (noopObserver) PasswordReset(string)      {}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Accounts     ports.AccountRepository
	Hasher       ports.PasswordHasher
	Tokens       ports.TokenIssuer
	Locks        *LockManager
	Verification *VerificationManager
	Notifier     ports.VerificationNotifier
	Observer     AuthObserver
	Clock        Clock
}

// AuthService orchestrates login, registration, email verification and
// password reset.
type AuthService struct {
	accounts ports.AccountRepository
	hasher   ports.PasswordHasher
	tokens   ports.TokenIssuer
	locks    *LockManager
	verifier *VerificationManager
	notifier ports.VerificationNotifier
	observer AuthObserver
	now      Clock
	log      zerolog.Logger
}

var _ ports.AuthService = (*AuthService)(nil)

func NewAuthService(deps AuthDeps, log zerolog.Logger) *AuthService {
	s := &AuthService{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		locks:    deps.Locks,
		verifier: deps.Verification,
		notifier: deps.Notifier,
		observer: deps.Observer,
		now:      orSystemClock(deps.Clock),
		log:      log,
	}
	if s.locks == nil {
		s.locks = NewLockManager(NewAttemptTracker(DefaultLockThreshold), DefaultLockDuration)
	}
	if s.verifier == nil {
		s.verifier = NewVerificationManager(deps.Accounts, WithVerificationClock(s.now))
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	return s
}

// Login runs one credential attempt. Each call is a single attempt; nothing
// is retried here.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	email = domain.NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.observer.LoginAttempt(OutcomeUnknownIdentity)
		return nil, domain.ErrUnknownIdentity
	}
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, fmt.Errorf("login: load account: %w", err)
	}

	if err := s.checkStatus(ctx, account); err != nil {
		return nil, err
	}

	if status := s.locks.Check(account.LoginState(), s.now()); status.Locked {
		s.observer.LoginAttempt(OutcomeLocked)
		return nil, &domain.AccountLockedError{RemainingSeconds: status.RemainingSeconds()}
	}

	match, err := s.hasher.Verify(account.PasswordHash, password)
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, fmt.Errorf("login: verify credential: %w", err)
	}

	var decidedAt time.Time
	state, err := s.accounts.UpdateLoginState(ctx, email, func(current domain.LoginState) domain.LoginState {
		decidedAt = s.now()
		return s.locks.Apply(current, match, decidedAt)
	})
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, fmt.Errorf("login: persist attempt: %w", err)
	}

	if lock := s.locks.Check(state, decidedAt); lock.Locked {
		// Either this attempt tripped the lock or a concurrent one did.
		if !match {
			s.observer.AccountLocked()
			s.log.Warn().Str("email", email).Time("lock_until", lock.Until).Msg("account locked after repeated failures")
		}
		s.observer.LoginAttempt(OutcomeLocked)
		return nil, &domain.AccountLockedError{RemainingSeconds: lock.RemainingSeconds()}
	}

	if !match {
		s.observer.LoginAttempt(OutcomeBadCredential)
		return nil, &domain.BadCredentialError{RemainingAttempts: s.locks.RemainingAttempts(state)}
	}

	token, expiresAt, err := s.tokens.Issue(account.Email)
	if err != nil {
		s.observer.LoginAttempt(OutcomeError)
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	account.SetLoginState(state)
	s.observer.LoginAttempt(OutcomeSuccess)
	s.log.Info().Str("email", email).Msg("login succeeded")

	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// checkStatus rejects any account whose stored status is not ACTIVE. A
// suspension whose end date has passed is lifted on the way through.
func (s *AuthService) checkStatus(ctx context.Context, account *domain.Account) error {
	switch account.Status {
	case domain.StatusActive:
		return nil
	case domain.StatusSuspended:
		now := s.now()
		if account.SuspendedUntil != nil && !account.SuspendedUntil.After(now) {
			if err := s.accounts.UpdateStatus(ctx, account.Email, domain.StatusActive, nil, "", now); err != nil {
				s.observer.LoginAttempt(OutcomeError)
				return fmt.Errorf("login: lift expired suspension: %w", err)
			}
			s.log.Info().Str("email", account.Email).Msg("expired suspension lifted")
			account.Status = domain.StatusActive
			account.SuspendedUntil = nil
			account.SuspendReason = ""
			return nil
		}
		s.observer.LoginAttempt(OutcomeSuspended)
		return &domain.AccountSuspendedError{Until: account.SuspendedUntil, Reason: account.SuspendReason}
	default:
		s.observer.LoginAttempt(OutcomeNotVerified)
		return domain.ErrNotVerified
	}
}

// Register creates a pending local account and hands its verification token
// to the notifier. A delivery failure does not undo the registration.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Account, error) {
	email := domain.NormalizeEmail(input.Email)

	_, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrDuplicateIdentity
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, fmt.Errorf("register: lookup: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("register: hash credential: %w", err)
	}

	token := s.verifier.Issue()
	now := s.now()
	account := &domain.Account{
		Email:         email,
		PasswordHash:  hash,
		FirstName:     strings.TrimSpace(input.FirstName),
		LastName:      strings.TrimSpace(input.LastName),
		FullName:      domain.FullNameOf(input.FirstName, input.LastName),
		Role:          domain.RoleUser,
		Provider:      domain.ProviderLocal,
		Status:        domain.StatusPendingVerification,
		VerifyToken:   &token.Value,
		TokenExpireAt: &token.ExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("register: persist: %w", err)
	}

	s.log.Info().Str("email", email).Msg("account registered")
	s.notify(ctx, account, token)
	return account, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*domain.Account, error) {
	account, err := s.verifier.Verify(ctx, token)
	switch {
	case err == nil:
		s.observer.Verification("verified")
		s.log.Info().Str("email", account.Email).Msg("email verified")
	case errors.Is(err, domain.ErrTokenNotFound):
		s.observer.Verification("not_found")
	case errors.Is(err, domain.ErrTokenExpired):
		s.observer.Verification("expired")
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		s.observer.Verification("already_verified")
	default:
		s.observer.Verification("error")
	}
	return account, err
}

// ResendVerification replaces the token of a pending account and sends it
// again. The old token stops working.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.ErrUnknownIdentity
	}
	if err != nil {
		return fmt.Errorf("resend verification: %w", err)
	}
	if account.Status != domain.StatusPendingVerification {
		return domain.ErrTokenAlreadyConsumed
	}

	token := s.verifier.Issue()
	if err := s.accounts.ReplaceVerificationToken(ctx, email, token, s.now()); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return domain.ErrTokenAlreadyConsumed
		}
		return fmt.Errorf("resend verification: %w", err)
	}

	s.notify(ctx, account, token)
	return nil
}

// IsEmailAvailable reports whether no account is registered under email.
func (s *AuthService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.accounts.FindByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, domain.ErrAccountNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return false, nil
}

// RequestPasswordReset mails a reset token to the owner of email. Unknown and
// unverified addresses are accepted silently so the response does not reveal
// which addresses are registered.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		s.log.Info().Str("email", email).Msg("password reset requested for unknown address")
		return nil
	}
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	if account.Status == domain.StatusPendingVerification || account.Provider == domain.ProviderNaver {
		s.log.Info().Str("email", email).Str("status", string(account.Status)).Msg("password reset skipped")
		return nil
	}

	token := s.verifier.Issue()
	if err := s.accounts.SetResetToken(ctx, email, token, s.now()); err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}

	s.log.Info().Str("email", email).Msg("password reset requested")
	s.send(ctx, account, token, ports.PurposeResetPassword)
	return nil
}

// VerifyResetToken reports whether token can still be used to reset a
// password.
func (s *AuthService) VerifyResetToken(ctx context.Context, token string) error {
	_, err := s.verifier.CheckReset(ctx, token)
	return err
}

// ResetPassword replaces the password of the account holding token. The
// token is single use and a successful reset also lifts any lockout.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if _, err := s.verifier.CheckReset(ctx, token); err != nil {
		s.observeReset(err)
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.observer.PasswordReset("error")
		return fmt.Errorf("reset password: hash credential: %w", err)
	}

	account, err := s.verifier.ConsumeReset(ctx, token, hash)
	s.observeReset(err)
	if err != nil {
		return err
	}
	s.log.Info().Str("email", account.Email).Msg("password reset")
	return nil
}

func (s *AuthService) observeReset(err error) {
	switch {
	case err == nil:
		s.observer.PasswordReset("reset")
	case errors.Is(err, domain.ErrTokenNotFound):
		s.observer.PasswordReset("not_found")
	case errors.Is(err, domain.ErrTokenExpired):
		s.observer.PasswordReset("expired")
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		s.observer.PasswordReset("already_used")
	default:
		s.observer.PasswordReset("error")
	}
}

// Me returns the account behind an authenticated identity.
func (s *AuthService) Me(ctx context.Context, id domain.Identity) (*domain.Account, error) {
	if id.Email == "" {
		return nil, domain.ErrUnknownIdentity
	}
	account, err := s.accounts.FindByEmail(ctx, id.Email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return account, nil
}

func (s *AuthService) notify(ctx context.Context, account *domain.Account, token domain.VerificationToken) {
	s.send(ctx, account, token, ports.PurposeVerifyEmail)
}

func (s *AuthService) send(ctx context.Context, account *domain.Account, token domain.VerificationToken, purpose ports.MailPurpose) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendVerification(ctx, ports.VerificationMail{
		Email:     account.Email,
		FullName:  account.FullName,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Purpose:   purpose,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("email", account.Email).Str("purpose", string(purpose)).Msg("token mail not queued")
	}
}
