package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

const defaultLogLimit = 50

type adminService struct {
	accounts ports.AccountRepository
	logs     ports.AdminLogRepository
	locks    *LockManager
	now      Clock
	log      zerolog.Logger
}

// NewAdminService returns an AdminService. Audit log writes are best effort:
// a failed insert is logged and does not undo the action.
func NewAdminService(
	accounts ports.AccountRepository,
	logs ports.AdminLogRepository,
	locks *LockManager,
	clock Clock,
	log zerolog.Logger,
) ports.AdminService {
	if locks == nil {
		locks = NewLockManager(NewAttemptTracker(DefaultLockThreshold), DefaultLockDuration)
	}
	return &adminService{
		accounts: accounts,
		logs:     logs,
		locks:    locks,
		now:      orSystemClock(clock),
		log:      log,
	}
}

func (s *adminService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// Suspend takes an account out of service for input.Days days. Days <= 0
// lifts the suspension instead.
func (s *adminService) Suspend(ctx context.Context, actor domain.Identity, input ports.SuspendInput) (*time.Time, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if input.Days <= 0 {
		return nil, s.Unsuspend(ctx, actor, input.Email)
	}

	email := domain.NormalizeEmail(input.Email)
	account, err := s.load(ctx, email)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.StatusPendingVerification {
		return nil, domain.ErrNotVerified
	}

	now := s.now()
	until := now.AddDate(0, 0, input.Days)
	reason := strings.TrimSpace(input.Reason)
	if err := s.accounts.UpdateStatus(ctx, email, domain.StatusSuspended, &until, reason, now); err != nil {
		return nil, fmt.Errorf("suspend account: %w", err)
	}

	s.log.Info().Str("actor", actor.Email).Str("email", email).Time("until", until).Msg("account suspended")
	s.audit(ctx, actor, email, domain.ActionSuspend, fmt.Sprintf("days=%d reason=%s", input.Days, reason))
	return &until, nil
}

func (s *adminService) Unsuspend(ctx context.Context, actor domain.Identity, email string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	email = domain.NormalizeEmail(email)
	account, err := s.load(ctx, email)
	if err != nil {
		return err
	}
	if account.Status != domain.StatusSuspended {
		return domain.ErrNotSuspended
	}

	if err := s.accounts.UpdateStatus(ctx, email, domain.StatusActive, nil, "", s.now()); err != nil {
		return fmt.Errorf("unsuspend account: %w", err)
	}

	s.log.Info().Str("actor", actor.Email).Str("email", email).Msg("account unsuspended")
	s.audit(ctx, actor, email, domain.ActionUnsuspend, "")
	return nil
}

// ResetFailures clears the failure counter and any active lock.
func (s *adminService) ResetFailures(ctx context.Context, actor domain.Identity, email string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	email = domain.NormalizeEmail(email)
	if _, err := s.load(ctx, email); err != nil {
		return err
	}

	_, err := s.accounts.UpdateLoginState(ctx, email, func(domain.LoginState) domain.LoginState {
		return s.locks.Reset()
	})
	if err != nil {
		return fmt.Errorf("reset failures: %w", err)
	}

	s.log.Info().Str("actor", actor.Email).Str("email", email).Msg("login failures reset")
	s.audit(ctx, actor, email, domain.ActionResetFailure, "")
	return nil
}

func (s *adminService) RecentLogs(ctx context.Context, limit int) ([]*domain.AdminLogEntry, error) {
	if s.logs == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	entries, err := s.logs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin logs: %w", err)
	}
	return entries, nil
}

func (s *adminService) load(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

func (s *adminService) audit(ctx context.Context, actor domain.Identity, target string, action domain.AdminAction, detail string) {
	if s.logs == nil {
		return
	}
	entry := &domain.AdminLogEntry{
		ID:        uuid.NewString(),
		Actor:     actor.Email,
		Target:    target,
		Action:    action,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.logs.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Str("target", target).Msg("admin log insert failed")
	}
}
