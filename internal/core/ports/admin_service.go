package ports

import (
	"context"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// SuspendInput describes a suspension. Days <= 0 lifts an existing one.
type SuspendInput struct {
	Email  string
	Days   int
	Reason string
}

// AdminService exposes administrative account actions. Every mutating call
// takes the acting identity explicitly so it can be audited.
type AdminService interface {
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	Suspend(ctx context.Context, actor domain.Identity, input SuspendInput) (*time.Time, error)
	Unsuspend(ctx context.Context, actor domain.Identity, email string) error
	ResetFailures(ctx context.Context, actor domain.Identity, email string) error
	RecentLogs(ctx context.Context, limit int) ([]*domain.AdminLogEntry, error)
}
