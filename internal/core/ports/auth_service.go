package ports

import (
	"context"
	"time"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// RegisterInput carries the fields of a local sign-up.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *domain.Account
}

// AuthService implements login, registration, email verification and
// password reset.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Register(ctx context.Context, input RegisterInput) (*domain.Account, error)
	VerifyEmail(ctx context.Context, token string) (*domain.Account, error)
	ResendVerification(ctx context.Context, email string) error
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Me(ctx context.Context, id domain.Identity) (*domain.Account, error)
}
