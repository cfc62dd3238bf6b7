package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/api/metrics"
	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

// IdentityKey is the echo.Context key under which the caller identity is stored.
const IdentityKey = "identity"

// AccountLookup resolves the current record behind a token subject.
type AccountLookup interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// Authenticate establishes the caller identity from an Authorization: Bearer
// header. It never rejects a request: a missing or invalid token leaves the
// request anonymous and downstream guards decide. Role and status come from
// the store, not the token, so privilege changes apply immediately.
func Authenticate(tokens ports.TokenValidator, accounts AccountLookup, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := c.Get(IdentityKey).(domain.Identity); ok {
				return next(c)
			}

			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			subject, err := tokens.Validate(raw)
			if err != nil {
				metrics.TokenValidationFailuresTotal.WithLabelValues(failureReason(err)).Inc()
				log.Debug().Err(err).Str("path", c.Path()).Msg("bearer token rejected")
				return next(c)
			}

			ctx := c.Request().Context()
			account, err := accounts.FindByEmail(ctx, subject)
			if err != nil {
				if errors.Is(err, domain.ErrAccountNotFound) {
					metrics.TokenValidationFailuresTotal.WithLabelValues("unknown_subject").Inc()
				} else {
					log.Warn().Err(err).Str("subject", subject).Msg("identity lookup failed")
				}
				return next(c)
			}

			id := domain.IdentityFromAccount(account)
			c.Set(IdentityKey, id)
			c.SetRequest(c.Request().WithContext(domain.WithIdentity(ctx, id)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrSignatureInvalid):
		return "signature_invalid"
	default:
		return "malformed"
	}
}
