package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// ErrorResponse is the JSON envelope for every user-facing failure. code is a
// stable machine-readable discriminator; the optional fields carry the
// numbers a client needs to render a precise message.
type ErrorResponse struct {
	Error             string     `json:"error"`
	Code              string     `json:"code"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	RemainingSeconds  *int       `json:"remaining_seconds,omitempty"`
	SuspendedUntil    *time.Time `json:"suspended_until,omitempty"`
}

// MapError translates a domain error into a status and body. ok is false for
// errors that are not part of the domain taxonomy; those are infrastructure
// failures and must be handled as 500s.
func MapError(err error) (status int, body ErrorResponse, ok bool) {
	var (
		locked    *domain.AccountLockedError
		badCred   *domain.BadCredentialError
		suspended *domain.AccountSuspendedError
	)

	switch {
	case errors.As(err, &locked):
		secs := locked.RemainingSeconds
		return http.StatusForbidden, ErrorResponse{Error: "account is temporarily locked", Code: "locked", RemainingSeconds: &secs}, true
	case errors.Is(err, domain.ErrAccountLocked):
		return http.StatusForbidden, ErrorResponse{Error: "account is temporarily locked", Code: "locked"}, true
	case errors.As(err, &badCred):
		left := badCred.RemainingAttempts
		return http.StatusUnauthorized, ErrorResponse{Error: "email or password is incorrect", Code: "bad_credential", RemainingAttempts: &left}, true
	case errors.Is(err, domain.ErrBadCredential):
		return http.StatusUnauthorized, ErrorResponse{Error: "email or password is incorrect", Code: "bad_credential"}, true
	case errors.As(err, &suspended):
		return http.StatusForbidden, ErrorResponse{Error: "account is suspended", Code: "suspended", SuspendedUntil: suspended.Until}, true
	case errors.Is(err, domain.ErrAccountSuspended):
		return http.StatusForbidden, ErrorResponse{Error: "account is suspended", Code: "suspended"}, true
	case errors.Is(err, domain.ErrNotVerified):
		return http.StatusForbidden, ErrorResponse{Error: "email address is not verified", Code: "not_verified"}, true
	case errors.Is(err, domain.ErrUnknownIdentity):
		return http.StatusUnauthorized, ErrorResponse{Error: "email or password is incorrect", Code: "unknown_identity"}, true
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusBadRequest, ErrorResponse{Error: "email is already registered", Code: "duplicate"}, true
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusBadRequest, ErrorResponse{Error: "token is invalid", Code: "invalid"}, true
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusBadRequest, ErrorResponse{Error: "token has expired", Code: "expired"}, true
	case errors.Is(err, domain.ErrTokenAlreadyConsumed):
		return http.StatusBadRequest, ErrorResponse{Error: "email is already verified", Code: "already_verified"}, true
	case errors.Is(err, domain.ErrSignatureInvalid), errors.Is(err, domain.ErrTokenMalformed):
		return http.StatusUnauthorized, ErrorResponse{Error: "token is invalid", Code: "invalid_token"}, true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{Error: "access forbidden", Code: "forbidden"}, true
	case errors.Is(err, domain.ErrNotSuspended):
		return http.StatusConflict, ErrorResponse{Error: "account is not suspended", Code: "not_suspended"}, true
	}
	return 0, ErrorResponse{}, false
}

// respondError renders known domain errors and hands anything else back to
// Echo's error handler.
func respondError(c echo.Context, err error) error {
	status, body, ok := MapError(err)
	if !ok {
		return err
	}
	if body.RemainingSeconds != nil {
		c.Response().Header().Set("Retry-After", strconv.Itoa(*body.RemainingSeconds))
	}
	return c.JSON(status, body)
}
