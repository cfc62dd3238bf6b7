package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/api/handler"
	"github.com/stockpulse/authcore/internal/pkg/observability"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally and reports them to Sentry without
//     leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<code>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if body.RemainingSeconds != nil {
			c.Response().Header().Set("Retry-After", strconv.Itoa(*body.RemainingSeconds))
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorResponse{Error: fmt.Sprintf("%v", he.Message), Code: statusCode(he.Code)}
	}

	if status, body, ok := handler.MapError(err); ok {
		return status, body
	}

	// Unexpected error: log the real cause, return a generic message.
	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Str("request_id", requestID).
		Msg("unhandled error")
	observability.CaptureRequestError(err, c.Request().Method, c.Path(), requestID)

	return http.StatusInternalServerError, handler.ErrorResponse{Error: "internal server error", Code: "internal"}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal"
		}
		return "error"
	}
}
