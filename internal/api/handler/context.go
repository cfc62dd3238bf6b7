package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stockpulse/authcore/internal/core/domain"
)

// ctxIdentity extracts the identity attached by the Authenticate middleware.
// Route guards normally reject anonymous calls first; this is the fast-fail
// for handlers mounted without one.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, ok := domain.IdentityFromContext(c.Request().Context())
	if !ok || id.Email == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return id, nil
}
