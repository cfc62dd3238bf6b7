package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

type AdminHandler struct {
	adminService ports.AdminService
}

func NewAdminHandler(adminService ports.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

type suspendRequest struct {
	Email  string `json:"email"  validate:"required,email"`
	Days   int    `json:"days"   validate:"gte=0,max=3650"`
	Reason string `json:"reason" validate:"max=500"`
}

type adminAccount struct {
	userInfo
	FailCount      int        `json:"fail_count"`
	LockUntil      *time.Time `json:"lock_until,omitempty"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
	SuspendReason  string     `json:"suspend_reason,omitempty"`
}

type suspendResponse struct {
	Message        string     `json:"message"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// adminError maps a missing target account to 404; everything else follows
// the shared mapping.
func adminError(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrUnknownIdentity) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "account not found", Code: "not_found"})
	}
	return respondError(c, err)
}

// ListAccounts returns every account with its security state.
//
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   adminAccount
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) ListAccounts(c echo.Context) error {
	accounts, err := h.adminService.ListAccounts(c.Request().Context())
	if err != nil {
		return err
	}

	out := make([]adminAccount, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, adminAccount{
			userInfo:       toUserInfo(a),
			FailCount:      a.FailCount,
			LockUntil:      a.LockUntil,
			SuspendedUntil: a.SuspendedUntil,
			SuspendReason:  a.SuspendReason,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Suspend takes an account out of service. days=0 lifts a suspension.
//
// @Summary      Suspend account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      suspendRequest  true  "Suspension details"
// @Success      200   {object}  suspendResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /admin/users/suspend [post]
func (h *AdminHandler) Suspend(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req suspendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	until, err := h.adminService.Suspend(c.Request().Context(), actor, ports.SuspendInput{
		Email:  req.Email,
		Days:   req.Days,
		Reason: req.Reason,
	})
	if err != nil {
		return adminError(c, err)
	}

	msg := "account suspended"
	if until == nil {
		msg = "suspension lifted"
	}
	return c.JSON(http.StatusOK, suspendResponse{Message: msg, SuspendedUntil: until})
}

// Unsuspend restores a suspended account.
//
// @Summary      Unsuspend account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /admin/users/unsuspend [post]
func (h *AdminHandler) Unsuspend(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.adminService.Unsuspend(c.Request().Context(), actor, req.Email); err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "suspension lifted"})
}

// ResetFailures clears the failed-login counter and any active lock.
//
// @Summary      Reset login failures
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /admin/users/reset-failures [post]
func (h *AdminHandler) ResetFailures(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.adminService.ResetFailures(c.Request().Context(), actor, req.Email); err != nil {
		return adminError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "login failures reset"})
}

// Logs returns the most recent administrative actions.
//
// @Summary      Admin audit log
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Max entries (default 50)"
// @Success      200    {array}   domain.AdminLogEntry
// @Router       /admin/logs [get]
func (h *AdminHandler) Logs(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 0 and 500")
		}
		limit = n
	}

	entries, err := h.adminService.RecentLogs(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []*domain.AdminLogEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
