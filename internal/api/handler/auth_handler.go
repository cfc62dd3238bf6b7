package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type registerRequest struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Password  string `json:"password"   validate:"required,max=72,password"`
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name"  validate:"required,max=50"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required,max=72,password"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// userInfo is the public projection of an account.
type userInfo struct {
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	Provider      string    `json:"provider"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
}

func toUserInfo(a *domain.Account) userInfo {
	return userInfo{
		Email:         a.Email,
		FullName:      a.FullName,
		Role:          string(a.Role),
		Provider:      string(a.Provider),
		AccountStatus: string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userInfo  `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type availabilityResponse struct {
	Available bool `json:"available"`
}

// bindAndValidate decodes the body into req and runs validator tags. The
// returned error is a 400 ready for Echo's error handler.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Register creates a pending account and sends a verification mail.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      500   {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	_, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "registration complete, check your inbox to verify your email"})
}

// Login authenticates a user and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse  "unknown identity or bad credential"
// @Failure      403   {object}  ErrorResponse  "not verified, suspended or locked"
// @Failure      429   {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      toUserInfo(res.Account),
	})
}

// VerifyEmail consumes a verification token. The token is read from the
// query string (links in mails) or from a JSON body.
//
// @Summary      Verify email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  query     string        false  "Verification token"
// @Param        body   body      tokenRequest  false  "Verification token"
// @Success      200    {object}  messageResponse
// @Failure      400    {object}  ErrorResponse  "invalid, expired or already verified"
// @Router       /auth/verify [get]
// @Router       /auth/verify [post]
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := tokenRequest{Token: c.QueryParam("token")}
	if req.Token == "" && c.Request().Method == http.MethodPost {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, domain.ErrTokenNotFound)
	}

	if _, err := h.authService.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "email verified"})
}

// ResendVerification issues a fresh verification token for a pending account.
//
// @Summary      Resend verification mail
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /auth/verify/resend [post]
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "verification mail sent"})
}

// CheckEmail reports whether an address is still free.
//
// @Summary      Check email availability
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        email  query     string        false  "Email to check"
// @Param        body   body      emailRequest  false  "Email to check"
// @Success      200    {object}  availabilityResponse
// @Failure      400    {object}  ErrorResponse
// @Router       /auth/check-email [post]
func (h *AuthHandler) CheckEmail(c echo.Context) error {
	req := emailRequest{Email: c.QueryParam("email")}
	if req.Email == "" {
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
	} else if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	available, err := h.authService.IsEmailAvailable(c.Request().Context(), req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, availabilityResponse{Available: available})
}

// RequestPasswordReset mails a reset link. The response is the same whether
// or not the address is registered.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse
// @Router       /auth/reset/request [post]
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "if the address is registered a reset link has been sent"})
}

// VerifyResetToken lets the reset page check a token before asking for a
// new password.
//
// @Summary      Check a password reset token
// @Tags         auth
// @Produce      json
// @Param        token  query     string  true  "Reset token"
// @Success      200    {object}  messageResponse
// @Failure      400    {object}  ErrorResponse  "invalid or expired"
// @Router       /auth/reset/verify [get]
func (h *AuthHandler) VerifyResetToken(c echo.Context) error {
	req := tokenRequest{Token: c.QueryParam("token")}
	if err := c.Validate(&req); err != nil {
		return respondError(c, domain.ErrTokenNotFound)
	}

	if err := h.authService.VerifyResetToken(c.Request().Context(), req.Token); err != nil {
		return respondResetError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "reset token is valid"})
}

// ConfirmPasswordReset sets a new password with a reset token.
//
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetConfirmRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  ErrorResponse  "invalid payload, invalid or expired token"
// @Router       /auth/reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return respondResetError(c, err)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password has been reset"})
}

// respondResetError reports a reset token lost to a concurrent reset as
// invalid.
func respondResetError(c echo.Context, err error) error {
	if errors.Is(err, domain.ErrTokenAlreadyConsumed) {
		err = domain.ErrTokenNotFound
	}
	return respondError(c, err)
}

// Me returns the caller's account.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userInfo
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	account, err := h.authService.Me(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUserInfo(account))
}
