package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/stockpulse/authcore/docs"
	"github.com/stockpulse/authcore/internal/api/handler"
	"github.com/stockpulse/authcore/internal/api/middleware"
	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
	"github.com/stockpulse/authcore/internal/infrastructure/http/handlers"
)

// RouterDeps are the collaborators the HTTP surface needs.
type RouterDeps struct {
	Log          zerolog.Logger
	AuthService  ports.AuthService
	AdminService ports.AdminService
	Tokens       ports.TokenValidator
	Accounts     middleware.AccountLookup
	RateStore    middleware.RateStore
	RateLimit    int
	RateWindow   time.Duration
	HealthChecks map[string]handlers.Checker
	// Registerer receives the HTTP request metrics. Defaults to a fresh
	// registry so building several routers never double-registers.
	Registerer *prometheus.Registry
	Swagger    bool
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	reg := deps.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// --- Global middleware ---
	e.Use(middleware.Recover(deps.Log))
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.BodyLimit("64K"))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "authcore",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(middleware.Authenticate(deps.Tokens, deps.Accounts, deps.Log))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	adminHandler := handler.NewAdminHandler(deps.AdminService)

	// --- Auth routes ---
	auth := e.Group("/auth")
	auth.POST("/login", authHandler.Login, middleware.LoginRateLimit(deps.RateStore, deps.RateLimit, deps.RateWindow, deps.Log))
	auth.POST("/register", authHandler.Register)
	auth.GET("/verify", authHandler.VerifyEmail)
	auth.POST("/verify", authHandler.VerifyEmail)
	auth.POST("/verify/resend", authHandler.ResendVerification)
	auth.POST("/check-email", authHandler.CheckEmail)
	auth.POST("/reset/request", authHandler.RequestPasswordReset)
	auth.GET("/reset/verify", authHandler.VerifyResetToken)
	auth.POST("/reset/confirm", authHandler.ConfirmPasswordReset)
	auth.GET("/me", authHandler.Me, middleware.RequireIdentity())

	// --- Admin routes ---
	admin := e.Group("/admin", middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users", adminHandler.ListAccounts)
	admin.POST("/users/suspend", adminHandler.Suspend)
	admin.POST("/users/unsuspend", adminHandler.Unsuspend)
	admin.POST("/users/reset-failures", adminHandler.ResetFailures)
	admin.GET("/logs", adminHandler.Logs)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.HealthChecks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))
	if deps.Swagger {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "route not found")
	})

	return e
}
