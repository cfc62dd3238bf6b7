// Package app assembles the service from configuration: store, rate limiter,
// mail delivery, core services and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/api"
	"github.com/stockpulse/authcore/internal/api/metrics"
	"github.com/stockpulse/authcore/internal/api/middleware"
	"github.com/stockpulse/authcore/internal/core/ports"
	"github.com/stockpulse/authcore/internal/core/service"
	redisstore "github.com/stockpulse/authcore/internal/infrastructure/db/redis"
	"github.com/stockpulse/authcore/internal/infrastructure/http/handlers"
	"github.com/stockpulse/authcore/internal/infrastructure/mail"
	"github.com/stockpulse/authcore/internal/infrastructure/queue"
	"github.com/stockpulse/authcore/internal/pkg/config"
	"github.com/stockpulse/authcore/internal/pkg/observability"
	"github.com/stockpulse/authcore/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived resource of a running server.
type App struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *Store

	Auth   *service.AuthService
	Admin  ports.AdminService
	Tokens *service.TokenService
	Router *echo.Echo

	dispatcher  *queue.Dispatcher
	stopWorkers context.CancelFunc
	redis       *redisstore.RateStore
}

// New wires the application. The returned App has not started serving yet;
// its mail workers are already running.
func New(ctx context.Context, cfg *config.Config, store *Store, release string, log zerolog.Logger) (*App, error) {
	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release); err != nil {
		log.Warn().Err(err).Msg("sentry disabled")
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return nil, err
	}
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, mailer, logger.Component(log, "mail"))
	dispatcher.Start(workerCtx)

	locks := service.NewLockManager(service.NewAttemptTracker(cfg.Auth.LockThreshold), cfg.Auth.LockDuration)
	auth := service.NewAuthService(service.AuthDeps{
		Accounts:     store.Accounts,
		Hasher:       service.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:       tokens,
		Locks:        locks,
		Verification: service.NewVerificationManager(store.Accounts, service.WithVerificationTTL(cfg.Auth.VerificationTTL)),
		Notifier:     dispatcher,
		Observer:     metrics.AuthObserver{},
	}, logger.Component(log, "auth"))
	admin := service.NewAdminService(store.Accounts, store.AdminLogs, locks, nil, logger.Component(log, "admin"))

	checks := map[string]handlers.Checker{}
	if store.Check != nil {
		checks[store.Driver] = store.Check
	}

	var rateStore middleware.RateStore = middleware.NewMemoryRateStore()
	redisRates := connectRedis(ctx, cfg, log)
	if redisRates != nil {
		rateStore = redisRates
		checks["redis"] = redisRates.Ping
	}

	router := api.NewRouter(api.RouterDeps{
		Log:          log,
		AuthService:  auth,
		AdminService: admin,
		Tokens:       tokens,
		Accounts:     store.Accounts,
		RateStore:    rateStore,
		RateLimit:    cfg.RateLimit.Limit,
		RateWindow:   cfg.RateLimit.Window,
		HealthChecks: checks,
		Swagger:      !cfg.IsProduction(),
	})

	return &App{
		cfg:         cfg,
		log:         log,
		store:       store,
		Auth:        auth,
		Admin:       admin,
		Tokens:      tokens,
		Router:      router,
		dispatcher:  dispatcher,
		stopWorkers: stopWorkers,
		redis:       redisRates,
	}, nil
}

func newMailer(cfg *config.Config, log zerolog.Logger) (queue.Mailer, error) {
	if cfg.SMTP.Host == "" {
		if cfg.IsProduction() {
			return nil, errors.New("SMTP_HOST is required in production")
		}
		log.Warn().Msg("SMTP_HOST not set; token links will be logged")
		return mail.NewLogMailer(mail.LinksFrom(cfg.Mail), logger.Component(log, "mail")), nil
	}
	return mail.NewSMTPMailer(cfg.SMTP, mail.LinksFrom(cfg.Mail))
}

// connectRedis returns nil when Redis is not configured or unreachable; the
// login limiter then counts per instance instead of failing startup.
func connectRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) *redisstore.RateStore {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable; login rate limit is per instance")
		return nil
	}
	return redisstore.NewRateStore(client)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Str("store", a.store.Driver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close drains queued mail and releases connections. Call after Run returns.
func (a *App) Close(ctx context.Context) error {
	a.dispatcher.Close()
	a.stopWorkers()

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.store.Close(ctx))
	observability.FlushSentry()
	return errors.Join(errs...)
}
