// @title						authcore API
// @version					1.0
// @description				Account authentication: login with lockout, bearer tokens and email verification.
// @BasePath					/
// @securityDefinitions.apikey	BearerAuth
// @in							header
// @name						Authorization
// @description				Type "Bearer" followed by a space and the session token.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/stockpulse/authcore/internal/app"
	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/service"
	pgstore "github.com/stockpulse/authcore/internal/infrastructure/db/postgres"
	"github.com/stockpulse/authcore/internal/pkg/config"
	"github.com/stockpulse/authcore/pkg/logger"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// cliActor is recorded in the audit log for operator commands.
var cliActor = domain.Identity{Email: "cli@authcore", FullName: "authd", Role: domain.RoleAdmin, Status: domain.StatusActive}

func main() {
	cmd := &cli.Command{
		Name:    "authd",
		Usage:   "Account authentication service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Apply pending Postgres migrations",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "status", Usage: "Print migration status instead of applying"}},
				Action: migrate,
			},
			{
				Name:      "unlock",
				Usage:     "Clear the failure counter and lock of an account",
				ArgsUsage: "<email>",
				Action:    unlock,
			},
		},
		DefaultCommand: "serve",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "authd",
		Env:     cfg.Env,
	})
	return cfg, log, nil
}

func serve(ctx context.Context, _ *cli.Command) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, store, Version, log)
	if err != nil {
		_ = store.Close(context.Background())
		return err
	}

	runErr := a.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("shutdown cleanup failed")
	}
	log.Info().Msg("server stopped")
	return runErr
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("migrate: STORE_DRIVER is %q, migrations only apply to postgres", cfg.Store)
	}

	db, err := pgstore.Open(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
	if err != nil {
		return err
	}
	defer func(db *sql.DB) { _ = db.Close() }(db)

	if cmd.Bool("status") {
		return pgstore.MigrationStatus(ctx, db)
	}
	if err := pgstore.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

func unlock(ctx context.Context, cmd *cli.Command) error {
	email := cmd.Args().First()
	if email == "" {
		return errors.New("unlock: email argument is required")
	}

	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.Store == config.StoreMemory {
		return errors.New("unlock: nothing to unlock in the memory store")
	}

	store, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close(context.Background()) }()

	locks := service.NewLockManager(service.NewAttemptTracker(cfg.Auth.LockThreshold), cfg.Auth.LockDuration)
	admin := service.NewAdminService(store.Accounts, store.AdminLogs, locks, nil, log)
	if err := admin.ResetFailures(ctx, cliActor, email); err != nil {
		return fmt.Errorf("unlock %s: %w", email, err)
	}
	log.Info().Str("email", domain.NormalizeEmail(email)).Msg("account unlocked")
	return nil
}
