package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stockpulse/authcore/internal/core/ports"
	"github.com/stockpulse/authcore/internal/infrastructure/db/memory"
	mongostore "github.com/stockpulse/authcore/internal/infrastructure/db/mongo"
	pgstore "github.com/stockpulse/authcore/internal/infrastructure/db/postgres"
	"github.com/stockpulse/authcore/internal/infrastructure/http/handlers"
	"github.com/stockpulse/authcore/internal/pkg/config"
)

// Store is the account persistence selected by STORE_DRIVER.
type Store struct {
	Driver    string
	Accounts  ports.AccountRepository
	AdminLogs ports.AdminLogRepository
	// Check is nil for the memory driver.
	Check handlers.Checker
	close func(context.Context) error
}

// Close releases the underlying connection, if any.
func (s *Store) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

// OpenStore connects to the configured backend and prepares its schema:
// indexes for Mongo, pending migrations for Postgres.
func OpenStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory account store; data is lost on restart")
		return &Store{
			Driver:    config.StoreMemory,
			Accounts:  memory.NewAccountRepository(),
			AdminLogs: memory.NewAdminLogRepository(),
		}, nil

	case config.StorePostgres:
		db, err := pgstore.Open(ctx, pgstore.Config{DSN: cfg.Postgres.DSN, MaxOpenConns: 20})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := pgstore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Store{
			Driver:    config.StorePostgres,
			Accounts:  pgstore.NewAccountRepository(db),
			AdminLogs: pgstore.NewAdminLogRepository(db),
			Check:     db.PingContext,
			close:     func(context.Context) error { return db.Close() },
		}, nil

	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return &Store{
			Driver:    config.StoreMongo,
			Accounts:  mongostore.NewAccountRepository(db),
			AdminLogs: mongostore.NewAdminLogRepository(db),
			Check: func(ctx context.Context) error {
				return mongostore.Ping(ctx, client)
			},
			close: client.Disconnect,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store)
}
