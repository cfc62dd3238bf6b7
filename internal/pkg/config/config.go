package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Store    string `env:"STORE_DRIVER, default=mongo"`

	Auth      AuthConfig
	Mongo     MongoConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	SMTP      SMTPConfig
	Mail      MailConfig
	SentryDSN string `env:"SENTRY_DSN"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTIssuer       string        `env:"JWT_ISSUER,       default=authcore"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,        default=12h"`
	LockThreshold   int           `env:"LOCK_THRESHOLD,   default=5"`
	LockDuration    time.Duration `env:"LOCK_DURATION,    default=30s"`
	VerificationTTL time.Duration `env:"VERIFICATION_TTL, default=30m"`
	BcryptCost      int           `env:"BCRYPT_COST,      default=10"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=authcore"`
}

type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

// RedisConfig leaves Addr empty by default; the login limiter then falls
// back to the in-process store.
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`
	DB   int    `env:"REDIS_DB, default=0"`
}

type RateLimitConfig struct {
	Limit  int           `env:"LOGIN_RATE_LIMIT,  default=20"`
	Window time.Duration `env:"LOGIN_RATE_WINDOW, default=1m"`
}

// SMTPConfig is optional. Without a host, verification mail is logged
// instead of sent.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,     default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,     default=no-reply@authcore.local"`
	FromName string `env:"SMTP_FROM_NAME, default=authcore"`
	TLS      bool   `env:"SMTP_TLS,      default=true"`
}

type MailConfig struct {
	VerifyBaseURL string `env:"VERIFY_BASE_URL, default=http://localhost:8080/auth/verify"`
	ResetBaseURL  string `env:"RESET_BASE_URL,  default=http://localhost:3000/reset-password"`
	Workers       int    `env:"MAIL_WORKERS,    default=4"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.LockThreshold <= 0 {
		errs = append(errs, errors.New("LOCK_THRESHOLD must be positive"))
	}
	if c.Auth.LockDuration <= 0 {
		errs = append(errs, errors.New("LOCK_DURATION must be positive"))
	}
	if c.Auth.VerificationTTL <= 0 {
		errs = append(errs, errors.New("VERIFICATION_TTL must be positive"))
	}
	switch c.Store {
	case StoreMongo, StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of mongo, postgres, memory", c.Store))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
