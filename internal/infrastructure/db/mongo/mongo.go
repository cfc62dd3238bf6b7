package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout = 10 * time.Second
	// defaultOpTimeout bounds every operation that carries no earlier deadline.
	defaultOpTimeout = 5 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI       string
	Database  string
	Timeout   time.Duration
	// OpTimeout is the client-side per-operation timeout.
	OpTimeout time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetTimeout(opTimeout))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the indexes the account and audit collections rely
// on and stamps login_version 0 onto accounts that predate it. The unique
// email index is what turns concurrent sign-ups into duplicate-key errors.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(accountCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		{Keys: bson.D{{Key: "verification_token", Value: 1}}, Options: options.Index().SetSparse(true).SetName("verification_token")},
		{Keys: bson.D{{Key: "reset_token", Value: 1}}, Options: options.Index().SetSparse(true).SetName("reset_token")},
	})
	if err != nil {
		return fmt.Errorf("account indexes: %w", err)
	}

	_, err = db.Collection(accountCollection).UpdateMany(ctx, legacyLoginVersionFilter(), bson.M{"$set": bson.M{"login_version": int64(0)}})
	if err != nil {
		return fmt.Errorf("backfill login_version: %w", err)
	}

	_, err = db.Collection(adminLogCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: -1}},
		Options: options.Index().SetName("created_at_desc"),
	})
	if err != nil {
		return fmt.Errorf("admin log indexes: %w", err)
	}
	return nil
}

// legacyLoginVersionFilter selects accounts written before login_version
// was introduced.
func legacyLoginVersionFilter() bson.M {
	return bson.M{"login_version": bson.M{"$exists": false}}
}

// Ping reports whether the deployment is reachable; used by readiness checks.
func Ping(ctx context.Context, client *mongo.Client) error {
	return client.Ping(ctx, nil)
}
