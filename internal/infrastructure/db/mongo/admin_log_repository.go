package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

const adminLogCollection = "admin_logs"

// AdminLogRepository implements ports.AdminLogRepository using MongoDB.
type AdminLogRepository struct {
	coll *mongo.Collection
}

func NewAdminLogRepository(db *mongo.Database) ports.AdminLogRepository {
	return &AdminLogRepository{coll: db.Collection(adminLogCollection)}
}

type adminLogDoc struct {
	ID        string    `bson:"_id"`
	Actor     string    `bson:"actor"`
	Target    string    `bson:"target"`
	Action    string    `bson:"action"`
	Detail    string    `bson:"detail,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *AdminLogRepository) Insert(ctx context.Context, entry *domain.AdminLogEntry) error {
	doc := adminLogDoc{
		ID:        entry.ID,
		Actor:     entry.Actor,
		Target:    entry.Target,
		Action:    string(entry.Action),
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert admin log: %w", err)
	}
	return nil
}

func (r *AdminLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AdminLogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list admin logs: %w", err)
	}
	defer cur.Close(ctx)

	var docs []adminLogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode admin logs: %w", err)
	}

	out := make([]*domain.AdminLogEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AdminLogEntry{
			ID:        d.ID,
			Actor:     d.Actor,
			Target:    d.Target,
			Action:    domain.AdminAction(d.Action),
			Detail:    d.Detail,
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return out, nil
}
