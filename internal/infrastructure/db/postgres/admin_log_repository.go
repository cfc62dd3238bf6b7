package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

type AdminLogRepository struct {
	db *sql.DB
}

var _ ports.AdminLogRepository = (*AdminLogRepository)(nil)

func NewAdminLogRepository(db *sql.DB) *AdminLogRepository {
	return &AdminLogRepository{db: db}
}

func (r *AdminLogRepository) Insert(ctx context.Context, e *domain.AdminLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_logs (id, actor, target, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Actor, e.Target, string(e.Action), e.Detail, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert admin log: %w", err)
	}
	return nil
}

func (r *AdminLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.AdminLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, actor, target, action, detail, created_at
		FROM admin_logs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list admin logs: %w", err)
	}
	defer rows.Close()

	var out []*domain.AdminLogEntry
	for rows.Next() {
		var (
			e      domain.AdminLogEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Target, &action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin log: %w", err)
		}
		e.Action = domain.AdminAction(action)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
