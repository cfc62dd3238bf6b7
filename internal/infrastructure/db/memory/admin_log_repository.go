package memory

import (
	"context"
	"sync"

	"github.com/stockpulse/authcore/internal/core/domain"
	"github.com/stockpulse/authcore/internal/core/ports"
)

type AdminLogRepository struct {
	mu      sync.Mutex
	entries []domain.AdminLogEntry
}

var _ ports.AdminLogRepository = (*AdminLogRepository)(nil)

func NewAdminLogRepository() *AdminLogRepository {
	return &AdminLogRepository{}
}

func (r *AdminLogRepository) Insert(_ context.Context, entry *domain.AdminLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// ListRecent returns at most limit entries, newest first.
func (r *AdminLogRepository) ListRecent(_ context.Context, limit int) ([]*domain.AdminLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.AdminLogEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		out = append(out, &e)
	}
	return out, nil
}
