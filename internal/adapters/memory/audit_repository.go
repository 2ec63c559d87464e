package memory

import (
	"context"
	"sync"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuditRepository is an in-memory append-only ledger
type AuditRepository struct {
	mu      sync.RWMutex
	entries []*shared.AuditEntry
}

// NewAuditRepository creates a new in-memory audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Append(ctx context.Context, e *shared.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*shared.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*shared.AuditEntry
	for _, e := range r.entries {
		if e.ResourceType == resourceType && e.ResourceID == resourceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CountByAction returns how many entries carry the given action (test helper)
func (r *AuditRepository) CountByAction(action string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.Action == action {
			count++
		}
	}
	return count
}
