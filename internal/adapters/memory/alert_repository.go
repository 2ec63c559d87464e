package memory

import (
	"context"
	"sync"

	"paddock-auction-engine/internal/domain/fraud"

	"github.com/google/uuid"
)

// AlertRepository is an in-memory fraud-alert store
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*fraud.Alert
}

// NewAlertRepository creates a new in-memory alert repository
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uuid.UUID]*fraud.Alert)}
}

func (r *AlertRepository) Create(ctx context.Context, a *fraud.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *AlertRepository) CountOpenByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.alerts {
		if a.UserID == userID && a.Status == fraud.AlertOpen {
			count++
		}
	}
	return count, nil
}

func (r *AlertRepository) Update(ctx context.Context, a *fraud.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

// ListByUser returns every alert raised against a user (test helper)
func (r *AlertRepository) ListByUser(userID uuid.UUID) []*fraud.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*fraud.Alert
	for _, a := range r.alerts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}
