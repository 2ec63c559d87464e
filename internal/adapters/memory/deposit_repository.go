package memory

import (
	"context"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/deposit"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// DepositRepository is an in-memory deposit store. CreateIfAbsent and
// Transition are atomic under one mutex, matching the PostgreSQL adapter's
// partial-unique-index and conditional-update semantics.
type DepositRepository struct {
	mu       sync.Mutex
	deposits map[uuid.UUID]*deposit.Deposit
}

// NewDepositRepository creates a new in-memory deposit repository
func NewDepositRepository() *DepositRepository {
	return &DepositRepository{deposits: make(map[uuid.UUID]*deposit.Deposit)}
}

func (r *DepositRepository) CreateIfAbsent(ctx context.Context, d *deposit.Deposit) (*deposit.Deposit, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.deposits {
		if existing.BidderID == d.BidderID && existing.AuctionID == d.AuctionID && existing.IsHeld() {
			cp := *existing
			return &cp, false, nil
		}
	}

	cp := *d
	r.deposits[d.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*deposit.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[id]
	if !ok {
		return nil, shared.ErrDepositNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DepositRepository) GetHeld(ctx context.Context, bidderID, auctionID uuid.UUID) (*deposit.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.deposits {
		if d.BidderID == bidderID && d.AuctionID == auctionID && d.IsHeld() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, shared.ErrDepositNotFound
}

func (r *DepositRepository) ListHeldByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*deposit.Deposit
	for _, d := range r.deposits {
		if d.AuctionID == auctionID && d.IsHeld() {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *DepositRepository) Transition(ctx context.Context, id uuid.UUID, to deposit.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deposits[id]
	if !ok {
		return false, shared.ErrDepositNotFound
	}
	if !d.IsHeld() {
		return false, nil
	}

	switch to {
	case deposit.StatusReleased:
		d.Release(at)
	case deposit.StatusCaptured:
		d.Capture(at)
	default:
		return false, shared.ErrDepositTerminal
	}
	return true, nil
}
