package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository is an in-memory auction store with the same
// compare-and-swap update semantics as the PostgreSQL adapter
type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*auction.Auction
}

// NewAuctionRepository creates a new in-memory auction repository
func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{auctions: make(map[uuid.UUID]*auction.Auction)}
}

func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	r.auctions[a.ID] = &cp
	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[a.ID]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	if stored.Version != a.Version {
		return shared.ErrVersionConflict
	}

	cp := *a
	cp.Version++
	r.auctions[a.ID] = &cp
	a.Version = cp.Version
	return nil
}

func (r *AuctionRepository) ListByStatus(ctx context.Context, status auction.Status, limit int) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.Status == status {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return clip(out, limit), nil
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.Status == auction.StatusActive && a.HasExpired(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return clip(out, limit), nil
}

func (r *AuctionRepository) ListStartable(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*auction.Auction
	for _, a := range r.auctions {
		if a.Status == auction.StatusScheduled && a.HasStarted(now) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return clip(out, limit), nil
}

func sortByCreation(auctions []*auction.Auction) {
	sort.Slice(auctions, func(i, j int) bool {
		return auctions[i].CreatedAt.Before(auctions[j].CreatedAt)
	})
}

func clip[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
