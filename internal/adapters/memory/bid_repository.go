package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// BidRepository is an in-memory bid store
type BidRepository struct {
	mu   sync.RWMutex
	bids map[uuid.UUID]*bid.Bid
}

// NewBidRepository creates a new in-memory bid repository
func NewBidRepository() *BidRepository {
	return &BidRepository{bids: make(map[uuid.UUID]*bid.Bid)}
}

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *b
	r.bids[b.ID] = &cp
	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bids[id]
	if !ok {
		return nil, shared.ErrNoBidsFound
	}
	cp := *b
	return &cp, nil
}

func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*bid.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *BidRepository) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			cp := *b
			return &cp, nil
		}
	}
	return nil, shared.ErrNoBidsFound
}

func (r *BidRepository) SetWinning(ctx context.Context, auctionID, bidID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			b.IsWinning = b.ID == bidID
		}
	}
	return nil
}

func (r *BidRepository) CountWinning(ctx context.Context, auctionID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			count++
		}
	}
	return count, nil
}

func (r *BidRepository) CountByBidderSince(ctx context.Context, bidderID uuid.UUID, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, b := range r.bids {
		if b.BidderID == bidderID && !b.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
