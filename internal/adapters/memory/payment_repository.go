package memory

import (
	"context"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// PaymentRepository is an in-memory settlement store; at most one payment
// per auction, enforced on insert
type PaymentRepository struct {
	mu        sync.Mutex
	byAuction map[uuid.UUID]*payment.Payment
}

// NewPaymentRepository creates a new in-memory payment repository
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{byAuction: make(map[uuid.UUID]*payment.Payment)}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAuction[p.AuctionID]; exists {
		return shared.ErrPaymentExists
	}
	cp := *p
	r.byAuction[p.AuctionID] = &cp
	return nil
}

func (r *PaymentRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byAuction[auctionID]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byAuction[p.AuctionID]; !ok {
		return shared.ErrPaymentNotFound
	}
	cp := *p
	r.byAuction[p.AuctionID] = &cp
	return nil
}

func (r *PaymentRepository) ListUnpaidPastDeadline(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*payment.Payment
	for _, p := range r.byAuction {
		if p.PastDeadline(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return clip(out, limit), nil
}
