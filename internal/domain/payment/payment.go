package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the settlement status of a winning bid
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// PayoutStatus tracks the seller-side transfer linked to a payment
type PayoutStatus string

const (
	PayoutNone      PayoutStatus = "none"
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// Payment tracks the post-auction financial settlement for the winning bid:
// the buyer-fee charge with its deadline, and the linked seller payout.
type Payment struct {
	ID          uuid.UUID       `json:"id"`
	AuctionID   uuid.UUID       `json:"auction_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	SellerID    uuid.UUID       `json:"seller_id"`
	Currency    string          `json:"currency"`
	HammerPrice decimal.Decimal `json:"hammer_price"`
	BuyerFee    decimal.Decimal `json:"buyer_fee"`
	TotalDue    decimal.Decimal `json:"total_due"`

	Status     Status     `json:"status"`
	Deadline   time.Time  `json:"deadline"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	PaymentRef string     `json:"payment_ref,omitempty"`

	PayoutStatus   PayoutStatus `json:"payout_status"`
	PayoutRef      string       `json:"payout_ref,omitempty"`
	PayoutAttempts int          `json:"payout_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPaid returns true once the buyer fee was confirmed
func (p *Payment) IsPaid() bool {
	return p.Status == StatusPaid
}

// IsOverdue returns true if the payment was flagged past its deadline
func (p *Payment) IsOverdue() bool {
	return p.Status == StatusOverdue
}

// PastDeadline returns true if an unpaid payment has exceeded its deadline
func (p *Payment) PastDeadline(now time.Time) bool {
	return p.Status == StatusUnpaid && now.After(p.Deadline)
}

// MarkPaid records the confirmed gateway reference and transitions to paid.
// Returns false without mutating if the payment is already paid.
func (p *Payment) MarkPaid(ref string, now time.Time) bool {
	if p.Status == StatusPaid {
		return false
	}
	p.Status = StatusPaid
	p.PaymentRef = ref
	p.PaidAt = &now
	p.UpdatedAt = now
	return true
}

// MarkOverdue flags an unpaid payment past its deadline. Overdue is a signal
// for administrative follow-up, not a terminal state: the payment can still
// be confirmed afterwards.
func (p *Payment) MarkOverdue(now time.Time) bool {
	if p.Status != StatusUnpaid {
		return false
	}
	p.Status = StatusOverdue
	p.UpdatedAt = now
	return true
}
