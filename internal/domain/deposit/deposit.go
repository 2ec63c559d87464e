package deposit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a deposit hold
type Status string

const (
	StatusHeld     Status = "held"
	StatusReleased Status = "released"
	StatusCaptured Status = "captured"
)

// Deposit is a refundable pre-authorization backing a bidder's participation
// in one auction. At most one HELD deposit exists per (bidder, auction) pair;
// released and captured are terminal.
type Deposit struct {
	ID         uuid.UUID       `json:"id"`
	BidderID   uuid.UUID       `json:"bidder_id"`
	AuctionID  uuid.UUID       `json:"auction_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	HoldRef    string          `json:"hold_ref"`
	Status     Status          `json:"status"`
	HeldAt     time.Time       `json:"held_at"`
	ReleasedAt *time.Time      `json:"released_at,omitempty"`
	CapturedAt *time.Time      `json:"captured_at,omitempty"`
}

// IsHeld returns true while the hold is still active
func (d *Deposit) IsHeld() bool {
	return d.Status == StatusHeld
}

// IsTerminal returns true once the deposit was released or captured
func (d *Deposit) IsTerminal() bool {
	return d.Status == StatusReleased || d.Status == StatusCaptured
}

// Release marks the hold released. No-op if already terminal.
func (d *Deposit) Release(now time.Time) bool {
	if d.IsTerminal() {
		return false
	}
	d.Status = StatusReleased
	d.ReleasedAt = &now
	return true
}

// Capture marks the hold captured. No-op if already terminal.
func (d *Deposit) Capture(now time.Time) bool {
	if d.IsTerminal() {
		return false
	}
	d.Status = StatusCaptured
	d.CapturedAt = &now
	return true
}
