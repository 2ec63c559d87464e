package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the current status of an auction
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// Auction represents one time-boxed sale of one approved listing
type Auction struct {
	ID            uuid.UUID        `json:"id"`
	ListingID     uuid.UUID        `json:"listing_id"`
	SellerID      uuid.UUID        `json:"seller_id"`
	Currency      string           `json:"currency"`
	StartingPrice decimal.Decimal  `json:"starting_price"`
	CurrentBid    *decimal.Decimal `json:"current_bid,omitempty"`
	MinIncrement  decimal.Decimal  `json:"min_increment"`
	ReservePrice  *decimal.Decimal `json:"reserve_price,omitempty"`
	ReserveMet    bool             `json:"reserve_met"`

	StartTime       time.Time `json:"start_time"`
	OriginalEndTime time.Time `json:"original_end_time"`
	CurrentEndTime  time.Time `json:"current_end_time"`

	AntiSnipingEnabled bool          `json:"anti_sniping_enabled"`
	ExtensionWindow    time.Duration `json:"extension_window"`
	ExtensionLength    time.Duration `json:"extension_length"`
	ExtensionCount     int           `json:"extension_count"`
	MaxExtensions      int           `json:"max_extensions"`

	Status     Status           `json:"status"`
	WinnerID   *uuid.UUID       `json:"winner_id,omitempty"`
	FinalPrice *decimal.Decimal `json:"final_price,omitempty"`

	// Version is bumped on every mutation and backs the repositories'
	// compare-and-swap updates.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true if the auction is currently accepting bids
func (a *Auction) IsActive() bool {
	return a.Status == StatusActive
}

// IsTerminal returns true once the auction reached a final state
func (a *Auction) IsTerminal() bool {
	return a.Status == StatusEnded || a.Status == StatusCancelled
}

// HasStarted returns true if the scheduled start time has passed
func (a *Auction) HasStarted(now time.Time) bool {
	return !now.Before(a.StartTime)
}

// HasExpired returns true if the current end time has passed
func (a *Auction) HasExpired(now time.Time) bool {
	return !now.Before(a.CurrentEndTime)
}

// InExtensionWindow returns true if a bid at this instant lands inside the
// anti-sniping window
func (a *Auction) InExtensionWindow(now time.Time) bool {
	if !a.AntiSnipingEnabled {
		return false
	}
	return a.CurrentEndTime.Sub(now) <= a.ExtensionWindow
}

// CanExtend returns true while the extension budget is not exhausted
func (a *Auction) CanExtend() bool {
	return a.ExtensionCount < a.MaxExtensions
}

// MinimumNextBid returns the lowest admissible bid amount: the starting
// price while no bid exists, current bid plus increment after
func (a *Auction) MinimumNextBid() decimal.Decimal {
	if a.CurrentBid == nil {
		return a.StartingPrice
	}
	return a.CurrentBid.Add(a.MinIncrement)
}

// Extend pushes the current end time out by the extension length and
// consumes one extension. Callers must hold the auction's serialization
// scope and check CanExtend first.
func (a *Auction) Extend(now time.Time) {
	a.CurrentEndTime = a.CurrentEndTime.Add(a.ExtensionLength)
	a.ExtensionCount++
	a.UpdatedAt = now
}

// AcceptBid records amount as the new highest bid
func (a *Auction) AcceptBid(amount decimal.Decimal, now time.Time) {
	a.CurrentBid = &amount
	a.UpdatedAt = now
}
