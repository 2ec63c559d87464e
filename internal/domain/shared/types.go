package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionEndResult represents the outcome of ending an auction
type AuctionEndResult struct {
	AuctionID  uuid.UUID
	WinnerID   *uuid.UUID
	FinalPrice *decimal.Decimal
	ReserveMet bool
	Status     string
}

// PlaceBidResult is returned for every bid attempt, accepted or rejected;
// accepted results carry the post-bid auction snapshot so callers can
// broadcast the change.
type PlaceBidResult struct {
	Accepted       bool             `json:"accepted"`
	ReasonCode     string           `json:"reason_code,omitempty"`
	BidID          uuid.UUID        `json:"bid_id"`
	CurrentBid     *decimal.Decimal `json:"current_bid,omitempty"`
	CurrentEndTime time.Time        `json:"current_end_time"`
	Extended       bool             `json:"extended"`
}

// ChargeStatus enumerates the three-way outcome of a buyer-fee charge
type ChargeStatus string

const (
	ChargeSucceeded      ChargeStatus = "succeeded"
	ChargeActionRequired ChargeStatus = "action_required"
	ChargeFailed         ChargeStatus = "failed"
)

// ChargeOutcome is the result of initiating a buyer-fee charge. An
// action_required outcome carries the data callers need to complete a
// step-up challenge and resume the same payment attempt.
type ChargeOutcome struct {
	Status        ChargeStatus   `json:"status"`
	Reference     string         `json:"reference,omitempty"`
	ChallengeData map[string]any `json:"challenge_data,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
}
