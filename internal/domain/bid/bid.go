package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the status of a bid
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Provenance captures where a bid attempt came from, kept for fraud review
type Provenance struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// Bid represents one accepted or rejected bid attempt. Bids are immutable
// once written; rejections are recorded, not deleted.
type Bid struct {
	ID                 uuid.UUID       `json:"id"`
	AuctionID          uuid.UUID       `json:"auction_id"`
	BidderID           uuid.UUID       `json:"bidder_id"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             Status          `json:"status"`
	RejectReason       string          `json:"reject_reason,omitempty"`
	IsWinning          bool            `json:"is_winning"`
	TriggeredExtension bool            `json:"triggered_extension"`
	DepositID          *uuid.UUID      `json:"deposit_id,omitempty"`
	Provenance         Provenance      `json:"provenance"`
	CreatedAt          time.Time       `json:"created_at"`
}

// IsAccepted returns true if the bid was accepted
func (b *Bid) IsAccepted() bool {
	return b.Status == StatusAccepted
}

// Reject marks the bid rejected with the given reason
func (b *Bid) Reject(reason string) {
	b.Status = StatusRejected
	b.RejectReason = reason
	b.IsWinning = false
}
