package inbound

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService owns the auction lifecycle
type AuctionService interface {
	// Schedule creates a SCHEDULED auction from an approved listing
	Schedule(ctx context.Context, req ScheduleAuctionRequest) (*auction.Auction, error)

	// Activate moves a scheduled auction to ACTIVE once its start time has
	// passed; calling on an already-active auction is a no-op
	Activate(ctx context.Context, auctionID uuid.UUID) error

	// End closes an expired active auction, settles deposits and
	// initializes the payment deadline; idempotent
	End(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionEndResult, error)

	// Cancel terminates a scheduled or active auction and releases all
	// outstanding deposits
	Cancel(ctx context.Context, auctionID uuid.UUID, reason string) error

	// GetAuction retrieves an auction by ID
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error)
}

// BidService accepts or rejects bid attempts
type BidService interface {
	// PlaceBid runs the full admission pipeline for one bid attempt
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*shared.PlaceBidResult, error)

	// GetBids retrieves bids for an auction
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// GetWinningBid retrieves the current winning bid for an auction
	GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)
}

// SettlementService drives the post-auction payment pipeline
type SettlementService interface {
	// ChargeBuyerFee initiates the winner's fee charge; the outcome may
	// require a step-up challenge
	ChargeBuyerFee(ctx context.Context, auctionID, buyerID uuid.UUID) (*shared.ChargeOutcome, error)

	// ConfirmBuyerFeePayment marks the payment paid, keyed by the gateway
	// reference; idempotent
	ConfirmBuyerFeePayment(ctx context.Context, auctionID uuid.UUID, paymentRef string) error

	// CheckOverduePayments flags unpaid payments past their deadline and
	// returns the affected auction ids
	CheckOverduePayments(ctx context.Context) ([]uuid.UUID, error)

	// GetPayment retrieves the settlement record for an auction
	GetPayment(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error)
}

// PayoutService transfers sale proceeds to the seller
type PayoutService interface {
	// CreateSellerPayout transfers the final price to the seller once the
	// buyer payment is confirmed
	CreateSellerPayout(ctx context.Context, auctionID uuid.UUID) error

	// RetrySellerPayout re-attempts a failed payout under the same
	// idempotency key
	RetrySellerPayout(ctx context.Context, auctionID uuid.UUID) error

	// PayoutStatus reports the payout state queryable by the seller
	PayoutStatus(ctx context.Context, auctionID uuid.UUID) (payment.PayoutStatus, error)
}

// ScheduleAuctionRequest creates an auction from an approved listing
type ScheduleAuctionRequest struct {
	Listing       shared.Listing  `json:"listing"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// PlaceBidRequest carries one bid attempt through the admission pipeline
type PlaceBidRequest struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	IPAddress string          `json:"ip_address"`
	UserAgent string          `json:"user_agent"`
}
