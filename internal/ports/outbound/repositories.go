package outbound

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/deposit"
	"paddock-auction-engine/internal/domain/fraud"
	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionRepository defines the interface for auction data operations
type AuctionRepository interface {
	// Create creates a new auction
	Create(ctx context.Context, a *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// Update persists the auction iff the stored version matches the
	// auction's pre-mutation version, then bumps it. Returns
	// shared.ErrVersionConflict on a lost race.
	Update(ctx context.Context, a *auction.Auction) error

	// ListByStatus retrieves auctions in the given status
	ListByStatus(ctx context.Context, status auction.Status, limit int) ([]*auction.Auction, error)

	// ListExpired retrieves active auctions whose current end time has passed
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)

	// ListStartable retrieves scheduled auctions whose start time has passed
	ListStartable(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error)
}

// BidRepository defines the interface for bid data operations
type BidRepository interface {
	// Create records a bid attempt (accepted or rejected); bids are
	// immutable once written except for the winning flag
	Create(ctx context.Context, b *bid.Bid) error

	// GetByID retrieves a bid by ID
	GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error)

	// GetByAuctionID retrieves all bids for an auction, highest first
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)

	// GetWinningBid retrieves the bid currently flagged winning, or
	// shared.ErrNoBidsFound
	GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error)

	// SetWinning flags bidID winning and clears the flag on every other bid
	// of the auction in one statement
	SetWinning(ctx context.Context, auctionID, bidID uuid.UUID) error

	// CountWinning returns how many bids carry the winning flag; anything
	// other than 0 or 1 is an invariant violation
	CountWinning(ctx context.Context, auctionID uuid.UUID) (int, error)

	// CountByBidderSince counts a bidder's attempts across all auctions
	// since the given instant (fraud velocity input)
	CountByBidderSince(ctx context.Context, bidderID uuid.UUID, since time.Time) (int, error)
}

// DepositRepository defines the interface for deposit hold data operations
type DepositRepository interface {
	// CreateIfAbsent atomically inserts d unless a HELD deposit already
	// exists for the same (bidder, auction) pair; returns the surviving
	// deposit and whether d was the one inserted
	CreateIfAbsent(ctx context.Context, d *deposit.Deposit) (*deposit.Deposit, bool, error)

	// GetByID retrieves a deposit by ID
	GetByID(ctx context.Context, id uuid.UUID) (*deposit.Deposit, error)

	// GetHeld retrieves the active hold for a (bidder, auction) pair, or
	// shared.ErrDepositNotFound
	GetHeld(ctx context.Context, bidderID, auctionID uuid.UUID) (*deposit.Deposit, error)

	// ListHeldByAuction retrieves every active hold on an auction
	ListHeldByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error)

	// Transition moves a deposit from HELD into the given terminal status.
	// Returns false (and no error) if the deposit already left HELD.
	Transition(ctx context.Context, id uuid.UUID, to deposit.Status, at time.Time) (bool, error)
}

// PaymentRepository defines the interface for settlement records
type PaymentRepository interface {
	// Create inserts the payment record; returns shared.ErrPaymentExists
	// if one already exists for the auction
	Create(ctx context.Context, p *payment.Payment) error

	// GetByAuctionID retrieves the payment for an auction
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error)

	// Update persists payment mutations
	Update(ctx context.Context, p *payment.Payment) error

	// ListUnpaidPastDeadline retrieves unpaid payments past their deadline
	ListUnpaidPastDeadline(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error)
}

// FraudAlertRepository stores flagged anomalies
type FraudAlertRepository interface {
	// Create records an alert
	Create(ctx context.Context, a *fraud.Alert) error

	// CountOpenByUser counts open alerts against a user
	CountOpenByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// Update persists a review resolution
	Update(ctx context.Context, a *fraud.Alert) error
}

// AuditRepository is the append-only ledger of state transitions
type AuditRepository interface {
	// Append writes one entry; entries are never mutated or deleted
	Append(ctx context.Context, e *shared.AuditEntry) error

	// ListByResource retrieves entries for one resource, oldest first
	ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*shared.AuditEntry, error)
}
