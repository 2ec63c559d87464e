package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// BidRepository implements the bid repository interface on PostgreSQL
type BidRepository struct {
	conn *Connection
}

// NewBidRepository creates a new bid repository
func NewBidRepository(conn *Connection) *BidRepository {
	return &BidRepository{conn: conn}
}

const bidColumns = `
	id, auction_id, bidder_id, amount, currency, status, reject_reason,
	is_winning, triggered_extension, deposit_id, ip_address, user_agent, created_at
`

func (r *BidRepository) Create(ctx context.Context, b *bid.Bid) error {
	query := `
		INSERT INTO bids (` + bidColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		b.Amount,
		b.Currency,
		b.Status,
		b.RejectReason,
		b.IsWinning,
		b.TriggeredExtension,
		b.DepositID,
		b.Provenance.IPAddress,
		b.Provenance.UserAgent,
		b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bid: %w", err)
	}

	return nil
}

func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrBidNotFound
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}

	return b, nil
}

func (r *BidRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY amount DESC, created_at DESC`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, b)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

func (r *BidRepository) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 AND is_winning = true`

	b, err := scanBid(r.conn.GetDB().QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrNoBidsFound
		}
		return nil, fmt.Errorf("failed to get winning bid: %w", err)
	}

	return b, nil
}

// SetWinning marks the given bid winning and clears the flag on every other
// bid of the auction in one transaction.
func (r *BidRepository) SetWinning(ctx context.Context, auctionID, bidID uuid.UUID) error {
	return r.conn.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE bids SET is_winning = false WHERE auction_id = $1 AND is_winning = true AND id <> $2`,
			auctionID, bidID,
		); err != nil {
			return fmt.Errorf("failed to clear winning bids: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bids SET is_winning = true WHERE id = $1 AND auction_id = $2 AND status = 'accepted'`,
			bidID, auctionID,
		)
		if err != nil {
			return fmt.Errorf("failed to set winning bid: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return shared.ErrBidNotFound
		}

		return nil
	})
}

func (r *BidRepository) CountWinning(ctx context.Context, auctionID uuid.UUID) (int, error) {
	var count int
	err := r.conn.GetDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE auction_id = $1 AND is_winning = true`,
		auctionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count winning bids: %w", err)
	}
	return count, nil
}

func (r *BidRepository) CountByBidderSince(ctx context.Context, bidderID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.conn.GetDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE bidder_id = $1 AND created_at >= $2`,
		bidderID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bidder bids: %w", err)
	}
	return count, nil
}

func scanBid(row rowScanner) (*bid.Bid, error) {
	var b bid.Bid
	var depositID uuid.NullUUID

	err := row.Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderID,
		&b.Amount,
		&b.Currency,
		&b.Status,
		&b.RejectReason,
		&b.IsWinning,
		&b.TriggeredExtension,
		&depositID,
		&b.Provenance.IPAddress,
		&b.Provenance.UserAgent,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if depositID.Valid {
		b.DepositID = &depositID.UUID
	}

	return &b, nil
}
