package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionRepository implements the auction repository interface on
// PostgreSQL. Updates are compare-and-swap on the version column so sweeps
// running in other processes cannot silently overwrite a bid's mutation.
type AuctionRepository struct {
	conn *Connection
}

// NewAuctionRepository creates a new auction repository
func NewAuctionRepository(conn *Connection) *AuctionRepository {
	return &AuctionRepository{conn: conn}
}

const auctionColumns = `
	id, listing_id, seller_id, currency, starting_price, current_bid,
	min_increment, reserve_price, reserve_met,
	start_time, original_end_time, current_end_time,
	anti_sniping_enabled, extension_window_seconds, extension_length_seconds,
	extension_count, max_extensions,
	status, winner_id, final_price, version, created_at, updated_at
`

func (r *AuctionRepository) Create(ctx context.Context, a *auction.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.ListingID,
		a.SellerID,
		a.Currency,
		a.StartingPrice,
		nullDecimal(a.CurrentBid),
		a.MinIncrement,
		nullDecimal(a.ReservePrice),
		a.ReserveMet,
		a.StartTime,
		a.OriginalEndTime,
		a.CurrentEndTime,
		a.AntiSnipingEnabled,
		int64(a.ExtensionWindow.Seconds()),
		int64(a.ExtensionLength.Seconds()),
		a.ExtensionCount,
		a.MaxExtensions,
		a.Status,
		a.WinnerID,
		nullDecimal(a.FinalPrice),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}

	return nil
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`

	a, err := scanAuction(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	return a, nil
}

func (r *AuctionRepository) Update(ctx context.Context, a *auction.Auction) error {
	query := `
		UPDATE auctions
		SET current_bid = $2, reserve_met = $3, current_end_time = $4,
		    extension_count = $5, status = $6, winner_id = $7, final_price = $8,
		    version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		nullDecimal(a.CurrentBid),
		a.ReserveMet,
		a.CurrentEndTime,
		a.ExtensionCount,
		a.Status,
		a.WinnerID,
		nullDecimal(a.FinalPrice),
		a.UpdatedAt,
		a.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update auction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrVersionConflict
	}

	a.Version++
	return nil
}

func (r *AuctionRepository) ListByStatus(ctx context.Context, status auction.Status, limit int) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 ORDER BY created_at LIMIT $2`
	return r.queryAuctions(ctx, query, status, limit)
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = 'active' AND current_end_time <= $1 ORDER BY current_end_time LIMIT $2`
	return r.queryAuctions(ctx, query, now, limit)
}

func (r *AuctionRepository) ListStartable(ctx context.Context, now time.Time, limit int) ([]*auction.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = 'scheduled' AND start_time <= $1 ORDER BY start_time LIMIT $2`
	return r.queryAuctions(ctx, query, now, limit)
}

func (r *AuctionRepository) queryAuctions(ctx context.Context, query string, args ...any) ([]*auction.Auction, error) {
	rows, err := r.conn.GetDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*auction.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auctions: %w", err)
	}

	return auctions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*auction.Auction, error) {
	var a auction.Auction
	var currentBid, reservePrice, finalPrice decimal.NullDecimal
	var winnerID uuid.NullUUID
	var extensionWindowSec, extensionLengthSec int64

	err := row.Scan(
		&a.ID,
		&a.ListingID,
		&a.SellerID,
		&a.Currency,
		&a.StartingPrice,
		&currentBid,
		&a.MinIncrement,
		&reservePrice,
		&a.ReserveMet,
		&a.StartTime,
		&a.OriginalEndTime,
		&a.CurrentEndTime,
		&a.AntiSnipingEnabled,
		&extensionWindowSec,
		&extensionLengthSec,
		&a.ExtensionCount,
		&a.MaxExtensions,
		&a.Status,
		&winnerID,
		&finalPrice,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentBid.Valid {
		a.CurrentBid = &currentBid.Decimal
	}
	if reservePrice.Valid {
		a.ReservePrice = &reservePrice.Decimal
	}
	if finalPrice.Valid {
		a.FinalPrice = &finalPrice.Decimal
	}
	if winnerID.Valid {
		a.WinnerID = &winnerID.UUID
	}
	a.ExtensionWindow = time.Duration(extensionWindowSec) * time.Second
	a.ExtensionLength = time.Duration(extensionLengthSec) * time.Second

	return &a, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
