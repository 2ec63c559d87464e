package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paddock-auction-engine/internal/domain/deposit"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// DepositRepository implements the deposit repository interface on
// PostgreSQL. The at-most-one-HELD-per-(bidder, auction) invariant is
// enforced by a partial unique index, so concurrent inserts race safely at
// the database instead of in application code.
type DepositRepository struct {
	conn *Connection
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(conn *Connection) *DepositRepository {
	return &DepositRepository{conn: conn}
}

const depositColumns = `
	id, bidder_id, auction_id, amount, currency, hold_ref, status,
	held_at, released_at, captured_at
`

// CreateIfAbsent relies on the partial unique index
// deposits_one_held_per_pair ON (bidder_id, auction_id) WHERE status = 'held'.
// ON CONFLICT DO NOTHING makes the losing insert a no-op; the winner is then
// read back so both racers observe the same surviving hold.
func (r *DepositRepository) CreateIfAbsent(ctx context.Context, d *deposit.Deposit) (*deposit.Deposit, bool, error) {
	query := `
		INSERT INTO deposits (` + depositColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (bidder_id, auction_id) WHERE status = 'held' DO NOTHING
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		d.ID,
		d.BidderID,
		d.AuctionID,
		d.Amount,
		d.Currency,
		d.HoldRef,
		d.Status,
		d.HeldAt,
		d.ReleasedAt,
		d.CapturedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create deposit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return d, true, nil
	}

	existing, err := r.GetHeld(ctx, d.BidderID, d.AuctionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read surviving deposit: %w", err)
	}
	return existing, false, nil
}

func (r *DepositRepository) GetByID(ctx context.Context, id uuid.UUID) (*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

	d, err := scanDeposit(r.conn.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return d, nil
}

func (r *DepositRepository) GetHeld(ctx context.Context, bidderID, auctionID uuid.UUID) (*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE bidder_id = $1 AND auction_id = $2 AND status = 'held'`

	d, err := scanDeposit(r.conn.GetDB().QueryRowContext(ctx, query, bidderID, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get held deposit: %w", err)
	}

	return d, nil
}

func (r *DepositRepository) ListHeldByAuction(ctx context.Context, auctionID uuid.UUID) ([]*deposit.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE auction_id = $1 AND status = 'held' ORDER BY held_at`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list held deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*deposit.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}

	return deposits, nil
}

// Transition moves a deposit out of HELD. The status precondition in the
// WHERE clause makes concurrent release/capture attempts settle to exactly
// one winner; losers see rowsAffected == 0.
func (r *DepositRepository) Transition(ctx context.Context, id uuid.UUID, to deposit.Status, at time.Time) (bool, error) {
	var timestampColumn string
	switch to {
	case deposit.StatusReleased:
		timestampColumn = "released_at"
	case deposit.StatusCaptured:
		timestampColumn = "captured_at"
	default:
		return false, fmt.Errorf("invalid deposit transition target: %s", to)
	}

	query := fmt.Sprintf(
		`UPDATE deposits SET status = $2, %s = $3 WHERE id = $1 AND status = 'held'`,
		timestampColumn,
	)

	result, err := r.conn.GetDB().ExecContext(ctx, query, id, to, at)
	if err != nil {
		return false, fmt.Errorf("failed to transition deposit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func scanDeposit(row rowScanner) (*deposit.Deposit, error) {
	var d deposit.Deposit
	var releasedAt, capturedAt sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.BidderID,
		&d.AuctionID,
		&d.Amount,
		&d.Currency,
		&d.HoldRef,
		&d.Status,
		&d.HeldAt,
		&releasedAt,
		&capturedAt,
	)
	if err != nil {
		return nil, err
	}

	if releasedAt.Valid {
		d.ReleasedAt = &releasedAt.Time
	}
	if capturedAt.Valid {
		d.CapturedAt = &capturedAt.Time
	}

	return &d, nil
}
