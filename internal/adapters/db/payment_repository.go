package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PaymentRepository implements the payment repository interface on PostgreSQL
type PaymentRepository struct {
	conn *Connection
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

const paymentColumns = `
	id, auction_id, buyer_id, seller_id, currency,
	hammer_price, buyer_fee, total_due,
	status, deadline, paid_at, payment_ref,
	payout_status, payout_ref, payout_attempts,
	created_at, updated_at
`

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		p.ID,
		p.AuctionID,
		p.BuyerID,
		p.SellerID,
		p.Currency,
		p.HammerPrice,
		p.BuyerFee,
		p.TotalDue,
		p.Status,
		p.Deadline,
		p.PaidAt,
		p.PaymentRef,
		p.PayoutStatus,
		p.PayoutRef,
		p.PayoutAttempts,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		// unique index on auction_id makes re-runs of the end pipeline safe
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return shared.ErrPaymentExists
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

func (r *PaymentRepository) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE auction_id = $1`

	p, err := scanPayment(r.conn.GetDB().QueryRowContext(ctx, query, auctionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, shared.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET status = $2, paid_at = $3, payment_ref = $4,
		    payout_status = $5, payout_ref = $6, payout_attempts = $7,
		    updated_at = $8
		WHERE id = $1
	`

	result, err := r.conn.GetDB().ExecContext(ctx, query,
		p.ID,
		p.Status,
		p.PaidAt,
		p.PaymentRef,
		p.PayoutStatus,
		p.PayoutRef,
		p.PayoutAttempts,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return shared.ErrPaymentNotFound
	}

	return nil
}

func (r *PaymentRepository) ListUnpaidPastDeadline(ctx context.Context, now time.Time, limit int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE status = 'unpaid' AND deadline < $1 ORDER BY deadline LIMIT $2`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	var paidAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.AuctionID,
		&p.BuyerID,
		&p.SellerID,
		&p.Currency,
		&p.HammerPrice,
		&p.BuyerFee,
		&p.TotalDue,
		&p.Status,
		&p.Deadline,
		&paidAt,
		&p.PaymentRef,
		&p.PayoutStatus,
		&p.PayoutRef,
		&p.PayoutAttempts,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}

	return &p, nil
}
