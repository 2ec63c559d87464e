package db

import (
	"context"
	"encoding/json"
	"fmt"

	"paddock-auction-engine/internal/domain/fraud"

	"github.com/google/uuid"
)

// AlertRepository implements the fraud alert repository interface on
// PostgreSQL. Evidence is stored as JSONB so each heuristic can attach its
// own shape without schema changes.
type AlertRepository struct {
	conn *Connection
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(conn *Connection) *AlertRepository {
	return &AlertRepository{conn: conn}
}

func (r *AlertRepository) Create(ctx context.Context, a *fraud.Alert) error {
	evidence, err := json.Marshal(a.Evidence)
	if err != nil {
		return fmt.Errorf("failed to marshal alert evidence: %w", err)
	}

	query := `
		INSERT INTO fraud_alerts (
			id, user_id, auction_id, bid_id, alert_type, severity, status,
			evidence, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.AuctionID,
		a.BidID,
		a.Type,
		a.Severity,
		a.Status,
		evidence,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fraud alert: %w", err)
	}

	return nil
}

func (r *AlertRepository) CountOpenByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.conn.GetDB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fraud_alerts WHERE user_id = $1 AND status = 'open'`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open alerts: %w", err)
	}
	return count, nil
}

func (r *AlertRepository) Update(ctx context.Context, a *fraud.Alert) error {
	query := `
		UPDATE fraud_alerts
		SET status = $2, reviewer_id = $3, resolution_notes = $4, reviewed_at = $5
		WHERE id = $1
	`

	_, err := r.conn.GetDB().ExecContext(ctx, query,
		a.ID,
		a.Status,
		a.ReviewerID,
		a.ResolutionNotes,
		a.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update fraud alert: %w", err)
	}

	return nil
}
