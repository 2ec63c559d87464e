package db

import (
	"context"
	"encoding/json"
	"fmt"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuditRepository implements the append-only audit ledger on PostgreSQL.
// There is no update or delete path on purpose.
type AuditRepository struct {
	conn *Connection
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(conn *Connection) *AuditRepository {
	return &AuditRepository{conn: conn}
}

func (r *AuditRepository) Append(ctx context.Context, e *shared.AuditEntry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}

	query := `
		INSERT INTO audit_log (
			id, actor, action, resource_type, resource_id,
			severity, success, detail, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.conn.GetDB().ExecContext(ctx, query,
		e.ID,
		e.Actor,
		e.Action,
		e.ResourceType,
		e.ResourceID,
		e.Severity,
		e.Success,
		detail,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

func (r *AuditRepository) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) ([]*shared.AuditEntry, error) {
	query := `
		SELECT id, actor, action, resource_type, resource_id,
		       severity, success, detail, created_at
		FROM audit_log
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at
	`

	rows, err := r.conn.GetDB().QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*shared.AuditEntry
	for rows.Next() {
		var e shared.AuditEntry
		var actor uuid.NullUUID
		var detail []byte

		err := rows.Scan(
			&e.ID,
			&actor,
			&e.Action,
			&e.ResourceType,
			&e.ResourceID,
			&e.Severity,
			&e.Success,
			&detail,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if actor.Valid {
			e.Actor = &actor.UUID
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit detail: %w", err)
			}
		}

		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
