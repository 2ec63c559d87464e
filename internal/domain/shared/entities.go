package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Listing represents an approved listing handed to the engine to be
// scheduled as an auction. Listing review itself happens outside the engine.
type Listing struct {
	ID           uuid.UUID        `json:"id"`
	SellerID     uuid.UUID        `json:"seller_id"`
	Title        string           `json:"title"`
	Currency     string           `json:"currency"`
	ReservePrice *decimal.Decimal `json:"reserve_price,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AuditEntry is an append-only fact about a state transition. Entries are
// never mutated or deleted.
type AuditEntry struct {
	ID           uuid.UUID      `json:"id"`
	Actor        *uuid.UUID     `json:"actor,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   uuid.UUID      `json:"resource_id"`
	Severity     string         `json:"severity"`
	Success      bool           `json:"success"`
	Detail       map[string]any `json:"detail,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
