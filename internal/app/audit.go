package app

import (
	"context"
	"fmt"
	"time"

	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Audit action names recorded in the ledger
const (
	ActionBidPlaced        = "auction.bid_placed"
	ActionBidRejected      = "auction.bid_rejected"
	ActionAuctionActivated = "auction.activated"
	ActionAuctionExtended  = "auction.extended"
	ActionAuctionEnded     = "auction.ended"
	ActionAuctionCancelled = "auction.cancelled"
	ActionDepositHeld      = "deposit.held"
	ActionDepositReleased  = "deposit.released"
	ActionDepositCaptured  = "deposit.captured"
	ActionDeadlineSet      = "payment.deadline_set"
	ActionPaymentOverdue   = "payment.overdue"
	ActionPaymentConfirmed = "payment.confirmed"
	ActionPayoutCompleted  = "payout.completed"
	ActionPayoutFailed     = "payout.failed"
	ActionQuarantined      = "auction.quarantined"
)

// AuditWriter appends state transitions to the ledger. A failed append is
// logged and swallowed: the transition it describes already committed, and
// losing one ledger row must not fail the business operation.
type AuditWriter struct {
	repo   outbound.AuditRepository
	logger zerolog.Logger
	now    func() time.Time
}

type AuditWriterParams struct {
	Repo   outbound.AuditRepository
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewAuditWriter creates a new audit writer
func NewAuditWriter(params AuditWriterParams) *AuditWriter {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AuditWriter{
		repo:   params.Repo,
		logger: params.Logger.With().Str("component", "audit_writer").Logger(),
		now:    now,
	}
}

// Record appends one entry for a resource transition
func (w *AuditWriter) Record(ctx context.Context, actor *uuid.UUID, action, resourceType string, resourceID uuid.UUID, severity string, success bool, detail map[string]any) {
	entry := &shared.AuditEntry{
		ID:           uuid.New(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Severity:     severity,
		Success:      success,
		Detail:       detail,
		CreatedAt:    w.now(),
	}

	if err := w.repo.Append(ctx, entry); err != nil {
		w.logger.Error().Err(err).
			Str("action", action).
			Str("resource_id", resourceID.String()).
			Msg("Failed to append audit entry")
	}
}

// Deterministic idempotency keys handed to the payment gateway. Retrying an
// operation reuses the same key, so the provider deduplicates instead of
// double-charging or double-transferring.

// FeeChargeKey keys the winner's buyer-fee charge
func FeeChargeKey(auctionID uuid.UUID) string {
	return fmt.Sprintf("fee:%s", auctionID)
}

// PayoutKey keys the seller payout transfer
func PayoutKey(auctionID uuid.UUID) string {
	return fmt.Sprintf("payout:%s", auctionID)
}

// HoldKey keys a bidder's deposit hold authorization
func HoldKey(bidderID, auctionID uuid.UUID) string {
	return fmt.Sprintf("hold:%s:%s", bidderID, auctionID)
}

// HoldReleaseKey keys the release of a specific hold
func HoldReleaseKey(depositID uuid.UUID) string {
	return fmt.Sprintf("hold-release:%s", depositID)
}

// HoldCaptureKey keys the capture of a specific hold
func HoldCaptureKey(depositID uuid.UUID) string {
	return fmt.Sprintf("hold-capture:%s", depositID)
}
