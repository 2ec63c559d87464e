package app

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SellerPayoutService transfers net proceeds to the seller once the buyer
// payment is confirmed. The seller side carries no platform commission: the
// transfer amount is the full hammer price. Transfers are keyed by a
// per-auction idempotency key, so retries can never double-transfer.
type SellerPayoutService struct {
	paymentRepo outbound.PaymentRepository
	gateway     outbound.PaymentGateway
	publisher   outbound.EventPublisher
	audit       *AuditWriter
	logger      zerolog.Logger
	now         func() time.Time
}

type SellerPayoutServiceParams struct {
	PaymentRepo outbound.PaymentRepository
	Gateway     outbound.PaymentGateway
	Publisher   outbound.EventPublisher
	Audit       *AuditWriter
	Logger      zerolog.Logger
	Now         func() time.Time
}

// NewSellerPayoutService creates a new seller payout service
func NewSellerPayoutService(params SellerPayoutServiceParams) *SellerPayoutService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SellerPayoutService{
		paymentRepo: params.PaymentRepo,
		gateway:     params.Gateway,
		publisher:   params.Publisher,
		audit:       params.Audit,
		logger:      params.Logger.With().Str("component", "seller_payout_service").Logger(),
		now:         now,
	}
}

// CreateSellerPayout transfers the final price to the seller. Runs only
// after the payment is PAID; a completed payout is a no-op.
func (s *SellerPayoutService) CreateSellerPayout(ctx context.Context, auctionID uuid.UUID) error {
	p, err := s.paymentRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return shared.ErrPaymentNotFound
	}

	if !p.IsPaid() {
		return shared.ErrPaymentNotPaid
	}
	if p.PayoutStatus == payment.PayoutCompleted {
		s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Payout already completed, creation is a no-op")
		return nil
	}

	p.PayoutStatus = payment.PayoutPending
	p.PayoutAttempts++
	p.UpdatedAt = s.now()
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}

	transferRef, err := s.gateway.Transfer(ctx, p.SellerID, p.HammerPrice, p.Currency, PayoutKey(auctionID))
	if err != nil {
		p.PayoutStatus = payment.PayoutFailed
		p.UpdatedAt = s.now()
		if updErr := s.paymentRepo.Update(ctx, p); updErr != nil {
			s.logger.Error().Err(updErr).Str("auction_id", auctionID.String()).Msg("Failed to record payout failure")
		}

		s.audit.Record(ctx, nil, ActionPayoutFailed, "payment", p.ID, "high", false, map[string]any{
			"auction_id": auctionID.String(),
			"seller_id":  p.SellerID.String(),
			"attempts":   p.PayoutAttempts,
			"error":      err.Error(),
		})

		s.logger.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("seller_id", p.SellerID.String()).
			Int("attempts", p.PayoutAttempts).
			Msg("Seller payout transfer failed")

		return shared.ErrPayoutFailed
	}

	p.PayoutStatus = payment.PayoutCompleted
	p.PayoutRef = transferRef
	p.UpdatedAt = s.now()
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}

	s.audit.Record(ctx, nil, ActionPayoutCompleted, "payment", p.ID, "info", true, map[string]any{
		"auction_id":   auctionID.String(),
		"seller_id":    p.SellerID.String(),
		"amount":       p.HammerPrice.String(),
		"transfer_ref": transferRef,
	})

	if s.publisher != nil {
		event := outbound.Event{
			Type:      outbound.EventTypePayoutCompleted,
			AuctionID: auctionID,
			Data: map[string]any{
				"seller_id":    p.SellerID.String(),
				"amount":       p.HammerPrice.String(),
				"transfer_ref": transferRef,
			},
			Timestamp: s.now().Unix(),
		}
		if err := s.publisher.Publish(ctx, auctionID, event); err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to publish payout event")
		}
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("seller_id", p.SellerID.String()).
		Str("amount", p.HammerPrice.String()).
		Str("transfer_ref", transferRef).
		Msg("Seller payout completed")

	return nil
}

// RetrySellerPayout re-attempts a failed payout. The transfer reuses the
// same idempotency key, so the gateway deduplicates if the earlier attempt
// actually went through.
func (s *SellerPayoutService) RetrySellerPayout(ctx context.Context, auctionID uuid.UUID) error {
	p, err := s.paymentRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return shared.ErrPaymentNotFound
	}

	if p.PayoutStatus == payment.PayoutCompleted {
		return nil
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Int("previous_attempts", p.PayoutAttempts).
		Msg("Retrying seller payout")

	return s.CreateSellerPayout(ctx, auctionID)
}

// PayoutStatus reports the payout state queryable by the seller
func (s *SellerPayoutService) PayoutStatus(ctx context.Context, auctionID uuid.UUID) (payment.PayoutStatus, error) {
	p, err := s.paymentRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return "", shared.ErrPaymentNotFound
	}
	return p.PayoutStatus, nil
}
