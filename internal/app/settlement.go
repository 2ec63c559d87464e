package app

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/fraud"
	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PayoutCreator triggers the seller payout once a payment is confirmed
type PayoutCreator interface {
	CreateSellerPayout(ctx context.Context, auctionID uuid.UUID) error
}

// SettlementService drives the post-auction payment pipeline: the buyer-fee
// charge with its deadline, overdue detection, and the handoff to the
// seller payout.
//
// Reconciliation rule: the winner's deposit hold is never captured toward
// the buyer fee. The fee is always a separate charge keyed by a
// deterministic idempotency key, and the winner's hold is released when the
// payment is confirmed. Capture of a hold is reserved for administrative
// follow-up and never runs in this automated pipeline, so no path can
// double-charge the buyer.
type SettlementService struct {
	paymentRepo  outbound.PaymentRepository
	auctionRepo  outbound.AuctionRepository
	alertRepo    outbound.FraudAlertRepository
	deposits     *DepositManager
	gateway      outbound.PaymentGateway
	payout       PayoutCreator
	publisher    outbound.EventPublisher
	audit        *AuditWriter
	feePercent   decimal.Decimal
	deadline     time.Duration
	overdueBatch int
	logger       zerolog.Logger
	now          func() time.Time
}

type SettlementServiceParams struct {
	PaymentRepo outbound.PaymentRepository
	AuctionRepo outbound.AuctionRepository
	AlertRepo   outbound.FraudAlertRepository
	Deposits    *DepositManager
	Gateway     outbound.PaymentGateway
	Publisher   outbound.EventPublisher
	Audit       *AuditWriter
	FeePercent  decimal.Decimal
	Deadline    time.Duration

	// OverdueBatchSize caps how many payments one overdue sweep flags
	OverdueBatchSize int

	Logger zerolog.Logger
	Now    func() time.Time
}

// NewSettlementService creates a new settlement service
func NewSettlementService(params SettlementServiceParams) *SettlementService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	batch := params.OverdueBatchSize
	if batch <= 0 {
		batch = 100
	}
	return &SettlementService{
		paymentRepo:  params.PaymentRepo,
		auctionRepo:  params.AuctionRepo,
		alertRepo:    params.AlertRepo,
		deposits:     params.Deposits,
		gateway:      params.Gateway,
		publisher:    params.Publisher,
		audit:        params.Audit,
		feePercent:   params.FeePercent,
		deadline:     params.Deadline,
		overdueBatch: batch,
		logger:       params.Logger.With().Str("component", "settlement_service").Logger(),
		now:          now,
	}
}

// SetPayout wires the payout service after construction
func (s *SettlementService) SetPayout(payout PayoutCreator) {
	s.payout = payout
}

// OnAuctionEnded initializes the winner's payment: total due is the hammer
// price plus the buyer fee, with a deadline at a fixed offset from auction
// end. At-most-once per auction, guarded by the payment record's existence
// rather than caller discipline.
func (s *SettlementService) OnAuctionEnded(ctx context.Context, auctionID, winnerID uuid.UUID, finalPrice decimal.Decimal, endedAt time.Time) error {
	a, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return shared.ErrAuctionNotFound
	}

	fee := finalPrice.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)
	deadline := endedAt.Add(s.deadline)

	p := &payment.Payment{
		ID:           uuid.New(),
		AuctionID:    auctionID,
		BuyerID:      winnerID,
		SellerID:     a.SellerID,
		Currency:     a.Currency,
		HammerPrice:  finalPrice,
		BuyerFee:     fee,
		TotalDue:     finalPrice.Add(fee),
		Status:       payment.StatusUnpaid,
		Deadline:     deadline,
		PayoutStatus: payment.PayoutNone,
		CreatedAt:    s.now(),
		UpdatedAt:    s.now(),
	}

	if err := s.paymentRepo.Create(ctx, p); err != nil {
		if err == shared.ErrPaymentExists {
			s.logger.Debug().Str("auction_id", auctionID.String()).Msg("Payment record already exists, initialization is a no-op")
			return nil
		}
		return err
	}

	s.audit.Record(ctx, nil, ActionDeadlineSet, "payment", p.ID, "info", true, map[string]any{
		"auction_id": auctionID.String(),
		"total_due":  p.TotalDue.String(),
		"deadline":   deadline,
	})
	s.publish(ctx, auctionID, outbound.EventTypeDeadlineSet, map[string]any{
		"buyer_id":  winnerID.String(),
		"total_due": p.TotalDue.String(),
		"deadline":  deadline.Unix(),
	})

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("buyer_id", winnerID.String()).
		Str("hammer_price", finalPrice.String()).
		Str("buyer_fee", fee.String()).
		Str("total_due", p.TotalDue.String()).
		Time("deadline", deadline).
		Msg("Payment deadline initialized")

	return nil
}

// ChargeBuyerFee initiates the charge against the buyer's on-file payment
// method. A step-up challenge surfaces as an action_required outcome
// carrying the challenge data; the caller resumes the same attempt, which
// reuses the same idempotency key.
func (s *SettlementService) ChargeBuyerFee(ctx context.Context, auctionID, buyerID uuid.UUID) (*shared.ChargeOutcome, error) {
	p, err := s.paymentRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return nil, shared.ErrPaymentNotFound
	}

	if p.BuyerID != buyerID {
		return nil, shared.ErrPaymentNotFound
	}

	if p.IsPaid() {
		return &shared.ChargeOutcome{Status: shared.ChargeSucceeded, Reference: p.PaymentRef}, nil
	}

	outcome, err := s.gateway.Charge(ctx, buyerID, p.TotalDue, p.Currency, FeeChargeKey(auctionID))
	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Buyer fee charge failed at gateway")
		return nil, shared.ErrChargeFailed
	}

	switch outcome.Status {
	case shared.ChargeSucceeded:
		if err := s.ConfirmBuyerFeePayment(ctx, auctionID, outcome.Reference); err != nil {
			return nil, err
		}
	case shared.ChargeActionRequired:
		s.logger.Info().
			Str("auction_id", auctionID.String()).
			Str("buyer_id", buyerID.String()).
			Msg("Buyer fee charge requires step-up authentication")
	case shared.ChargeFailed:
		s.logger.Warn().
			Str("auction_id", auctionID.String()).
			Str("buyer_id", buyerID.String()).
			Str("reason", outcome.FailureReason).
			Msg("Buyer fee charge declined")
	}

	return outcome, nil
}

// ConfirmBuyerFeePayment marks the payment paid, keyed by the gateway's
// payment reference rather than call order: confirming the same reference
// twice produces exactly one paid transition and one payout creation. The
// winner's residual deposit hold is released here.
func (s *SettlementService) ConfirmBuyerFeePayment(ctx context.Context, auctionID uuid.UUID, paymentRef string) error {
	p, err := s.paymentRepo.GetByAuctionID(ctx, auctionID)
	if err != nil {
		return shared.ErrPaymentNotFound
	}

	if p.IsPaid() {
		if p.PaymentRef != paymentRef {
			s.logger.Warn().
				Str("auction_id", auctionID.String()).
				Str("payment_ref", paymentRef).
				Str("recorded_ref", p.PaymentRef).
				Msg("Confirmation for an already-paid payment with a different reference")
		}
		return nil
	}

	now := s.now()
	p.MarkPaid(paymentRef, now)

	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return err
	}

	s.audit.Record(ctx, &p.BuyerID, ActionPaymentConfirmed, "payment", p.ID, "info", true, map[string]any{
		"auction_id":  auctionID.String(),
		"payment_ref": paymentRef,
		"total_due":   p.TotalDue.String(),
	})
	s.publish(ctx, auctionID, outbound.EventTypePaymentConfirmed, map[string]any{
		"buyer_id":    p.BuyerID.String(),
		"payment_ref": paymentRef,
	})

	// The fee was charged separately, so the winner's pre-authorization is
	// no longer needed.
	if _, err := s.deposits.ReleaseAll(ctx, auctionID); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to release winner's deposit after payment")
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Str("payment_ref", paymentRef).
		Msg("Buyer fee payment confirmed")

	if s.payout != nil {
		if err := s.payout.CreateSellerPayout(ctx, auctionID); err != nil {
			// The payout records its own failure state; the confirmed
			// payment stands and the payout is retried separately.
			s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Seller payout failed after payment confirmation")
		}
	}

	return nil
}

// CheckOverduePayments flags every unpaid payment past its deadline and
// raises a high-severity alert for each. Overdue does not cancel the sale:
// it is a signal for administrative follow-up, and the auction itself is
// not touched. Idempotent: already-overdue payments are skipped.
func (s *SettlementService) CheckOverduePayments(ctx context.Context) ([]uuid.UUID, error) {
	now := s.now()

	overdue, err := s.paymentRepo.ListUnpaidPastDeadline(ctx, now, s.overdueBatch)
	if err != nil {
		return nil, err
	}

	var flagged []uuid.UUID
	for _, p := range overdue {
		if !p.MarkOverdue(now) {
			continue
		}
		if err := s.paymentRepo.Update(ctx, p); err != nil {
			s.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Failed to mark payment overdue")
			continue
		}

		alert := &fraud.Alert{
			ID:        uuid.New(),
			UserID:    p.BuyerID,
			AuctionID: &p.AuctionID,
			Type:      "payment_overdue",
			Severity:  fraud.SeverityHigh,
			Status:    fraud.AlertOpen,
			Evidence: map[string]any{
				"payment_id": p.ID.String(),
				"total_due":  p.TotalDue.String(),
				"deadline":   p.Deadline,
			},
			CreatedAt: now,
		}
		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("payment_id", p.ID.String()).Msg("Failed to raise overdue alert")
		}

		s.audit.Record(ctx, nil, ActionPaymentOverdue, "payment", p.ID, "high", true, map[string]any{
			"auction_id": p.AuctionID.String(),
			"buyer_id":   p.BuyerID.String(),
		})
		s.publish(ctx, p.AuctionID, outbound.EventTypePaymentOverdue, map[string]any{
			"buyer_id": p.BuyerID.String(),
			"deadline": p.Deadline.Unix(),
		})

		s.logger.Warn().
			Str("auction_id", p.AuctionID.String()).
			Str("buyer_id", p.BuyerID.String()).
			Time("deadline", p.Deadline).
			Msg("Payment overdue")

		flagged = append(flagged, p.AuctionID)
	}

	return flagged, nil
}

// GetPayment retrieves the settlement record for an auction
func (s *SettlementService) GetPayment(ctx context.Context, auctionID uuid.UUID) (*payment.Payment, error) {
	return s.paymentRepo.GetByAuctionID(ctx, auctionID)
}

func (s *SettlementService) publish(ctx context.Context, auctionID uuid.UUID, eventType outbound.EventType, data map[string]any) {
	if s.publisher == nil {
		return
	}
	event := outbound.Event{
		Type:      eventType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: s.now().Unix(),
	}
	if err := s.publisher.Publish(ctx, auctionID, event); err != nil {
		s.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}
