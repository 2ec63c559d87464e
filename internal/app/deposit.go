package app

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/deposit"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DepositManager owns the refundable pre-authorization held per
// (bidder, auction) pair. Holds are authorized at the gateway before the
// record is inserted, so no lock is ever held across gateway I/O; when two
// concurrent EnsureHold calls race, the loser releases its redundant
// gateway hold and adopts the winner's record.
type DepositManager struct {
	depositRepo outbound.DepositRepository
	auctionRepo outbound.AuctionRepository
	gateway     outbound.PaymentGateway
	audit       *AuditWriter
	amount      decimal.Decimal
	logger      zerolog.Logger
	now         func() time.Time
}

type DepositManagerParams struct {
	DepositRepo outbound.DepositRepository
	AuctionRepo outbound.AuctionRepository
	Gateway     outbound.PaymentGateway
	Audit       *AuditWriter
	HoldAmount  decimal.Decimal
	Logger      zerolog.Logger
	Now         func() time.Time
}

// NewDepositManager creates a new deposit manager
func NewDepositManager(params DepositManagerParams) *DepositManager {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &DepositManager{
		depositRepo: params.DepositRepo,
		auctionRepo: params.AuctionRepo,
		gateway:     params.Gateway,
		audit:       params.Audit,
		amount:      params.HoldAmount,
		logger:      params.Logger.With().Str("component", "deposit_manager").Logger(),
		now:         now,
	}
}

// EnsureHold returns the bidder's active hold for the auction, authorizing
// a new one if none exists. Safe under concurrent duplicate calls: the
// repository insert is atomic on the (bidder, auction) pair.
func (m *DepositManager) EnsureHold(ctx context.Context, bidderID, auctionID uuid.UUID) (*deposit.Deposit, error) {
	existing, err := m.depositRepo.GetHeld(ctx, bidderID, auctionID)
	if err == nil {
		return existing, nil
	}
	if err != shared.ErrDepositNotFound {
		return nil, err
	}

	a, err := m.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, shared.ErrAuctionNotFound
	}

	// Gateway authorization happens before the insert; the key makes a
	// retried authorization for the same pair return the same hold.
	holdRef, err := m.gateway.AuthorizeHold(ctx, bidderID, m.amount, a.Currency, HoldKey(bidderID, auctionID))
	if err != nil {
		m.logger.Warn().Err(err).
			Str("bidder_id", bidderID.String()).
			Str("auction_id", auctionID.String()).
			Msg("Hold authorization declined")
		return nil, shared.ErrHoldDeclined
	}

	candidate := &deposit.Deposit{
		ID:        uuid.New(),
		BidderID:  bidderID,
		AuctionID: auctionID,
		Amount:    m.amount,
		Currency:  a.Currency,
		HoldRef:   holdRef,
		Status:    deposit.StatusHeld,
		HeldAt:    m.now(),
	}

	winner, inserted, err := m.depositRepo.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, err
	}

	if !inserted {
		// Lost a concurrent race; drop the hold we authorized and use the
		// record that got there first.
		if winner.HoldRef != holdRef {
			if relErr := m.gateway.ReleaseHold(ctx, holdRef, HoldReleaseKey(candidate.ID)); relErr != nil {
				m.logger.Error().Err(relErr).
					Str("bidder_id", bidderID.String()).
					Str("auction_id", auctionID.String()).
					Msg("Failed to release redundant gateway hold")
			}
		}
		return winner, nil
	}

	m.logger.Info().
		Str("deposit_id", candidate.ID.String()).
		Str("bidder_id", bidderID.String()).
		Str("auction_id", auctionID.String()).
		Str("amount", m.amount.String()).
		Msg("Deposit hold created")

	m.audit.Record(ctx, &bidderID, ActionDepositHeld, "deposit", candidate.ID, "info", true, map[string]any{
		"auction_id": auctionID.String(),
		"amount":     m.amount.String(),
	})

	return candidate, nil
}

// GetHeld returns the bidder's active hold for the auction, if any
func (m *DepositManager) GetHeld(ctx context.Context, bidderID, auctionID uuid.UUID) (*deposit.Deposit, error) {
	return m.depositRepo.GetHeld(ctx, bidderID, auctionID)
}

// Release releases a hold: funds returned, no charge. A second call on the
// same deposit is a no-op detected via the current status.
func (m *DepositManager) Release(ctx context.Context, depositID uuid.UUID) error {
	d, err := m.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return err
	}

	transitioned, err := m.depositRepo.Transition(ctx, depositID, deposit.StatusReleased, m.now())
	if err != nil {
		return err
	}
	if !transitioned {
		m.logger.Debug().Str("deposit_id", depositID.String()).Msg("Deposit already terminal, release is a no-op")
		return nil
	}

	if err := m.gateway.ReleaseHold(ctx, d.HoldRef, HoldReleaseKey(depositID)); err != nil {
		// The record already left HELD; the gateway release is retried by
		// the next sweep under the same idempotency key.
		m.logger.Error().Err(err).Str("deposit_id", depositID.String()).Msg("Gateway hold release failed")
	}

	m.audit.Record(ctx, nil, ActionDepositReleased, "deposit", depositID, "info", true, map[string]any{
		"auction_id": d.AuctionID.String(),
	})

	return nil
}

// Capture converts a hold into a charge-eligible capture. Used only for the
// winner's hold when the platform captures a partial amount instead of
// running a separate charge. Idempotent like Release.
func (m *DepositManager) Capture(ctx context.Context, depositID uuid.UUID, reason string) error {
	d, err := m.depositRepo.GetByID(ctx, depositID)
	if err != nil {
		return err
	}

	transitioned, err := m.depositRepo.Transition(ctx, depositID, deposit.StatusCaptured, m.now())
	if err != nil {
		return err
	}
	if !transitioned {
		m.logger.Debug().Str("deposit_id", depositID.String()).Msg("Deposit already terminal, capture is a no-op")
		return nil
	}

	if err := m.gateway.CaptureHold(ctx, d.HoldRef, d.Amount, HoldCaptureKey(depositID)); err != nil {
		m.logger.Error().Err(err).Str("deposit_id", depositID.String()).Msg("Gateway hold capture failed")
	}

	m.audit.Record(ctx, nil, ActionDepositCaptured, "deposit", depositID, "warn", true, map[string]any{
		"auction_id": d.AuctionID.String(),
		"reason":     reason,
	})

	return nil
}

// ReleaseNonWinning releases every active hold on the auction except the
// winner's. Called once from within the auction-end transition; safe to
// re-run because each release is individually idempotent.
func (m *DepositManager) ReleaseNonWinning(ctx context.Context, auctionID uuid.UUID, winnerID *uuid.UUID) (int, error) {
	held, err := m.depositRepo.ListHeldByAuction(ctx, auctionID)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, d := range held {
		if winnerID != nil && d.BidderID == *winnerID {
			continue
		}
		if err := m.Release(ctx, d.ID); err != nil {
			m.logger.Error().Err(err).
				Str("deposit_id", d.ID.String()).
				Str("auction_id", auctionID.String()).
				Msg("Failed to release losing deposit")
			continue
		}
		released++
	}

	m.logger.Info().
		Str("auction_id", auctionID.String()).
		Int("released", released).
		Msg("Released non-winning deposits")

	return released, nil
}

// ReleaseAll releases every active hold on the auction, winner included.
// Used on cancellation and after the winner's payment is confirmed.
func (m *DepositManager) ReleaseAll(ctx context.Context, auctionID uuid.UUID) (int, error) {
	return m.ReleaseNonWinning(ctx, auctionID, nil)
}
