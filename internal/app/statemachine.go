package app

import (
	"context"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/inbound"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SettlementHook is invoked from within the auction-end pipeline to
// initialize the winner's payment. Implementations must be idempotent per
// auction.
type SettlementHook interface {
	OnAuctionEnded(ctx context.Context, auctionID, winnerID uuid.UUID, finalPrice decimal.Decimal, endedAt time.Time) error
}

// SweepRegistrar lets the state machine register auctions with the periodic
// sweep indexes. Nil-safe: the engine works without one, relying on the
// repository-scanning fallback sweeps.
type SweepRegistrar interface {
	RegisterActivation(auctionID uuid.UUID, at time.Time) error
	RegisterExpiration(auctionID uuid.UUID, at time.Time) error
}

// AuctionStateMachine owns the auction lifecycle and the anti-sniping
// extension algorithm. It is the single serialization point for all
// mutations of one auction: every operation runs inside the per-auction
// lock, and sweeps contend on the same lock as bids.
type AuctionStateMachine struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	deposits    *DepositManager
	settlement  SettlementHook
	locks       *AuctionLocks
	audit       *AuditWriter
	publisher   outbound.EventPublisher
	registrar   SweepRegistrar
	defaults    AuctionDefaults
	logger      zerolog.Logger
	now         func() time.Time

	// Auctions with a detected invariant violation are quarantined from
	// further automated processing until an operator intervenes.
	quarantineMu sync.RWMutex
	quarantined  map[uuid.UUID]string
}

// AuctionDefaults are the engine tunables applied to newly scheduled auctions
type AuctionDefaults struct {
	MinIncrementPercent decimal.Decimal
	ExtensionWindow     time.Duration
	ExtensionLength     time.Duration
	MaxExtensions       int
	AntiSnipingEnabled  bool
}

type AuctionStateMachineParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Deposits    *DepositManager
	Settlement  SettlementHook
	Locks       *AuctionLocks
	Audit       *AuditWriter
	Publisher   outbound.EventPublisher
	Defaults    AuctionDefaults
	Logger      zerolog.Logger
	Now         func() time.Time
}

// NewAuctionStateMachine creates a new auction state machine
func NewAuctionStateMachine(params AuctionStateMachineParams) *AuctionStateMachine {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AuctionStateMachine{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		deposits:    params.Deposits,
		settlement:  params.Settlement,
		locks:       params.Locks,
		audit:       params.Audit,
		publisher:   params.Publisher,
		defaults:    params.Defaults,
		logger:      params.Logger.With().Str("component", "auction_state_machine").Logger(),
		now:         now,
		quarantined: make(map[uuid.UUID]string),
	}
}

// SetRegistrar wires the sweep registrar after construction
func (sm *AuctionStateMachine) SetRegistrar(registrar SweepRegistrar) {
	sm.registrar = registrar
}

// Schedule creates a SCHEDULED auction from an approved listing
func (sm *AuctionStateMachine) Schedule(ctx context.Context, req inbound.ScheduleAuctionRequest) (*auction.Auction, error) {
	now := sm.now()

	if req.StartTime.Before(now) {
		return nil, shared.ErrInvalidStartTime
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, shared.ErrInvalidEndTime
	}
	if !req.StartingPrice.IsPositive() {
		return nil, shared.ErrInvalidStartingPrice
	}

	minIncrement := req.StartingPrice.Mul(sm.defaults.MinIncrementPercent).Div(decimal.NewFromInt(100)).Round(2)
	if !minIncrement.IsPositive() {
		minIncrement = decimal.NewFromInt(1)
	}

	a := &auction.Auction{
		ID:                 uuid.New(),
		ListingID:          req.Listing.ID,
		SellerID:           req.Listing.SellerID,
		Currency:           req.Listing.Currency,
		StartingPrice:      req.StartingPrice,
		MinIncrement:       minIncrement,
		ReservePrice:       req.Listing.ReservePrice,
		StartTime:          req.StartTime,
		OriginalEndTime:    req.EndTime,
		CurrentEndTime:     req.EndTime,
		AntiSnipingEnabled: sm.defaults.AntiSnipingEnabled,
		ExtensionWindow:    sm.defaults.ExtensionWindow,
		ExtensionLength:    sm.defaults.ExtensionLength,
		MaxExtensions:      sm.defaults.MaxExtensions,
		Status:             auction.StatusScheduled,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := sm.auctionRepo.Create(ctx, a); err != nil {
		sm.logger.Error().Err(err).Str("listing_id", req.Listing.ID.String()).Msg("Failed to create auction")
		return nil, err
	}

	sm.registerSweeps(a)

	sm.logger.Info().
		Str("auction_id", a.ID.String()).
		Str("listing_id", a.ListingID.String()).
		Time("start_time", a.StartTime).
		Time("end_time", a.CurrentEndTime).
		Str("starting_price", a.StartingPrice.String()).
		Msg("Auction scheduled")

	return a, nil
}

// Activate moves a scheduled auction to ACTIVE once its start time has
// passed. Idempotent: an already-active or terminal auction is a no-op, so
// overlapping sweep invocations are harmless.
func (sm *AuctionStateMachine) Activate(ctx context.Context, auctionID uuid.UUID) error {
	release, err := sm.locks.Acquire(ctx, auctionID)
	if err != nil {
		return err
	}
	defer release()

	if reason, ok := sm.QuarantineReason(auctionID); ok {
		sm.logger.Warn().Str("auction_id", auctionID.String()).Str("reason", reason).Msg("Skipping quarantined auction")
		return shared.ErrAuctionQuarantined
	}

	a, err := sm.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return shared.ErrAuctionNotFound
	}

	if a.Status != auction.StatusScheduled {
		return nil
	}

	now := sm.now()
	if !a.HasStarted(now) {
		return shared.ErrAuctionNotStarted
	}

	a.Status = auction.StatusActive
	a.UpdatedAt = now

	if err := sm.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	sm.audit.Record(ctx, nil, ActionAuctionActivated, "auction", auctionID, "info", true, nil)
	sm.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction activated")

	return nil
}

// ApplyBid is the single mutating entry point for bids. The whole
// read-decide-write sequence, including the anti-sniping decision, runs
// inside the per-auction lock so two simultaneous bids can never both read
// the same current bid or end time.
func (sm *AuctionStateMachine) ApplyBid(ctx context.Context, b *bid.Bid) (*shared.PlaceBidResult, error) {
	release, err := sm.locks.Acquire(ctx, b.AuctionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := sm.QuarantineReason(b.AuctionID); ok {
		return nil, shared.ErrAuctionQuarantined
	}

	a, err := sm.auctionRepo.GetByID(ctx, b.AuctionID)
	if err != nil {
		return nil, shared.ErrAuctionNotFound
	}

	now := sm.now()

	if !a.IsActive() {
		return nil, shared.ErrAuctionNotActive
	}
	if a.HasExpired(now) {
		return nil, shared.ErrAuctionClosed
	}

	if a.CurrentBid == nil {
		if b.Amount.LessThan(a.StartingPrice) {
			return nil, shared.ErrBidBelowStarting
		}
	} else if b.Amount.LessThan(a.MinimumNextBid()) {
		return nil, shared.ErrBidTooLow
	}

	if err := sm.checkWinningInvariant(ctx, a.ID); err != nil {
		return nil, err
	}

	extended := false
	if a.InExtensionWindow(now) && a.CanExtend() {
		extended = true
	}

	b.Status = bid.StatusAccepted
	b.IsWinning = true
	b.TriggeredExtension = extended
	b.CreatedAt = now

	if err := sm.bidRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	if err := sm.bidRepo.SetWinning(ctx, a.ID, b.ID); err != nil {
		return nil, err
	}

	a.AcceptBid(b.Amount, now)
	if extended {
		a.Extend(now)
		sm.logger.Info().
			Str("auction_id", a.ID.String()).
			Time("new_end_time", a.CurrentEndTime).
			Int("extension_count", a.ExtensionCount).
			Msg("Anti-sniping extension applied")
	}

	if err := sm.auctionRepo.Update(ctx, a); err != nil {
		return nil, err
	}

	if extended {
		if sm.registrar != nil {
			if err := sm.registrar.RegisterExpiration(a.ID, a.CurrentEndTime); err != nil {
				sm.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to re-register expiration after extension")
			}
		}
		sm.publish(ctx, a.ID, outbound.EventTypeAuctionExtended, map[string]any{
			"current_end_time": a.CurrentEndTime.Unix(),
			"extension_count":  a.ExtensionCount,
		})
		sm.audit.Record(ctx, &b.BidderID, ActionAuctionExtended, "auction", a.ID, "info", true, map[string]any{
			"bid_id":           b.ID.String(),
			"current_end_time": a.CurrentEndTime,
		})
	}

	return &shared.PlaceBidResult{
		Accepted:       true,
		BidID:          b.ID,
		CurrentBid:     a.CurrentBid,
		CurrentEndTime: a.CurrentEndTime,
		Extended:       extended,
	}, nil
}

// End closes an expired active auction: computes the reserve outcome,
// assigns winner and final price, releases losing deposits and initializes
// the winner's payment deadline. Re-invoking End on an already-ended
// auction re-runs only the individually idempotent side-effect steps, so a
// sweep interrupted between the transition and its side effects finishes
// the pipeline on the next pass without duplicating anything.
func (sm *AuctionStateMachine) End(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionEndResult, error) {
	release, err := sm.locks.Acquire(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, ok := sm.QuarantineReason(auctionID); ok {
		return nil, shared.ErrAuctionQuarantined
	}

	a, err := sm.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, shared.ErrAuctionNotFound
	}

	if a.Status == auction.StatusCancelled {
		return sm.endResult(a), nil
	}
	if a.Status == auction.StatusEnded {
		if err := sm.runEndSideEffects(ctx, a); err != nil {
			return nil, err
		}
		return sm.endResult(a), nil
	}
	if a.Status != auction.StatusActive {
		return nil, shared.ErrAuctionNotActive
	}

	now := sm.now()
	if !a.HasExpired(now) {
		return nil, shared.ErrAuctionStillRunning
	}

	if err := sm.checkWinningInvariant(ctx, a.ID); err != nil {
		return nil, err
	}

	winning, err := sm.bidRepo.GetWinningBid(ctx, a.ID)
	if err != nil && err != shared.ErrNoBidsFound {
		return nil, err
	}

	if winning != nil {
		reserveMet := a.ReservePrice == nil || !winning.Amount.LessThan(*a.ReservePrice)
		a.ReserveMet = reserveMet
		if reserveMet {
			a.WinnerID = &winning.BidderID
			amount := winning.Amount
			a.FinalPrice = &amount
		}
	}

	a.Status = auction.StatusEnded
	a.UpdatedAt = now

	if err := sm.auctionRepo.Update(ctx, a); err != nil {
		return nil, err
	}

	if err := sm.runEndSideEffects(ctx, a); err != nil {
		return nil, err
	}

	detail := map[string]any{"reserve_met": a.ReserveMet}
	eventData := map[string]any{"status": string(a.Status), "reserve_met": a.ReserveMet}
	if a.WinnerID != nil {
		detail["winner_id"] = a.WinnerID.String()
		detail["final_price"] = a.FinalPrice.String()
		eventData["winner_id"] = a.WinnerID.String()
		eventData["final_price"] = a.FinalPrice.String()
	}
	sm.audit.Record(ctx, nil, ActionAuctionEnded, "auction", a.ID, "info", true, detail)
	sm.publish(ctx, a.ID, outbound.EventTypeAuctionEnded, eventData)

	logger := sm.logger.Info().Str("auction_id", a.ID.String()).Bool("reserve_met", a.ReserveMet)
	if a.WinnerID != nil {
		logger = logger.Str("winner_id", a.WinnerID.String()).Str("final_price", a.FinalPrice.String())
	}
	logger.Msg("Auction ended")

	return sm.endResult(a), nil
}

// runEndSideEffects is the ordered post-end pipeline: deposit settlement,
// then payment initialization. Every step is idempotent, so the pipeline as
// a whole can be retried after partial failure.
func (sm *AuctionStateMachine) runEndSideEffects(ctx context.Context, a *auction.Auction) error {
	if _, err := sm.deposits.ReleaseNonWinning(ctx, a.ID, a.WinnerID); err != nil {
		return err
	}

	if a.WinnerID != nil && a.FinalPrice != nil && sm.settlement != nil {
		if err := sm.settlement.OnAuctionEnded(ctx, a.ID, *a.WinnerID, *a.FinalPrice, a.UpdatedAt); err != nil {
			return err
		}
	}

	return nil
}

// Cancel terminates a scheduled or active auction and releases every
// outstanding deposit. Terminal auctions are a no-op.
func (sm *AuctionStateMachine) Cancel(ctx context.Context, auctionID uuid.UUID, reason string) error {
	release, err := sm.locks.Acquire(ctx, auctionID)
	if err != nil {
		return err
	}
	defer release()

	a, err := sm.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return shared.ErrAuctionNotFound
	}

	if a.IsTerminal() {
		return nil
	}

	a.Status = auction.StatusCancelled
	a.UpdatedAt = sm.now()

	if err := sm.auctionRepo.Update(ctx, a); err != nil {
		return err
	}

	if _, err := sm.deposits.ReleaseAll(ctx, auctionID); err != nil {
		return err
	}

	sm.audit.Record(ctx, nil, ActionAuctionCancelled, "auction", auctionID, "warn", true, map[string]any{"reason": reason})
	sm.publish(ctx, auctionID, outbound.EventTypeAuctionCancelled, map[string]any{"reason": reason})
	sm.logger.Warn().Str("auction_id", auctionID.String()).Str("reason", reason).Msg("Auction cancelled")

	return nil
}

// GetAuction retrieves an auction by ID
func (sm *AuctionStateMachine) GetAuction(ctx context.Context, auctionID uuid.UUID) (*auction.Auction, error) {
	return sm.auctionRepo.GetByID(ctx, auctionID)
}

// QuarantineReason reports whether the auction is quarantined and why
func (sm *AuctionStateMachine) QuarantineReason(auctionID uuid.UUID) (string, bool) {
	sm.quarantineMu.RLock()
	defer sm.quarantineMu.RUnlock()
	reason, ok := sm.quarantined[auctionID]
	return reason, ok
}

// checkWinningInvariant verifies at most one bid carries the winning flag.
// A violation indicates a bug in the serialization boundary, not a user
// error: the auction is quarantined and the violation surfaced at critical
// severity for manual intervention.
func (sm *AuctionStateMachine) checkWinningInvariant(ctx context.Context, auctionID uuid.UUID) error {
	count, err := sm.bidRepo.CountWinning(ctx, auctionID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return nil
	}

	sm.quarantineMu.Lock()
	sm.quarantined[auctionID] = "multiple winning bids"
	sm.quarantineMu.Unlock()

	sm.logger.Error().
		Str("auction_id", auctionID.String()).
		Int("winning_bids", count).
		Msg("INVARIANT VIOLATION: multiple winning bids detected, auction quarantined")

	sm.audit.Record(ctx, nil, ActionQuarantined, "auction", auctionID, "critical", false, map[string]any{
		"winning_bids": count,
	})

	return shared.ErrInvariantViolation
}

func (sm *AuctionStateMachine) registerSweeps(a *auction.Auction) {
	if sm.registrar == nil {
		return
	}
	if err := sm.registrar.RegisterActivation(a.ID, a.StartTime); err != nil {
		sm.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to register activation sweep")
	}
	if err := sm.registrar.RegisterExpiration(a.ID, a.CurrentEndTime); err != nil {
		sm.logger.Error().Err(err).Str("auction_id", a.ID.String()).Msg("Failed to register expiration sweep")
	}
}

func (sm *AuctionStateMachine) publish(ctx context.Context, auctionID uuid.UUID, eventType outbound.EventType, data map[string]any) {
	if sm.publisher == nil {
		return
	}
	event := outbound.Event{
		Type:      eventType,
		AuctionID: auctionID,
		Data:      data,
		Timestamp: sm.now().Unix(),
	}
	if err := sm.publisher.Publish(ctx, auctionID, event); err != nil {
		sm.logger.Error().Err(err).
			Str("event_type", string(eventType)).
			Str("auction_id", auctionID.String()).
			Msg("Failed to publish event")
	}
}

func (sm *AuctionStateMachine) endResult(a *auction.Auction) *shared.AuctionEndResult {
	return &shared.AuctionEndResult{
		AuctionID:  a.ID,
		WinnerID:   a.WinnerID,
		FinalPrice: a.FinalPrice,
		ReserveMet: a.ReserveMet,
		Status:     string(a.Status),
	}
}
