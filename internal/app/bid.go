package app

import (
	"context"
	"time"

	"paddock-auction-engine/internal/domain/bid"
	"paddock-auction-engine/internal/domain/fraud"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/inbound"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recentBidWindow bounds the bid-velocity lookback fed to the fraud policy
const recentBidWindow = 10 * time.Minute

// BidAdmission orchestrates one bid attempt: existence and self-bid checks,
// the deposit gate, the fraud gate, then delegation to the state machine's
// ApplyBid. Preconditions short-circuit in order and every failure maps to
// a distinct, reportable reason. Gateway and fraud I/O all happen before
// the per-auction lock is taken.
type BidAdmission struct {
	stateMachine *AuctionStateMachine
	bidRepo      outbound.BidRepository
	auctionRepo  outbound.AuctionRepository
	alertRepo    outbound.FraudAlertRepository
	deposits     *DepositManager
	fraudPolicy  outbound.FraudPolicy
	publisher    outbound.EventPublisher
	audit        *AuditWriter
	logger       zerolog.Logger
	now          func() time.Time
}

type BidAdmissionParams struct {
	StateMachine *AuctionStateMachine
	BidRepo      outbound.BidRepository
	AuctionRepo  outbound.AuctionRepository
	AlertRepo    outbound.FraudAlertRepository
	Deposits     *DepositManager
	FraudPolicy  outbound.FraudPolicy
	Publisher    outbound.EventPublisher
	Audit        *AuditWriter
	Logger       zerolog.Logger
	Now          func() time.Time
}

// NewBidAdmission creates a new bid admission pipeline
func NewBidAdmission(params BidAdmissionParams) *BidAdmission {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &BidAdmission{
		stateMachine: params.StateMachine,
		bidRepo:      params.BidRepo,
		auctionRepo:  params.AuctionRepo,
		alertRepo:    params.AlertRepo,
		deposits:     params.Deposits,
		fraudPolicy:  params.FraudPolicy,
		publisher:    params.Publisher,
		audit:        params.Audit,
		logger:       params.Logger.With().Str("component", "bid_admission").Logger(),
		now:          now,
	}
}

// PlaceBid runs the full admission pipeline for one bid attempt. Rejections
// are expected outcomes: they return a result with Accepted=false and a
// reason code, with a nil error. A non-nil error means a transient or fatal
// failure, not a business rejection.
func (p *BidAdmission) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*shared.PlaceBidResult, error) {
	p.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("amount", req.Amount.String()).
		Msg("Attempting to place bid")

	a, err := p.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return p.reject(ctx, req, nil, shared.ErrAuctionNotFound), nil
	}

	now := p.now()

	// 1. Auction must be active and not past its current end time. The
	// state machine re-validates under the lock; this check exists to
	// reject obviously dead attempts before any gateway I/O.
	if !a.IsActive() {
		return p.reject(ctx, req, nil, shared.ErrAuctionNotActive), nil
	}
	if a.HasExpired(now) {
		return p.reject(ctx, req, nil, shared.ErrAuctionClosed), nil
	}

	// 2. Sellers cannot bid on their own auction
	if req.BidderID == a.SellerID {
		p.logger.Warn().
			Str("auction_id", req.AuctionID.String()).
			Str("bidder_id", req.BidderID.String()).
			Msg("Self-bid rejected")
		return p.reject(ctx, req, nil, shared.ErrSelfBid), nil
	}

	// 3. The bidder needs an active deposit hold, created on demand
	dep, err := p.deposits.EnsureHold(ctx, req.BidderID, req.AuctionID)
	if err != nil {
		if err == shared.ErrHoldDeclined || err == shared.ErrAuctionNotFound {
			return p.reject(ctx, req, nil, shared.ErrBiddingNotEnabled), nil
		}
		return nil, err
	}

	// 4. Amount must meet the minimum next bid
	if a.CurrentBid == nil {
		if req.Amount.LessThan(a.StartingPrice) {
			return p.reject(ctx, req, &dep.ID, shared.ErrBidBelowStarting), nil
		}
	} else if req.Amount.LessThan(a.MinimumNextBid()) {
		return p.reject(ctx, req, &dep.ID, shared.ErrBidTooLow), nil
	}

	// 5. Fraud gate: side-effect-free evaluation; a failure rejects the
	// bid, but shares the same response shape as any other rejection.
	// Alerts are recorded either way, so a policy can flag a passing bid
	// for later review.
	verdict, err := p.evaluateFraud(ctx, req, now)
	if err != nil {
		return nil, err
	}
	if !verdict.Passed {
		rejected := p.reject(ctx, req, &dep.ID, shared.ErrFraudCheckFailed)
		p.recordAlerts(ctx, verdict.Alerts, req, rejected.BidID)
		return rejected, nil
	}

	b := &bid.Bid{
		ID:        uuid.New(),
		AuctionID: req.AuctionID,
		BidderID:  req.BidderID,
		Amount:    req.Amount,
		Currency:  a.Currency,
		DepositID: &dep.ID,
		Provenance: bid.Provenance{
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		},
	}

	result, err := p.stateMachine.ApplyBid(ctx, b)
	if err != nil {
		if shared.IsRejection(err) {
			rejected := p.reject(ctx, req, &dep.ID, err)
			p.recordAlerts(ctx, verdict.Alerts, req, rejected.BidID)
			return rejected, nil
		}
		p.logger.Error().Err(err).Str("bid_id", b.ID.String()).Msg("Failed to apply bid")
		return nil, err
	}

	p.recordAlerts(ctx, verdict.Alerts, req, b.ID)

	p.audit.Record(ctx, &req.BidderID, ActionBidPlaced, "auction", req.AuctionID, "info", true, map[string]any{
		"bid_id":   b.ID.String(),
		"amount":   b.Amount.String(),
		"extended": result.Extended,
	})

	p.publishBidPlaced(ctx, req.AuctionID, b, result)

	p.logger.Info().
		Str("bid_id", b.ID.String()).
		Str("auction_id", req.AuctionID.String()).
		Str("amount", b.Amount.String()).
		Bool("extended", result.Extended).
		Msg("Bid placed successfully")

	return result, nil
}

// GetBids retrieves bids for an auction
func (p *BidAdmission) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return p.bidRepo.GetByAuctionID(ctx, auctionID)
}

// GetWinningBid retrieves the current winning bid for an auction
func (p *BidAdmission) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*bid.Bid, error) {
	return p.bidRepo.GetWinningBid(ctx, auctionID)
}

// reject records the failed attempt as an immutable rejected bid and maps
// the sentinel to its reason code
func (p *BidAdmission) reject(ctx context.Context, req inbound.PlaceBidRequest, depositID *uuid.UUID, cause error) *shared.PlaceBidResult {
	reason := shared.ReasonFor(cause)

	rejected := &bid.Bid{
		ID:           uuid.New(),
		AuctionID:    req.AuctionID,
		BidderID:     req.BidderID,
		Amount:       req.Amount,
		Status:       bid.StatusRejected,
		RejectReason: reason,
		DepositID:    depositID,
		Provenance: bid.Provenance{
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		},
		CreatedAt: p.now(),
	}

	if err := p.bidRepo.Create(ctx, rejected); err != nil {
		p.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to record rejected bid")
	}

	p.audit.Record(ctx, &req.BidderID, ActionBidRejected, "auction", req.AuctionID, "info", false, map[string]any{
		"bid_id": rejected.ID.String(),
		"amount": req.Amount.String(),
		"reason": reason,
	})

	p.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("reason", reason).
		Msg("Bid rejected")

	return &shared.PlaceBidResult{
		Accepted:   false,
		ReasonCode: reason,
		BidID:      rejected.ID,
	}
}

func (p *BidAdmission) evaluateFraud(ctx context.Context, req inbound.PlaceBidRequest, now time.Time) (*outbound.Verdict, error) {
	recent, err := p.bidRepo.CountByBidderSince(ctx, req.BidderID, now.Add(-recentBidWindow))
	if err != nil {
		return nil, err
	}
	openAlerts, err := p.alertRepo.CountOpenByUser(ctx, req.BidderID)
	if err != nil {
		return nil, err
	}

	return p.fraudPolicy.Evaluate(ctx, fraud.BidContext{
		BidderID:       req.BidderID,
		AuctionID:      req.AuctionID,
		Amount:         req.Amount,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		RecentBidCount: recent,
		OpenAlertCount: openAlerts,
		At:             now,
	})
}

func (p *BidAdmission) recordAlerts(ctx context.Context, alerts []fraud.Alert, req inbound.PlaceBidRequest, bidID uuid.UUID) {
	for i := range alerts {
		alert := alerts[i]
		if alert.ID == uuid.Nil {
			alert.ID = uuid.New()
		}
		alert.UserID = req.BidderID
		alert.AuctionID = &req.AuctionID
		alert.BidID = &bidID
		alert.Status = fraud.AlertOpen
		alert.CreatedAt = p.now()

		if err := p.alertRepo.Create(ctx, &alert); err != nil {
			p.logger.Error().Err(err).
				Str("bidder_id", req.BidderID.String()).
				Str("alert_type", alert.Type).
				Msg("Failed to record fraud alert")
		}
	}
}

func (p *BidAdmission) publishBidPlaced(ctx context.Context, auctionID uuid.UUID, b *bid.Bid, result *shared.PlaceBidResult) {
	if p.publisher == nil {
		return
	}
	event := outbound.Event{
		Type:      outbound.EventTypeBidPlaced,
		AuctionID: auctionID,
		Data: map[string]any{
			"bid_id":           b.ID.String(),
			"bidder_id":        b.BidderID.String(),
			"amount":           b.Amount.String(),
			"current_end_time": result.CurrentEndTime.Unix(),
			"extended":         result.Extended,
		},
		Timestamp: b.CreatedAt.Unix(),
	}
	if err := p.publisher.Publish(ctx, auctionID, event); err != nil {
		p.logger.Error().Err(err).Str("bid_id", b.ID.String()).Msg("Failed to broadcast bid event")
	}
}
