package fraud

import (
	"context"

	domfraud "paddock-auction-engine/internal/domain/fraud"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/rs/zerolog"
)

// HeuristicPolicy is the default fraud gate: a side-effect-free evaluation
// of bid velocity and prior open alerts against the bidder. It is injected
// as an outbound.FraudPolicy; deployments can swap in their own.
type HeuristicPolicy struct {
	maxRecentBids   int
	maxOpenAlerts   int
	blockEmptyAgent bool
	logger          zerolog.Logger
}

type HeuristicPolicyParams struct {
	// MaxRecentBids is the bid-velocity ceiling inside the pipeline's
	// lookback window before an attempt is flagged
	MaxRecentBids int

	// MaxOpenAlerts blocks bidders already carrying this many unreviewed
	// alerts
	MaxOpenAlerts int

	// BlockEmptyUserAgent treats a missing user agent as automation
	BlockEmptyUserAgent bool

	Logger zerolog.Logger
}

// NewHeuristicPolicy creates the default fraud policy
func NewHeuristicPolicy(params HeuristicPolicyParams) *HeuristicPolicy {
	maxBids := params.MaxRecentBids
	if maxBids <= 0 {
		maxBids = 20
	}
	maxAlerts := params.MaxOpenAlerts
	if maxAlerts <= 0 {
		maxAlerts = 3
	}
	return &HeuristicPolicy{
		maxRecentBids:   maxBids,
		maxOpenAlerts:   maxAlerts,
		blockEmptyAgent: params.BlockEmptyUserAgent,
		logger:          params.Logger.With().Str("component", "fraud_policy").Logger(),
	}
}

// Evaluate inspects one bid attempt and returns pass/fail plus the alerts
// to record. It performs no writes of its own.
func (p *HeuristicPolicy) Evaluate(ctx context.Context, bc domfraud.BidContext) (*outbound.Verdict, error) {
	var alerts []domfraud.Alert

	if bc.RecentBidCount >= p.maxRecentBids {
		alerts = append(alerts, domfraud.Alert{
			Type:     "bid_velocity",
			Severity: domfraud.SeverityMedium,
			Evidence: map[string]any{
				"recent_bids": bc.RecentBidCount,
				"threshold":   p.maxRecentBids,
				"ip_address":  bc.IPAddress,
			},
		})
	}

	if bc.OpenAlertCount >= p.maxOpenAlerts {
		alerts = append(alerts, domfraud.Alert{
			Type:     "prior_alerts",
			Severity: domfraud.SeverityHigh,
			Evidence: map[string]any{
				"open_alerts": bc.OpenAlertCount,
				"threshold":   p.maxOpenAlerts,
			},
		})
	}

	if p.blockEmptyAgent && bc.UserAgent == "" {
		alerts = append(alerts, domfraud.Alert{
			Type:     "missing_user_agent",
			Severity: domfraud.SeverityLow,
			Evidence: map[string]any{"ip_address": bc.IPAddress},
		})
	}

	passed := len(alerts) == 0
	if !passed {
		p.logger.Warn().
			Str("bidder_id", bc.BidderID.String()).
			Str("auction_id", bc.AuctionID.String()).
			Int("alerts", len(alerts)).
			Msg("Bid attempt flagged by fraud policy")
	}

	return &outbound.Verdict{Passed: passed, Alerts: alerts}, nil
}
