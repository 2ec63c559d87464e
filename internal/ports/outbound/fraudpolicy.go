package outbound

import (
	"context"

	"paddock-auction-engine/internal/domain/fraud"
)

// Verdict is the result of evaluating one bid attempt
type Verdict struct {
	Passed bool
	Alerts []fraud.Alert
}

// FraudPolicy is a pluggable, side-effect-free evaluation of a candidate
// bid. The engine treats it as a black box and only acts on pass/fail plus
// the alerts to record.
type FraudPolicy interface {
	// Evaluate inspects the bid context and returns a verdict
	Evaluate(ctx context.Context, bc fraud.BidContext) (*Verdict, error)
}
