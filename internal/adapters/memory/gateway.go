package memory

import (
	"context"
	"fmt"
	"sync"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is an in-memory payment gateway that honors idempotency keys the
// way a real provider would: repeating an operation with the same key
// returns the first outcome without performing the side effect again.
type Gateway struct {
	mu sync.Mutex

	// Failure switches for tests
	DeclineHolds    bool
	FailTransfers   int // fail this many transfers before succeeding
	RequireStepUp   bool
	FailCharges     bool
	ChargeFailedMsg string

	holds     map[string]string // idempotency key -> hold ref
	released  map[string]bool   // hold ref -> released
	captured  map[string]bool   // hold ref -> captured
	charges   map[string]*shared.ChargeOutcome
	transfers map[string]string // idempotency key -> transfer ref

	authorizeCalls int
	transferCalls  int
	chargeCalls    int
	seq            int
}

// NewGateway creates a new in-memory gateway
func NewGateway() *Gateway {
	return &Gateway{
		holds:     make(map[string]string),
		released:  make(map[string]bool),
		captured:  make(map[string]bool),
		charges:   make(map[string]*shared.ChargeOutcome),
		transfers: make(map[string]string),
	}
}

func (g *Gateway) AuthorizeHold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.holds[idempotencyKey]; ok {
		return ref, nil
	}
	if g.DeclineHolds {
		return "", fmt.Errorf("card declined")
	}

	g.seq++
	g.authorizeCalls++
	ref := fmt.Sprintf("hold-%d", g.seq)
	g.holds[idempotencyKey] = ref
	return ref, nil
}

func (g *Gateway) ReleaseHold(ctx context.Context, holdRef, idempotencyKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.captured[holdRef] {
		return fmt.Errorf("hold %s already captured", holdRef)
	}
	g.released[holdRef] = true
	return nil
}

func (g *Gateway) CaptureHold(ctx context.Context, holdRef string, amount decimal.Decimal, idempotencyKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released[holdRef] {
		return fmt.Errorf("hold %s already released", holdRef)
	}
	g.captured[holdRef] = true
	return nil
}

func (g *Gateway) Charge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (*shared.ChargeOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if outcome, ok := g.charges[idempotencyKey]; ok {
		cp := *outcome
		return &cp, nil
	}

	g.chargeCalls++

	var outcome *shared.ChargeOutcome
	switch {
	case g.FailCharges:
		outcome = &shared.ChargeOutcome{Status: shared.ChargeFailed, FailureReason: g.ChargeFailedMsg}
	case g.RequireStepUp:
		// One-shot: the resumed attempt with the same key succeeds
		g.RequireStepUp = false
		return &shared.ChargeOutcome{
			Status:        shared.ChargeActionRequired,
			ChallengeData: map[string]any{"challenge_id": fmt.Sprintf("challenge-%s", idempotencyKey)},
		}, nil
	default:
		g.seq++
		outcome = &shared.ChargeOutcome{Status: shared.ChargeSucceeded, Reference: fmt.Sprintf("charge-%d", g.seq)}
	}

	g.charges[idempotencyKey] = outcome
	cp := *outcome
	return &cp, nil
}

func (g *Gateway) Transfer(ctx context.Context, destination uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.transfers[idempotencyKey]; ok {
		return ref, nil
	}

	if g.FailTransfers > 0 {
		g.FailTransfers--
		return "", fmt.Errorf("gateway timeout")
	}

	g.seq++
	g.transferCalls++
	ref := fmt.Sprintf("transfer-%d", g.seq)
	g.transfers[idempotencyKey] = ref
	return ref, nil
}

// AuthorizeCalls reports how many holds were actually authorized
func (g *Gateway) AuthorizeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authorizeCalls
}

// TransferCalls reports how many transfers actually executed
func (g *Gateway) TransferCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transferCalls
}

// ChargeCalls reports how many charges actually executed
func (g *Gateway) ChargeCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.chargeCalls
}

// HoldReleased reports whether the given hold ref was released
func (g *Gateway) HoldReleased(holdRef string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released[holdRef]
}

// HoldCaptured reports whether the given hold ref was captured
func (g *Gateway) HoldCaptured(holdRef string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captured[holdRef]
}
