package gateway

import (
	"context"
	"fmt"
	"sync"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// StubGateway is a provider-shaped stand-in for local development and
// staging. It honors the idempotency contract of the real provider: repeated
// calls with the same key return the first call's reference without a second
// side effect. All operations succeed; failure paths are exercised through
// the test fake instead.
type StubGateway struct {
	mu     sync.Mutex
	refs   map[string]string // idempotencyKey -> reference
	logger zerolog.Logger
}

type StubGatewayParams struct {
	Logger zerolog.Logger
}

func NewStubGateway(params StubGatewayParams) *StubGateway {
	return &StubGateway{
		refs:   make(map[string]string),
		logger: params.Logger.With().Str("component", "stub_gateway").Logger(),
	}
}

func (g *StubGateway) AuthorizeHold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	ref := g.reference("hold", idempotencyKey)
	g.logger.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("currency", currency).
		Str("hold_ref", ref).
		Msg("Hold authorized")
	return ref, nil
}

func (g *StubGateway) ReleaseHold(ctx context.Context, holdRef, idempotencyKey string) error {
	g.reference("release", idempotencyKey)
	g.logger.Info().Str("hold_ref", holdRef).Msg("Hold released")
	return nil
}

func (g *StubGateway) CaptureHold(ctx context.Context, holdRef string, amount decimal.Decimal, idempotencyKey string) error {
	g.reference("capture", idempotencyKey)
	g.logger.Info().Str("hold_ref", holdRef).Str("amount", amount.String()).Msg("Hold captured")
	return nil
}

func (g *StubGateway) Charge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (*shared.ChargeOutcome, error) {
	ref := g.reference("charge", idempotencyKey)
	g.logger.Info().
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Str("currency", currency).
		Str("reference", ref).
		Msg("Charge succeeded")
	return &shared.ChargeOutcome{
		Status:    shared.ChargeSucceeded,
		Reference: ref,
	}, nil
}

func (g *StubGateway) Transfer(ctx context.Context, destination uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	ref := g.reference("transfer", idempotencyKey)
	g.logger.Info().
		Str("destination", destination.String()).
		Str("amount", amount.String()).
		Str("currency", currency).
		Str("transfer_ref", ref).
		Msg("Transfer completed")
	return ref, nil
}

func (g *StubGateway) reference(kind, idempotencyKey string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.refs[idempotencyKey]; ok {
		return ref
	}
	ref := fmt.Sprintf("%s_%s", kind, uuid.New().String())
	g.refs[idempotencyKey] = ref
	return ref
}
