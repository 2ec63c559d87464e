package outbound

import (
	"context"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentGateway is the boundary to the external payment provider. Every
// operation takes a client-supplied idempotency key; the provider is assumed
// to deduplicate on it, so retries with the same key are safe.
type PaymentGateway interface {
	// AuthorizeHold places a refundable pre-authorization against the
	// user's on-file payment method and returns the provider's hold
	// reference
	AuthorizeHold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error)

	// ReleaseHold releases a previously authorized hold
	ReleaseHold(ctx context.Context, holdRef, idempotencyKey string) error

	// CaptureHold converts a hold into a charge
	CaptureHold(ctx context.Context, holdRef string, amount decimal.Decimal, idempotencyKey string) error

	// Charge initiates a direct charge; the outcome may require a buyer
	// step-up challenge before it completes
	Charge(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (*shared.ChargeOutcome, error)

	// Transfer moves funds to a payout destination and returns the
	// provider's transfer reference
	Transfer(ctx context.Context, destination uuid.UUID, amount decimal.Decimal, currency, idempotencyKey string) (string, error)
}
