package app

import (
	"context"
	"testing"

	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestCreateSellerPayout_RequiresPaidPayment(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)

	err := e.payout.CreateSellerPayout(ctx, a.ID)
	check.Equal(t, shared.ErrPaymentNotPaid, err, cmpopts.EquateErrors())
	check.Equal(t, 0, e.gateway.TransferCalls())

	err = e.payout.CreateSellerPayout(ctx, uuid.New())
	check.Equal(t, shared.ErrPaymentNotFound, err, cmpopts.EquateErrors())
}

func TestCreateSellerPayout_TransfersHammerPrice(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_010"))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.PayoutCompleted, p.PayoutStatus)
	check.NotEqual(t, "", p.PayoutRef)
	check.Equal(t, 1, p.PayoutAttempts)
	check.Equal(t, 1, len(e.publisher.EventsOfType(outbound.EventTypePayoutCompleted)))

	// A direct re-invocation is a no-op once completed
	assert.Nil(t, e.payout.CreateSellerPayout(ctx, a.ID))
	check.Equal(t, 1, e.gateway.TransferCalls())
}

func TestCreateSellerPayout_FailureIsRecorded(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)
	e.gateway.FailTransfers = 1

	// Confirmation succeeds even though the payout behind it fails
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_020"))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusPaid, p.Status)
	check.Equal(t, payment.PayoutFailed, p.PayoutStatus)
	check.Equal(t, 1, p.PayoutAttempts)
	check.Equal(t, 0, len(e.publisher.EventsOfType(outbound.EventTypePayoutCompleted)))

	check.Equal(t, 1, e.auditRepo.CountByAction(ActionPayoutFailed))
}

func TestRetrySellerPayout_SucceedsAfterFailure(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)
	e.gateway.FailTransfers = 1
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_030"))

	assert.Nil(t, e.payout.RetrySellerPayout(ctx, a.ID))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.PayoutCompleted, p.PayoutStatus)
	check.Equal(t, 2, p.PayoutAttempts)
	check.Equal(t, 1, e.gateway.TransferCalls())
}

func TestRetrySellerPayout_CompletedIsNoOp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_040"))

	assert.Nil(t, e.payout.RetrySellerPayout(ctx, a.ID))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, 1, p.PayoutAttempts)
	check.Equal(t, 1, e.gateway.TransferCalls())
}

func TestPayoutStatus(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)

	status, err := e.payout.PayoutStatus(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.PayoutNone, status)

	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_050"))

	status, err = e.payout.PayoutStatus(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.PayoutCompleted, status)

	_, err = e.payout.PayoutStatus(ctx, uuid.New())
	check.Equal(t, shared.ErrPaymentNotFound, err, cmpopts.EquateErrors())
}
