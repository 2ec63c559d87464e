package app

import (
	"context"
	"testing"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/payment"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// endWithWinner runs a full auction to the ended state and returns it along
// with the winner
func endWithWinner(t *testing.T, e *testEngine, hammer int64) (*auction.Auction, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	winner := uuid.New()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, winner, hammer)

	e.clock.Set(a.CurrentEndTime)
	if _, err := e.stateMachine.End(ctx, a.ID); err != nil {
		t.Fatalf("failed to end auction: %s", err)
	}
	return a, winner
}

func TestOnAuctionEnded_FeeAndDeadline(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)

	check.Equal(t, winner, p.BuyerID)
	check.True(t, p.HammerPrice.Equal(decimal.NewFromInt(20000)))
	check.True(t, p.BuyerFee.Equal(decimal.NewFromInt(1000))) // 5%
	check.True(t, p.TotalDue.Equal(decimal.NewFromInt(21000)))
	check.Equal(t, payment.StatusUnpaid, p.Status)
	check.Equal(t, e.clock.Now().Add(7*24*time.Hour), p.Deadline)

	check.Equal(t, 1, len(e.publisher.EventsOfType(outbound.EventTypeDeadlineSet)))
}

func TestChargeBuyerFee_SucceedsAndConfirms(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)

	outcome, err := e.settlement.ChargeBuyerFee(ctx, a.ID, winner)
	assert.Nil(t, err)
	check.Equal(t, shared.ChargeSucceeded, outcome.Status)

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusPaid, p.Status)
	check.Equal(t, outcome.Reference, p.PaymentRef)

	// Charging again returns the recorded reference without a second charge
	again, err := e.settlement.ChargeBuyerFee(ctx, a.ID, winner)
	assert.Nil(t, err)
	check.Equal(t, shared.ChargeSucceeded, again.Status)
	check.Equal(t, outcome.Reference, again.Reference)
	check.Equal(t, 1, e.gateway.ChargeCalls())
}

func TestChargeBuyerFee_WrongBuyer(t *testing.T) {
	e := newTestEngine(t)

	a, _ := endWithWinner(t, e, 20000)

	_, err := e.settlement.ChargeBuyerFee(context.Background(), a.ID, uuid.New())
	check.Equal(t, shared.ErrPaymentNotFound, err, cmpopts.EquateErrors())
}

func TestChargeBuyerFee_ActionRequiredResume(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)
	e.gateway.RequireStepUp = true

	outcome, err := e.settlement.ChargeBuyerFee(ctx, a.ID, winner)
	assert.Nil(t, err)
	check.Equal(t, shared.ChargeActionRequired, outcome.Status)
	check.NotNil(t, outcome.ChallengeData)

	// Payment stays unpaid until the challenge is completed
	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusUnpaid, p.Status)

	// Resuming the attempt reuses the same idempotency key and succeeds
	resumed, err := e.settlement.ChargeBuyerFee(ctx, a.ID, winner)
	assert.Nil(t, err)
	check.Equal(t, shared.ChargeSucceeded, resumed.Status)

	p, err = e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusPaid, p.Status)
}

func TestChargeBuyerFee_Declined(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)
	e.gateway.FailCharges = true
	e.gateway.ChargeFailedMsg = "insufficient funds"

	outcome, err := e.settlement.ChargeBuyerFee(ctx, a.ID, winner)
	assert.Nil(t, err)
	check.Equal(t, shared.ChargeFailed, outcome.Status)
	check.Equal(t, "insufficient funds", outcome.FailureReason)

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusUnpaid, p.Status)
}

// Confirming the same gateway reference twice produces exactly one paid
// transition, one confirmed event and one payout transfer.
func TestConfirmBuyerFeePayment_IdempotentByReference(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)

	// The winner's hold is still active after the auction ends
	winnerHold, err := e.deposits.GetHeld(ctx, winner, a.ID)
	assert.Nil(t, err)

	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_001"))
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_001"))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusPaid, p.Status)
	check.Equal(t, "psp_ref_001", p.PaymentRef)
	check.Equal(t, payment.PayoutCompleted, p.PayoutStatus)

	check.Equal(t, 1, len(e.publisher.EventsOfType(outbound.EventTypePaymentConfirmed)))
	check.Equal(t, 1, e.gateway.TransferCalls())

	// Confirmation released the winner's residual hold
	check.True(t, e.gateway.HoldReleased(winnerHold.HoldRef))
	_, err = e.deposits.GetHeld(ctx, winner, a.ID)
	check.Equal(t, shared.ErrDepositNotFound, err, cmpopts.EquateErrors())
}

func TestConfirmBuyerFeePayment_AfterOverdue(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, _ := endWithWinner(t, e, 20000)

	e.clock.Advance(8 * 24 * time.Hour)
	flagged, err := e.settlement.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, []uuid.UUID{a.ID}, flagged)

	// Overdue is not terminal: a late confirmation still settles
	assert.Nil(t, e.settlement.ConfirmBuyerFeePayment(ctx, a.ID, "psp_ref_late"))

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusPaid, p.Status)
}

func TestCheckOverduePayments_FlagsWithoutCancelling(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a, winner := endWithWinner(t, e, 20000)

	// Before the deadline nothing is flagged
	flagged, err := e.settlement.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, 0, len(flagged))

	e.clock.Advance(8 * 24 * time.Hour)
	flagged, err = e.settlement.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, []uuid.UUID{a.ID}, flagged)

	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, payment.StatusOverdue, p.Status)

	// The auction record itself is untouched and a high-severity alert
	// was raised against the buyer
	got, err := e.stateMachine.GetAuction(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, auction.StatusEnded, got.Status)

	alerts := e.alertRepo.ListByUser(winner)
	assert.Equal(t, 1, len(alerts))
	check.Equal(t, "payment_overdue", alerts[0].Type)

	// The sweep is idempotent: a second pass flags nothing new
	flagged, err = e.settlement.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, 0, len(flagged))
	check.Equal(t, 1, len(e.publisher.EventsOfType(outbound.EventTypePaymentOverdue)))
}

// One sweep flags at most the configured batch; later sweeps drain the rest.
func TestCheckOverduePayments_BatchSize(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	endWithWinner(t, e, 20000)
	endWithWinner(t, e, 15000)

	limited := NewSettlementService(SettlementServiceParams{
		PaymentRepo: e.paymentRepo,
		AuctionRepo: e.auctionRepo,
		AlertRepo:   e.alertRepo,
		Deposits:    e.deposits,
		Gateway:     e.gateway,
		Publisher:   e.publisher,
		Audit: NewAuditWriter(AuditWriterParams{
			Repo:   e.auditRepo,
			Logger: zerolog.Nop(),
			Now:    e.clock.Now,
		}),
		FeePercent:       decimal.NewFromInt(5),
		Deadline:         7 * 24 * time.Hour,
		OverdueBatchSize: 1,
		Logger:           zerolog.Nop(),
		Now:              e.clock.Now,
	})

	e.clock.Advance(9 * 24 * time.Hour)

	flagged, err := limited.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, 1, len(flagged))

	flagged, err = limited.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, 1, len(flagged))

	flagged, err = limited.CheckOverduePayments(ctx)
	assert.Nil(t, err)
	check.Equal(t, 0, len(flagged))
}
