package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/inbound"
	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestSchedule_Validation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	seller := uuid.New()

	base := inbound.ScheduleAuctionRequest{
		Listing:       testListing(seller, nil),
		StartTime:     testStart.Add(time.Hour),
		EndTime:       testStart.Add(2 * time.Hour),
		StartingPrice: decimal.NewFromInt(1000),
	}

	past := base
	past.StartTime = testStart.Add(-time.Minute)
	_, err := e.stateMachine.Schedule(ctx, past)
	check.Equal(t, shared.ErrInvalidStartTime, err, cmpopts.EquateErrors())

	inverted := base
	inverted.EndTime = base.StartTime.Add(-time.Minute)
	_, err = e.stateMachine.Schedule(ctx, inverted)
	check.Equal(t, shared.ErrInvalidEndTime, err, cmpopts.EquateErrors())

	free := base
	free.StartingPrice = decimal.Zero
	_, err = e.stateMachine.Schedule(ctx, free)
	check.Equal(t, shared.ErrInvalidStartingPrice, err, cmpopts.EquateErrors())

	a, err := e.stateMachine.Schedule(ctx, base)
	assert.Nil(t, err)
	check.Equal(t, auction.StatusScheduled, a.Status)
	// 1% of the starting price
	check.True(t, a.MinIncrement.Equal(decimal.NewFromInt(10)))
	check.Equal(t, base.EndTime, a.CurrentEndTime)
	check.Equal(t, base.EndTime, a.OriginalEndTime)
}

func TestActivate_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)

	// Second activation is a no-op, not an error
	assert.Nil(t, e.stateMachine.Activate(ctx, a.ID))

	got, err := e.stateMachine.GetAuction(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, auction.StatusActive, got.Status)
}

func TestActivate_BeforeStartTime(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	start := testStart.Add(time.Hour)
	a, err := e.stateMachine.Schedule(ctx, inbound.ScheduleAuctionRequest{
		Listing:       testListing(uuid.New(), nil),
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
		StartingPrice: decimal.NewFromInt(1000),
	})
	assert.Nil(t, err)

	check.Equal(t, shared.ErrAuctionNotStarted, e.stateMachine.Activate(ctx, a.ID), cmpopts.EquateErrors())
}

// The exact anti-sniping walkthrough: a 5-minute auction with a 2-minute
// window, 2-minute extension and a budget of 3. A bid 4 minutes in lands
// inside the window and pushes the end out by exactly the extension length,
// measured from the current end time, not from the bid instant.
func TestApplyBid_AntiSnipingExtension(t *testing.T) {
	e := newTestEngine(t)
	seller := uuid.New()
	bidder := uuid.New()

	a := e.scheduleActive(t, seller, decimal.NewFromInt(1000), nil)
	originalEnd := a.CurrentEndTime

	e.clock.Advance(4 * time.Minute)
	result := e.placeBid(t, a.ID, bidder, 1100)

	assert.True(t, result.Accepted)
	check.True(t, result.Extended)
	check.Equal(t, originalEnd.Add(2*time.Minute), result.CurrentEndTime)

	got, err := e.stateMachine.GetAuction(context.Background(), a.ID)
	assert.Nil(t, err)
	check.Equal(t, 1, got.ExtensionCount)
	check.Equal(t, originalEnd, got.OriginalEndTime)
}

func TestApplyBid_EarlyBidDoesNotExtend(t *testing.T) {
	e := newTestEngine(t)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	originalEnd := a.CurrentEndTime

	// 2 minutes in: 3 minutes remain, outside the 2-minute window
	e.clock.Advance(2 * time.Minute)
	result := e.placeBid(t, a.ID, uuid.New(), 1100)

	assert.True(t, result.Accepted)
	check.False(t, result.Extended)
	check.Equal(t, originalEnd, result.CurrentEndTime)
}

func TestApplyBid_ExtensionBudgetExhausted(t *testing.T) {
	e := newTestEngine(t)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)

	// Each bid lands in the window and consumes one extension
	amount := int64(1100)
	e.clock.Advance(4 * time.Minute)
	for i := 0; i < 3; i++ {
		result := e.placeBid(t, a.ID, uuid.New(), amount)
		assert.True(t, result.Accepted)
		check.True(t, result.Extended)
		amount += 100
		e.clock.Set(result.CurrentEndTime.Add(-time.Minute))
	}

	// Budget spent: a fourth sniping bid is accepted but extends nothing
	result := e.placeBid(t, a.ID, uuid.New(), amount)
	assert.True(t, result.Accepted)
	check.False(t, result.Extended)

	got, err := e.stateMachine.GetAuction(context.Background(), a.ID)
	assert.Nil(t, err)
	check.Equal(t, 3, got.ExtensionCount)
}

func TestApplyBid_RejectsAfterCurrentEndTime(t *testing.T) {
	e := newTestEngine(t)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)

	e.clock.Advance(5 * time.Minute)
	result := e.placeBid(t, a.ID, uuid.New(), 1100)

	check.False(t, result.Accepted)
	check.Equal(t, shared.ReasonAuctionClosed, result.ReasonCode)
}

func TestEnd_WinnerAndSettlement(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	winner := uuid.New()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, uuid.New(), 1100)
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, winner, 1200)

	e.clock.Set(a.CurrentEndTime)
	result, err := e.stateMachine.End(ctx, a.ID)
	assert.Nil(t, err)

	assert.NotNil(t, result.WinnerID)
	check.Equal(t, winner, *result.WinnerID)
	check.True(t, result.FinalPrice.Equal(decimal.NewFromInt(1200)))
	check.True(t, result.ReserveMet)

	// The winner's payment record was initialized with the deadline
	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, winner, p.BuyerID)
	check.True(t, p.TotalDue.Equal(decimal.NewFromInt(1260))) // 1200 + 5%
	check.Equal(t, e.clock.Now().Add(7*24*time.Hour), p.Deadline)
}

func TestEnd_BeforeEndTime(t *testing.T) {
	e := newTestEngine(t)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)

	_, err := e.stateMachine.End(context.Background(), a.ID)
	check.Equal(t, shared.ErrAuctionStillRunning, err, cmpopts.EquateErrors())
}

func TestEnd_NoBids(t *testing.T) {
	e := newTestEngine(t)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Set(a.CurrentEndTime)

	result, err := e.stateMachine.End(context.Background(), a.ID)
	assert.Nil(t, err)
	check.Nil(t, result.WinnerID)
	check.Nil(t, result.FinalPrice)
}

func TestEnd_ReserveNotMet(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	reserve := decimal.NewFromInt(5000)

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), &reserve)
	bidder := uuid.New()
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, bidder, 1500)

	e.clock.Set(a.CurrentEndTime)
	result, err := e.stateMachine.End(ctx, a.ID)
	assert.Nil(t, err)

	// Highest bid below reserve: no winner, no payment, every hold released
	check.Nil(t, result.WinnerID)
	check.False(t, result.ReserveMet)

	_, err = e.settlement.GetPayment(ctx, a.ID)
	check.Equal(t, shared.ErrPaymentNotFound, err, cmpopts.EquateErrors())

	_, err = e.deposits.GetHeld(ctx, bidder, a.ID)
	check.Equal(t, shared.ErrDepositNotFound, err, cmpopts.EquateErrors())
}

func TestEnd_Idempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	winner := uuid.New()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, winner, 1100)

	e.clock.Set(a.CurrentEndTime)
	first, err := e.stateMachine.End(ctx, a.ID)
	assert.Nil(t, err)

	second, err := e.stateMachine.End(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, first.WinnerID, second.WinnerID)

	// Exactly one payment record, exactly one ended event
	p, err := e.settlement.GetPayment(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, winner, p.BuyerID)
	check.Equal(t, 1, len(e.publisher.EventsOfType(outbound.EventTypeAuctionEnded)))
}

func TestCancel_ReleasesDeposits(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	bidder := uuid.New()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Advance(time.Minute)
	e.placeBid(t, a.ID, bidder, 1100)

	assert.Nil(t, e.stateMachine.Cancel(ctx, a.ID, "listing withdrawn"))

	got, err := e.stateMachine.GetAuction(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, auction.StatusCancelled, got.Status)

	_, err = e.deposits.GetHeld(ctx, bidder, a.ID)
	check.Equal(t, shared.ErrDepositNotFound, err, cmpopts.EquateErrors())

	// Cancelling again is a no-op
	check.Nil(t, e.stateMachine.Cancel(ctx, a.ID, "again"))
}

func TestCancel_TerminalAfterEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Set(a.CurrentEndTime)
	_, err := e.stateMachine.End(ctx, a.ID)
	assert.Nil(t, err)

	assert.Nil(t, e.stateMachine.Cancel(ctx, a.ID, "too late"))
	got, err := e.stateMachine.GetAuction(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, auction.StatusEnded, got.Status)
}

// Many bidders race on one auction; the per-auction lock serializes them so
// exactly one bid carries the winning flag and the current bid is the
// highest accepted amount.
func TestApplyBid_ConcurrentSingleWinner(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	a := e.scheduleActive(t, uuid.New(), decimal.NewFromInt(1000), nil)
	e.clock.Advance(time.Minute)

	const bidders = 16
	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		amount := int64(1100 + 100*i)
		go func() {
			defer wg.Done()
			_, err := e.admission.PlaceBid(ctx, inbound.PlaceBidRequest{
				AuctionID: a.ID,
				BidderID:  uuid.New(),
				Amount:    decimal.NewFromInt(amount),
				IPAddress: "203.0.113.10",
				UserAgent: "race-test",
			})
			check.Nil(t, err)
		}()
	}
	wg.Wait()

	count, err := e.bidRepo.CountWinning(ctx, a.ID)
	assert.Nil(t, err)
	check.Equal(t, 1, count)

	winning, err := e.bidRepo.GetWinningBid(ctx, a.ID)
	assert.Nil(t, err)

	got, err := e.stateMachine.GetAuction(ctx, a.ID)
	assert.Nil(t, err)
	assert.NotNil(t, got.CurrentBid)
	check.True(t, winning.Amount.Equal(*got.CurrentBid))
}
