package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"paddock-auction-engine/internal/adapters/fraud"
	"paddock-auction-engine/internal/adapters/memory"
	"paddock-auction-engine/internal/domain/auction"
	"paddock-auction-engine/internal/domain/shared"
	"paddock-auction-engine/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// fakeClock is a settable clock injected as the engine's now func
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testEngine wires the full engine on memory adapters with a fake clock
type testEngine struct {
	clock        *fakeClock
	auctionRepo  *memory.AuctionRepository
	bidRepo      *memory.BidRepository
	depositRepo  *memory.DepositRepository
	paymentRepo  *memory.PaymentRepository
	alertRepo    *memory.AlertRepository
	auditRepo    *memory.AuditRepository
	gateway      *memory.Gateway
	publisher    *memory.Publisher
	deposits     *DepositManager
	stateMachine *AuctionStateMachine
	admission    *BidAdmission
	settlement   *SettlementService
	payout       *SellerPayoutService
}

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	clock := newFakeClock(testStart)
	logger := zerolog.Nop()

	e := &testEngine{
		clock:       clock,
		auctionRepo: memory.NewAuctionRepository(),
		bidRepo:     memory.NewBidRepository(),
		depositRepo: memory.NewDepositRepository(),
		paymentRepo: memory.NewPaymentRepository(),
		alertRepo:   memory.NewAlertRepository(),
		auditRepo:   memory.NewAuditRepository(),
		gateway:     memory.NewGateway(),
		publisher:   memory.NewPublisher(),
	}

	audit := NewAuditWriter(AuditWriterParams{
		Repo:   e.auditRepo,
		Logger: logger,
		Now:    clock.Now,
	})

	e.deposits = NewDepositManager(DepositManagerParams{
		DepositRepo: e.depositRepo,
		AuctionRepo: e.auctionRepo,
		Gateway:     e.gateway,
		Audit:       audit,
		HoldAmount:  decimal.NewFromInt(500),
		Logger:      logger,
		Now:         clock.Now,
	})

	e.settlement = NewSettlementService(SettlementServiceParams{
		PaymentRepo: e.paymentRepo,
		AuctionRepo: e.auctionRepo,
		AlertRepo:   e.alertRepo,
		Deposits:    e.deposits,
		Gateway:     e.gateway,
		Publisher:   e.publisher,
		Audit:       audit,
		FeePercent:  decimal.NewFromInt(5),
		Deadline:    7 * 24 * time.Hour,
		Logger:      logger,
		Now:         clock.Now,
	})

	e.payout = NewSellerPayoutService(SellerPayoutServiceParams{
		PaymentRepo: e.paymentRepo,
		Gateway:     e.gateway,
		Publisher:   e.publisher,
		Audit:       audit,
		Logger:      logger,
		Now:         clock.Now,
	})
	e.settlement.SetPayout(e.payout)

	e.stateMachine = NewAuctionStateMachine(AuctionStateMachineParams{
		AuctionRepo: e.auctionRepo,
		BidRepo:     e.bidRepo,
		Deposits:    e.deposits,
		Settlement:  e.settlement,
		Locks:       NewAuctionLocks(2 * time.Second),
		Audit:       audit,
		Publisher:   e.publisher,
		Defaults: AuctionDefaults{
			MinIncrementPercent: decimal.NewFromInt(1),
			ExtensionWindow:     2 * time.Minute,
			ExtensionLength:     2 * time.Minute,
			MaxExtensions:       3,
			AntiSnipingEnabled:  true,
		},
		Logger: logger,
		Now:    clock.Now,
	})

	e.admission = NewBidAdmission(BidAdmissionParams{
		StateMachine: e.stateMachine,
		BidRepo:      e.bidRepo,
		AuctionRepo:  e.auctionRepo,
		AlertRepo:    e.alertRepo,
		Deposits:     e.deposits,
		FraudPolicy: fraud.NewHeuristicPolicy(fraud.HeuristicPolicyParams{
			Logger: logger,
		}),
		Publisher: e.publisher,
		Audit:     audit,
		Logger:    logger,
		Now:       clock.Now,
	})

	return e
}

func testListing(sellerID uuid.UUID, reserve *decimal.Decimal) shared.Listing {
	return shared.Listing{
		ID:           uuid.New(),
		SellerID:     sellerID,
		Title:        "1973 Porsche 911 Carrera RS",
		Currency:     "USD",
		ReservePrice: reserve,
		CreatedAt:    testStart,
	}
}

// scheduleActive schedules a 5-minute auction starting one minute from the
// clock, then advances to the start and activates it
func (e *testEngine) scheduleActive(t *testing.T, sellerID uuid.UUID, startingPrice decimal.Decimal, reserve *decimal.Decimal) *auction.Auction {
	t.Helper()
	ctx := context.Background()

	start := e.clock.Now().Add(time.Minute)
	a, err := e.stateMachine.Schedule(ctx, inbound.ScheduleAuctionRequest{
		Listing:       testListing(sellerID, reserve),
		StartTime:     start,
		EndTime:       start.Add(5 * time.Minute),
		StartingPrice: startingPrice,
	})
	if err != nil {
		t.Fatalf("failed to schedule auction: %s", err)
	}

	e.clock.Set(start)
	if err := e.stateMachine.Activate(ctx, a.ID); err != nil {
		t.Fatalf("failed to activate auction: %s", err)
	}

	return a
}

func (e *testEngine) placeBid(t *testing.T, auctionID, bidderID uuid.UUID, amount int64) *shared.PlaceBidResult {
	t.Helper()

	result, err := e.admission.PlaceBid(context.Background(), inbound.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
		IPAddress: "203.0.113.10",
		UserAgent: "integration-test",
	})
	if err != nil {
		t.Fatalf("place bid returned unexpected error: %s", err)
	}
	return result
}
