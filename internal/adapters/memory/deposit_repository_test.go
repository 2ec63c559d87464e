package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"paddock-auction-engine/internal/domain/deposit"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func heldDeposit(bidderID, auctionID uuid.UUID) *deposit.Deposit {
	return &deposit.Deposit{
		ID:        uuid.New(),
		BidderID:  bidderID,
		AuctionID: auctionID,
		Amount:    decimal.NewFromInt(500),
		Currency:  "USD",
		HoldRef:   "hold-" + uuid.NewString(),
		Status:    deposit.StatusHeld,
		HeldAt:    time.Now(),
	}
}

// Concurrent CreateIfAbsent calls for the same bidder and auction must
// agree on a single deposit row, the same guarantee the partial unique
// index gives the PostgreSQL adapter.
func TestCreateIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	repo := NewDepositRepository()
	ctx := context.Background()
	bidderID, auctionID := uuid.New(), uuid.New()

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
		ids      = make(map[uuid.UUID]bool)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			got, created, err := repo.CreateIfAbsent(ctx, heldDeposit(bidderID, auctionID))
			check.Nil(t, err)
			if err != nil {
				return
			}

			mu.Lock()
			if created {
				inserted++
			}
			ids[got.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	check.Equal(t, 1, inserted)
	check.Equal(t, 1, len(ids))

	held, err := repo.ListHeldByAuction(ctx, auctionID)
	assert.Nil(t, err)
	check.Equal(t, 1, len(held))
}

func TestCreateIfAbsent_NewHoldAfterRelease(t *testing.T) {
	repo := NewDepositRepository()
	ctx := context.Background()
	bidderID, auctionID := uuid.New(), uuid.New()

	first, created, err := repo.CreateIfAbsent(ctx, heldDeposit(bidderID, auctionID))
	assert.Nil(t, err)
	assert.True(t, created)

	transitioned, err := repo.Transition(ctx, first.ID, deposit.StatusReleased, time.Now())
	assert.Nil(t, err)
	assert.True(t, transitioned)

	// Released rows do not block a fresh hold for the same pair
	second, created, err := repo.CreateIfAbsent(ctx, heldDeposit(bidderID, auctionID))
	assert.Nil(t, err)
	check.True(t, created)
	check.NotEqual(t, first.ID, second.ID)
}

func TestTransition_OnlyFromHeld(t *testing.T) {
	repo := NewDepositRepository()
	ctx := context.Background()

	d, _, err := repo.CreateIfAbsent(ctx, heldDeposit(uuid.New(), uuid.New()))
	assert.Nil(t, err)

	transitioned, err := repo.Transition(ctx, d.ID, deposit.StatusCaptured, time.Now())
	assert.Nil(t, err)
	check.True(t, transitioned)

	// A captured deposit refuses further transitions without error
	transitioned, err = repo.Transition(ctx, d.ID, deposit.StatusReleased, time.Now())
	assert.Nil(t, err)
	check.False(t, transitioned)
}
