package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestAuctionLocks_IndependentKeysDoNotContend(t *testing.T) {
	locks := NewAuctionLocks(50 * time.Millisecond)
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, uuid.New())
	assert.Nil(t, err)
	defer releaseA()

	// A different auction acquires immediately even while the first lock
	// is held
	releaseB, err := locks.Acquire(ctx, uuid.New())
	assert.Nil(t, err)
	releaseB()
}

func TestAuctionLocks_SameKeySerializes(t *testing.T) {
	locks := NewAuctionLocks(2 * time.Second)
	ctx := context.Background()
	auctionID := uuid.New()

	var mu sync.Mutex
	var active, maxActive int

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := locks.Acquire(ctx, auctionID)
			check.Nil(t, err)
			if err != nil {
				return
			}
			defer release()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	check.Equal(t, 1, maxActive)
}

func TestAuctionLocks_TimeoutFailsClosed(t *testing.T) {
	locks := NewAuctionLocks(20 * time.Millisecond)
	ctx := context.Background()
	auctionID := uuid.New()

	release, err := locks.Acquire(ctx, auctionID)
	assert.Nil(t, err)

	_, err = locks.Acquire(ctx, auctionID)
	check.Equal(t, shared.ErrLockTimeout, err, cmpopts.EquateErrors())

	// Releasing makes the key acquirable again
	release()
	release2, err := locks.Acquire(ctx, auctionID)
	assert.Nil(t, err)
	release2()
}

func TestAuctionLocks_ContextCancellation(t *testing.T) {
	locks := NewAuctionLocks(5 * time.Second)
	auctionID := uuid.New()

	release, err := locks.Acquire(context.Background(), auctionID)
	assert.Nil(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locks.Acquire(ctx, auctionID)
	check.Equal(t, shared.ErrLockTimeout, err, cmpopts.EquateErrors())
}
