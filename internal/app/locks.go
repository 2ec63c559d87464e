package app

import (
	"context"
	"sync"
	"time"

	"paddock-auction-engine/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionLocks is a keyed mutual-exclusion arena: one lock per auction id,
// so two bids on different auctions never contend while two operations on
// the same auction are serialized. Entries are refcounted and removed when
// the last holder releases, keeping the arena bounded by the number of
// auctions under concurrent mutation.
type AuctionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
	timeout time.Duration
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// NewAuctionLocks creates the arena. timeout bounds how long Acquire waits
// before failing closed.
func NewAuctionLocks(timeout time.Duration) *AuctionLocks {
	return &AuctionLocks{
		entries: make(map[uuid.UUID]*lockEntry),
		timeout: timeout,
	}
}

// Acquire blocks until the auction's lock is held, the configured timeout
// elapses, or ctx is cancelled. On success the returned release function
// must be called exactly once. A timeout returns shared.ErrLockTimeout so
// the caller rejects the operation without partial state.
func (l *AuctionLocks) Acquire(ctx context.Context, auctionID uuid.UUID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[auctionID]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[auctionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.unref(auctionID, entry)
		}, nil
	case <-timer.C:
		l.unref(auctionID, entry)
		return nil, shared.ErrLockTimeout
	case <-ctx.Done():
		l.unref(auctionID, entry)
		return nil, shared.ErrLockTimeout
	}
}

func (l *AuctionLocks) unref(auctionID uuid.UUID, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, auctionID)
	}
	l.mu.Unlock()
}
