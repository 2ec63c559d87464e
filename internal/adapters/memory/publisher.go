package memory

import (
	"context"
	"sync"

	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
)

// Publisher is an in-memory event publisher that records every emitted
// event and fans out to local subscribers
type Publisher struct {
	mu          sync.Mutex
	events      []outbound.Event
	subscribers map[uuid.UUID]map[string]chan outbound.Event
}

// NewPublisher creates a new in-memory publisher
func NewPublisher() *Publisher {
	return &Publisher{subscribers: make(map[uuid.UUID]map[string]chan outbound.Event)}
}

func (p *Publisher) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	for _, ch := range p.subscribers[auctionID] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (p *Publisher) Subscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string, eventChan chan outbound.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribers[auctionID] == nil {
		p.subscribers[auctionID] = make(map[string]chan outbound.Event)
	}
	p.subscribers[auctionID][subscriberID] = eventChan
	return nil
}

func (p *Publisher) Unsubscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.subscribers[auctionID], subscriberID)
	return nil
}

// Events returns a copy of everything published so far (test helper)
func (p *Publisher) Events() []outbound.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]outbound.Event, len(p.events))
	copy(out, p.events)
	return out
}

// EventsOfType filters published events by type (test helper)
func (p *Publisher) EventsOfType(t outbound.EventType) []outbound.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []outbound.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
