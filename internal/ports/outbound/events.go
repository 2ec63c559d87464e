package outbound

import (
	"context"

	"github.com/google/uuid"
)

// EventType represents the type of domain event emitted by the engine
type EventType string

const (
	EventTypeBidPlaced        EventType = "auction.bid_placed"
	EventTypeAuctionExtended  EventType = "auction.extended"
	EventTypeAuctionEnded     EventType = "auction.ended"
	EventTypeAuctionCancelled EventType = "auction.cancelled"
	EventTypeDeadlineSet      EventType = "payment.deadline_set"
	EventTypePaymentOverdue   EventType = "payment.overdue"
	EventTypePaymentConfirmed EventType = "payment.confirmed"
	EventTypePayoutCompleted  EventType = "payout.completed"
)

// Event is a domain event handed to the notification collaborator. The
// engine never formats or sends user-facing messages itself.
type Event struct {
	Type      EventType      `json:"type"`
	AuctionID uuid.UUID      `json:"auction_id"`
	Data      map[string]any `json:"data"`
	Timestamp int64          `json:"timestamp"`
}

// EventPublisher defines the interface for emitting domain events
type EventPublisher interface {
	// Publish emits an event on the auction's channel
	Publish(ctx context.Context, auctionID uuid.UUID, event Event) error

	// Subscribe delivers events for a specific auction to eventChan until
	// Unsubscribe is called
	Subscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string, eventChan chan Event) error

	// Unsubscribe stops delivery for a subscriber on an auction
	Unsubscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string) error
}
