package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"paddock-auction-engine/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroadcaster implements the event publisher interface using Redis
// pub/sub. Downstream consumers (notification workers, activity feeds) attach
// per auction and receive the engine's domain events as JSON.
type RedisBroadcaster struct {
	client        *redis.Client
	subscribers   map[string]chan outbound.Event // subscriberID -> local channel
	pubsubs       map[string]*redis.PubSub       // subscriberID -> pubsub instance
	subscriptions map[string]map[string]bool     // subscriberID -> auctionID -> subscribed
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	logger        zerolog.Logger
}

type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:        params.RedisClient,
		subscribers:   make(map[string]chan outbound.Event),
		pubsubs:       make(map[string]*redis.PubSub),
		subscriptions: make(map[string]map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
		logger:        params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

func auctionChannel(auctionID uuid.UUID) string {
	return fmt.Sprintf("auction:%s", auctionID.String())
}

// Publish emits an event on the auction's channel via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, auctionChannel(auctionID), eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event")

	return nil
}

// Subscribe delivers the auction's events to eventChan until Unsubscribe
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subscriptions[subscriberID] != nil && r.subscriptions[subscriberID][auctionID.String()] {
		return nil
	}

	if r.subscribers[subscriberID] == nil {
		r.subscribers[subscriberID] = eventChan
	}
	if r.subscriptions[subscriberID] == nil {
		r.subscriptions[subscriberID] = make(map[string]bool)
	}
	r.subscriptions[subscriberID][auctionID.String()] = true

	pubsub, exists := r.pubsubs[subscriberID]
	if !exists {
		pubsub = r.client.Subscribe(ctx)
		r.pubsubs[subscriberID] = pubsub
		go r.forwardMessages(pubsub, subscriberID, eventChan)
	}

	if err := pubsub.Subscribe(ctx, auctionChannel(auctionID)); err != nil {
		r.logger.Error().Err(err).
			Str("subscriber_id", subscriberID).
			Str("auction_id", auctionID.String()).
			Msg("Failed to subscribe to Redis channel")
		return err
	}

	r.logger.Info().
		Str("subscriber_id", subscriberID).
		Str("auction_id", auctionID.String()).
		Msg("Subscriber attached to auction")
	return nil
}

// Unsubscribe stops delivery for a subscriber on an auction
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, subscriberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	auctions, exists := r.subscriptions[subscriberID]
	if !exists {
		return nil
	}

	delete(auctions, auctionID.String())

	if len(auctions) == 0 {
		delete(r.subscriptions, subscriberID)

		if eventChan, ok := r.subscribers[subscriberID]; ok {
			close(eventChan)
			delete(r.subscribers, subscriberID)
		}

		if pubsub, ok := r.pubsubs[subscriberID]; ok {
			if err := pubsub.Close(); err != nil {
				r.logger.Error().Err(err).Str("subscriber_id", subscriberID).Msg("Error closing Redis pubsub")
			}
			delete(r.pubsubs, subscriberID)
		}
	} else if pubsub, ok := r.pubsubs[subscriberID]; ok {
		if err := pubsub.Unsubscribe(ctx, auctionChannel(auctionID)); err != nil {
			r.logger.Error().Err(err).
				Str("subscriber_id", subscriberID).
				Str("auction_id", auctionID.String()).
				Msg("Error unsubscribing from Redis channel")
		}
	}

	r.logger.Info().
		Str("subscriber_id", subscriberID).
		Str("auction_id", auctionID.String()).
		Msg("Subscriber detached from auction")
	return nil
}

// forwardMessages relays Redis pub/sub messages onto the subscriber's local
// channel. A slow subscriber drops events rather than blocking the relay.
func (r *RedisBroadcaster) forwardMessages(pubsub *redis.PubSub, subscriberID string, localChan chan outbound.Event) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("subscriber_id", subscriberID).Msg("Event relay panic")
		}
	}()

	ch := pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Info().Str("subscriber_id", subscriberID).Msg("Redis channel closed")
				return
			}

			var event outbound.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.Error().Err(err).Str("subscriber_id", subscriberID).Msg("Failed to unmarshal event")
				continue
			}

			select {
			case localChan <- event:
			default:
				r.logger.Warn().Str("subscriber_id", subscriberID).Msg("Subscriber channel full, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for subscriberID, eventChan := range r.subscribers {
		close(eventChan)
		delete(r.subscribers, subscriberID)
	}

	for subscriberID, pubsub := range r.pubsubs {
		if err := pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("subscriber_id", subscriberID).Msg("Error closing Redis pubsub")
		}
		delete(r.pubsubs, subscriberID)
	}

	return nil
}
