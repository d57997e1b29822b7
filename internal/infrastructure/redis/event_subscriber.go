package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// SubscribeToBidEvents delivers events to handler one at a time, in the order
// Redis delivered them. It returns when ctx is done.
func (r *RedisEventSubscriber) SubscribeToBidEvents(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed before reporting ready
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", EventsChannel, err)
	}

	ch := pubsub.Channel()

	r.log.Info("Subscribed to auction events", "channel", EventsChannel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := parseEventData(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(event); err != nil {
				r.log.Error("Failed to handle event", "auction_id", event.AuctionID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseEventData(payload string) (*domain.BidPlacedEvent, error) {
	var event domain.BidPlacedEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("invalid event payload: %w", err)
	}
	if event.AuctionID == "" {
		return nil, fmt.Errorf("invalid event payload: missing auction id")
	}
	return &event, nil
}
