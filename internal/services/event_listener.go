package services

import (
	"context"
	"fmt"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
)

// EventListener relays bid events received from other instances (and from
// this one, via the shared channel) to the local realtime hub.
type EventListener struct {
	local domain.EventPublisher
	log   logger.Logger
}

func NewEventListener(local domain.EventPublisher, log logger.Logger) *EventListener {
	return &EventListener{local: local, log: log}
}

// Start blocks until ctx is cancelled or the subscription fails.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToBidEvents(ctx, func(event *domain.BidPlacedEvent) error {
		return el.handleBidPlaced(ctx, event)
	})
}

func (el *EventListener) handleBidPlaced(ctx context.Context, event *domain.BidPlacedEvent) error {
	if event == nil || event.AuctionID == "" {
		return fmt.Errorf("%w: bid event without auction id", domain.ErrInvalidInput)
	}
	el.log.Debug("Relaying bid event", "auction_id", event.AuctionID, "new_price", event.NewPrice)
	return el.local.PublishBidPlaced(ctx, event)
}
