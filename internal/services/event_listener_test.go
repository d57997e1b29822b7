package services

import (
	"context"
	"testing"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSubscriber struct {
	events []*domain.BidPlacedEvent
	errs   []error
}

func (s *scriptedSubscriber) SubscribeToBidEvents(_ context.Context, handler domain.EventHandler) error {
	for _, e := range s.events {
		s.errs = append(s.errs, handler(e))
	}
	return nil
}

func TestEventListener_RelaysInOrder(t *testing.T) {
	local := &recordingPublisher{}
	sub := &scriptedSubscriber{events: []*domain.BidPlacedEvent{
		{AuctionID: "A1", NewPrice: 1100},
		{AuctionID: "A1", NewPrice: 1200},
		{AuctionID: ""},
		{AuctionID: "A2", NewPrice: 50},
	}}

	el := NewEventListener(local, logger.NewNop())
	require.NoError(t, el.Start(context.Background(), sub))

	events := local.Events()
	require.Len(t, events, 3)
	assert.Equal(t, 1100.0, events[0].NewPrice)
	assert.Equal(t, 1200.0, events[1].NewPrice)
	assert.Equal(t, "A2", events[2].AuctionID)

	require.Len(t, sub.errs, 4)
	assert.ErrorIs(t, sub.errs[2], domain.ErrInvalidInput)
}
