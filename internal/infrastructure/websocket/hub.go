package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
)

var ErrAlreadySubscribed = errors.New("already subscribed to another auction")

// Hub keeps one room per auction id. Delivery never blocks the publisher: a
// client whose buffer is full is disconnected instead.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{} // auctionID -> clients
	clients map[*Client]struct{}
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info("Client connected", "client_id", c.ID, "user_id", c.userID(), "total_clients", total)
}

// Subscribe puts c in the room of auctionID. A client already in another
// room must leave it first.
func (h *Hub) Subscribe(c *Client, auctionID string) error {
	if auctionID == "" {
		return fmt.Errorf("%w: auction id is required", domain.ErrInvalidInput)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return fmt.Errorf("client %s is not connected", c.ID)
	}

	switch current := c.Room(); current {
	case auctionID:
		return nil
	case "":
	default:
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, current)
	}

	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[auctionID] = room
	}
	room[c] = struct{}{}
	c.setRoom(auctionID)

	h.log.Debug("Client joined auction", "client_id", c.ID, "auction_id", auctionID, "room_size", len(room))
	return nil
}

// Unsubscribe reports whether c was in the room.
func (h *Hub) Unsubscribe(c *Client, auctionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(c, auctionID)
}

func (h *Hub) leaveLocked(c *Client, auctionID string) bool {
	if auctionID == "" || c.Room() != auctionID {
		return false
	}
	if room, ok := h.rooms[auctionID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		}
	}
	c.setRoom("")
	return true
}

// Remove forgets c entirely and closes its send buffer.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	h.leaveLocked(c, c.Room())
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.close()
	if known {
		h.log.Info("Client disconnected", "client_id", c.ID, "user_id", c.userID(), "total_clients", total)
	}
}

// PublishBidPlaced fans the event out to every member of the auction's room.
func (h *Hub) PublishBidPlaced(_ context.Context, event *domain.BidPlacedEvent) error {
	data, err := encodeFrame(EventBidPlaced, event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[event.AuctionID]))
	for c := range h.rooms[event.AuctionID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(data) {
			h.log.Warn("Dropping slow client", "client_id", c.ID, "auction_id", event.AuctionID)
			h.Remove(c)
		}
	}

	h.log.Debug("Broadcast bid", "auction_id", event.AuctionID, "clients", len(members))
	return nil
}

// NotifyError delivers a bid-error to c only.
func (h *Hub) NotifyError(c *Client, payload BidErrorPayload) {
	h.Notify(c, EventBidError, payload)
}

// Notify delivers one frame to c only.
func (h *Hub) Notify(c *Client, event EventType, data any) {
	msg, err := encodeFrame(event, data)
	if err != nil {
		h.log.Error("Failed to encode frame", "event", event, "error", err)
		return
	}
	if !c.enqueue(msg) {
		h.log.Warn("Could not deliver message to client", "client_id", c.ID, "event", event)
	}
}

func (h *Hub) RoomSize(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[auctionID])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
