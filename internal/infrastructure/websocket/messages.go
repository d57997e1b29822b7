package websocket

import (
	"encoding/json"

	"pigeon-auction/internal/domain"
)

type EventType string

const (
	EventJoinAuction  EventType = "join-auction"
	EventLeaveAuction EventType = "leave-auction"
	EventPlaceBid     EventType = "place-bid"
	EventBidPlaced    EventType = "bid-placed"
	EventBidError     EventType = "bid-error"
)

// Frame is the envelope of every message in both directions.
type Frame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

type PlaceBidPayload struct {
	AuctionID string   `json:"auctionId"`
	Amount    float64  `json:"amount"`
	MaxBid    *float64 `json:"maxBid,omitempty"`
}

type BidErrorPayload struct {
	Message      string        `json:"message"`
	Code         domain.Reason `json:"code,omitempty"`
	AuctionID    string        `json:"auctionId,omitempty"`
	CurrentPrice *float64      `json:"currentPrice,omitempty"`
}

func encodeFrame(event EventType, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

// auctionIDFromData accepts either a bare JSON string or {"auctionId": "..."}.
func auctionIDFromData(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		AuctionID string `json:"auctionId"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.AuctionID
	}
	return ""
}
