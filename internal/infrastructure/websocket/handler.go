package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"pigeon-auction/internal/auth"
	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"
	"pigeon-auction/pkg/utils"

	"github.com/gorilla/websocket"
)

// BidPlacer is the part of the bid processor the realtime surface needs.
type BidPlacer interface {
	PlaceBid(ctx context.Context, auctionID string, bidder *domain.Identity, amount float64, maxBid *float64) domain.SettlementOutcome
}

type Options struct {
	AllowAnonymous bool
	SendBuffer     int
}

// Handler upgrades HTTP requests and dispatches realtime frames.
type Handler struct {
	ctx      context.Context
	hub      *Hub
	bids     BidPlacer
	resolver domain.IdentityResolver
	opts     Options
	upgrader websocket.Upgrader
	log      logger.Logger
}

// NewHandler binds connections to ctx; cancelling it closes them all.
func NewHandler(ctx context.Context, hub *Hub, bids BidPlacer, resolver domain.IdentityResolver, opts Options, log logger.Logger) *Handler {
	return &Handler{
		ctx:      ctx,
		hub:      hub,
		bids:     bids,
		resolver: resolver,
		opts:     opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var identity *domain.Identity

	credential := auth.CredentialFromRequest(r)
	switch {
	case credential != "":
		id, err := h.resolver.Resolve(r.Context(), credential)
		if err != nil {
			h.log.Info("Rejected websocket handshake", "remote_addr", r.RemoteAddr, "error", err)
			http.Error(w, "invalid credential", http.StatusUnauthorized)
			return
		}
		identity = id
	case !h.opts.AllowAnonymous:
		http.Error(w, "credential required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := newClient(utils.GenerateID("conn"), identity, conn, h.hub, h.opts.SendBuffer, h.log)
	h.hub.Register(client)

	go client.WritePump(h.ctx)
	go client.ReadPump(h.ctx, h.dispatch)
}

func (h *Handler) dispatch(ctx context.Context, c *Client, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("Panic while handling frame", "client_id", c.ID, "panic", rec)
			h.hub.NotifyError(c, BidErrorPayload{Message: "internal error"})
		}
	}()

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.hub.NotifyError(c, BidErrorPayload{Message: "invalid message format"})
		return
	}

	switch frame.Event {
	case EventJoinAuction:
		auctionID := auctionIDFromData(frame.Data)
		if err := h.hub.Subscribe(c, auctionID); err != nil {
			h.hub.NotifyError(c, BidErrorPayload{Message: err.Error(), AuctionID: auctionID})
		}

	case EventLeaveAuction:
		h.hub.Unsubscribe(c, auctionIDFromData(frame.Data))

	case EventPlaceBid:
		h.handlePlaceBid(ctx, c, frame.Data)

	default:
		h.hub.NotifyError(c, BidErrorPayload{Message: "unknown event " + string(frame.Event)})
	}
}

func (h *Handler) handlePlaceBid(ctx context.Context, c *Client, raw json.RawMessage) {
	var p PlaceBidPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.AuctionID == "" {
		h.hub.NotifyError(c, BidErrorPayload{Message: "place-bid requires auctionId and amount"})
		return
	}

	outcome := h.bids.PlaceBid(ctx, p.AuctionID, c.Identity, p.Amount, p.MaxBid)
	if !outcome.Accepted {
		h.hub.NotifyError(c, BidErrorPayload{
			Message:      outcome.Message,
			Code:         outcome.Reason,
			AuctionID:    p.AuctionID,
			CurrentPrice: outcome.CurrentPrice,
		})
		return
	}

	// room members already got the broadcast
	if c.Room() != p.AuctionID {
		h.hub.Notify(c, EventBidPlaced, &domain.BidPlacedEvent{
			AuctionID:   p.AuctionID,
			Bid:         outcome.Bid,
			NewPrice:    outcome.NewPrice,
			WasExtended: outcome.WasExtended,
			NewEndTime:  outcome.NewEndTime,
		})
	}
}
