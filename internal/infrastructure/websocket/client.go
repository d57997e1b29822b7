package websocket

import (
	"context"
	"sync"
	"time"

	"pigeon-auction/internal/domain"
	"pigeon-auction/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	DefaultSendBuffer = 64
)

// Client is one realtime connection. Identity is nil for anonymous
// spectators.
type Client struct {
	ID       string
	Identity *domain.Identity

	conn *websocket.Conn
	hub  *Hub
	log  logger.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	room   string
}

func newClient(id string, identity *domain.Identity, conn *websocket.Conn, hub *Hub, buffer int, log logger.Logger) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
		hub:      hub,
		log:      log,
		send:     make(chan []byte, buffer),
	}
}

// Room returns the auction the client is subscribed to, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

// enqueue never blocks. It reports false when the buffer is full or the
// client is already closed.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) userID() string {
	if c.Identity == nil {
		return ""
	}
	return c.Identity.UserID
}

// ReadPump reads frames until the peer goes away and hands each one to
// dispatch. It removes the client from the hub on exit.
func (c *Client) ReadPump(ctx context.Context, dispatch func(ctx context.Context, c *Client, data []byte)) {
	defer func() {
		c.hub.Remove(c)
		c.conn.Close()
		c.log.Debug("ReadPump stopped", "client_id", c.ID, "user_id", c.userID())
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read error", "client_id", c.ID, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		dispatch(ctx, c, message)
	}
}

// WritePump is the only writer on the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("Failed to write message", "client_id", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
