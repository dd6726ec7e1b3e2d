package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum envelope size allowed from a peer. SDP bodies dominate and
	// stay well under this.
	maxMessageSize = 64 * 1024
)

// Client wraps one signaling websocket connection. The hub only ever
// touches ID, roomID and the send queue, so tests can drive it without a
// real connection.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn

	// roomID is owned by the hub goroutine after registration.
	roomID string

	send     chan signaling.Envelope
	sendOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan signaling.Envelope, 256),
	}
}

// enqueue queues an envelope without blocking the hub. A client that cannot
// drain 256 envelopes is not worth waiting for.
func (c *Client) enqueue(env signaling.Envelope) {
	select {
	case c.send <- env:
	default:
		slog.Warn("dropping envelope for slow client", "client", c.ID, "kind", env.Kind)
	}
}

// closeSend is safe to call from multiple hub paths (refused join followed
// by disconnect).
func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

// readPump pumps envelopes from the websocket to the hub. It is the only
// reader on the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("signaling read error", "client", c.ID, "err", err)
			}
			break
		}

		env, err := signaling.ParseEnvelope(data)
		if err != nil {
			// Malformed traffic never takes the connection down.
			slog.Warn("dropping malformed envelope", "client", c.ID, "err", err)
			continue
		}

		c.hub.inbound <- inbound{client: c, env: env}
	}
}

// writePump pumps envelopes from the hub to the websocket. It is the only
// writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				slog.Warn("signaling write error", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
