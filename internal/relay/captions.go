package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Caption frames can carry whole audio fragments, so the limit is higher
// than for signaling.
const maxCaptionFrameSize = 256 * 1024

// frame is one websocket message relayed verbatim: text frames carry
// caption events, binary frames carry packed audio fragments.
type frame struct {
	messageType int
	data        []byte
}

// CaptionClient is one connection on the caption endpoint. Call peers and
// the transcription worker all attach the same way, scoped by room.
type CaptionClient struct {
	ID     string
	roomID string

	hub  *CaptionHub
	conn *websocket.Conn

	send     chan frame
	sendOnce sync.Once
}

func newCaptionClient(hub *CaptionHub, conn *websocket.Conn, roomID string) *CaptionClient {
	return &CaptionClient{
		ID:     uuid.NewString(),
		roomID: roomID,
		hub:    hub,
		conn:   conn,
		send:   make(chan frame, 64),
	}
}

func (c *CaptionClient) enqueue(f frame) {
	select {
	case c.send <- f:
	default:
		slog.Warn("dropping caption frame for slow client", "client", c.ID, "room", c.roomID)
	}
}

func (c *CaptionClient) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

type captionFrame struct {
	client *CaptionClient
	frame  frame
}

// CaptionHub fans caption traffic out within each room: every frame a
// member sends is relayed to all other members. The hub does not interpret
// frames; transcription happens in whatever worker attaches to the room.
type CaptionHub struct {
	rooms map[string]map[*CaptionClient]bool

	register   chan *CaptionClient
	unregister chan *CaptionClient
	frames     chan captionFrame
	done       chan struct{}
}

func NewCaptionHub() *CaptionHub {
	return &CaptionHub{
		rooms:      make(map[string]map[*CaptionClient]bool),
		register:   make(chan *CaptionClient),
		unregister: make(chan *CaptionClient),
		frames:     make(chan captionFrame),
		done:       make(chan struct{}),
	}
}

// Run is the caption hub's single thread of control.
func (h *CaptionHub) Run() {
	for {
		select {
		case client := <-h.register:
			members, ok := h.rooms[client.roomID]
			if !ok {
				members = make(map[*CaptionClient]bool)
				h.rooms[client.roomID] = members
			}
			members[client] = true
			slog.Info("caption client joined", "client", client.ID, "room", client.roomID, "members", len(members))

		case client := <-h.unregister:
			if members, ok := h.rooms[client.roomID]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, client.roomID)
				}
			}
			client.closeSend()
			slog.Info("caption client left", "client", client.ID, "room", client.roomID)

		case cf := <-h.frames:
			for member := range h.rooms[cf.client.roomID] {
				if member != cf.client {
					member.enqueue(cf.frame)
				}
			}

		case <-h.done:
			return
		}
	}
}

// Stop terminates the Run loop.
func (h *CaptionHub) Stop() {
	close(h.done)
}

func (c *CaptionClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCaptionFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("caption read error", "client", c.ID, "err", err)
			}
			break
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.hub.frames <- captionFrame{client: c, frame: frame{messageType: messageType, data: data}}
	}
}

func (c *CaptionClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(f.messageType, f.data); err != nil {
				slog.Warn("caption write error", "client", c.ID, "err", err)
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
