package signaling

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendQueueSize bounds how many outbound envelopes may pile up while the
	// channel is still opening. Candidates discovered before the dial
	// completes land here instead of being lost.
	sendQueueSize = 64
)

// Transport maintains the persistent signaling channel to the relay for one
// room. Inbound envelopes are delivered on Incoming() in arrival order; the
// channel is closed when the connection terminates, which is the terminal
// event for the room visit.
type Transport struct {
	serverURL string
	roomID    string
	conn      *websocket.Conn
	incoming  chan Envelope
	outgoing  chan Envelope
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTransport creates a signaling transport scoped to one room.
func NewTransport(serverURL, roomID string) *Transport {
	return &Transport{
		serverURL: serverURL,
		roomID:    roomID,
		incoming:  make(chan Envelope, 1),
		outgoing:  make(chan Envelope, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// RoomID returns the room this transport is scoped to.
func (t *Transport) RoomID() string {
	return t.roomID
}

// Connect establishes the websocket connection and announces the room by
// sending a join envelope before anything else.
func (t *Transport) Connect() error {
	u, err := url.Parse(t.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := resilientDialer().Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.conn = conn
	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The join is written before the pumps start so it always precedes any
	// envelope queued while the channel was still opening.
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteJSON(NewJoin(t.roomID)); err != nil {
		t.conn.Close()
		return fmt.Errorf("failed to announce room: %w", err)
	}

	go t.readPump()
	go t.writePump()
	return nil
}

// resilientDialer wraps the default dialer with a fallback DNS lookup so a
// broken local resolver does not keep the call from starting.
func resilientDialer() *websocket.Dialer {
	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		resolved, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		return net.Dial(network, net.JoinHostPort(resolved, port))
	}
	return &dialer
}

// readPump reads envelopes from the websocket connection. Malformed messages
// are logged and skipped; the channel stays open until a read error.
func (t *Transport) readPump() {
	defer func() {
		t.conn.Close()
		close(t.incoming)
	}()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := ParseEnvelope(data)
		if err != nil {
			slog.Warn("dropping malformed signaling message", "room", t.roomID, "err", err)
			continue
		}

		// The consumer may have stopped draining before Close; never block
		// on a dead receiver.
		select {
		case t.incoming <- env:
		case <-t.done:
			return
		}
	}
}

// writePump writes envelopes to the websocket connection and sends periodic
// pings.
func (t *Transport) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case env := <-t.outgoing:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-t.done:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			t.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send enqueues an envelope for delivery. The enqueue never blocks: envelopes
// queued before the channel opens are delivered once it does, while sends on
// a closed or saturated channel are dropped.
func (t *Transport) Send(env Envelope) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		slog.Debug("dropping send on closed signaling channel", "kind", env.Kind, "room", t.roomID)
		return
	}

	select {
	case t.outgoing <- env:
	default:
		slog.Warn("signaling send queue full, dropping envelope", "kind", env.Kind, "room", t.roomID)
	}
}

// Incoming returns the channel of inbound envelopes. It is closed when the
// connection terminates.
func (t *Transport) Incoming() <-chan Envelope {
	return t.incoming
}

// Close shuts the channel down. Safe to call more than once.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
}
