package captions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024 // audio fragments are larger than signaling

	audioQueueSize = 32
)

// Transport is the caption channel: a second websocket to the relay, scoped
// to the same room as the signaling channel but with an independent
// lifecycle. Text frames carry inbound caption events; binary frames carry
// outbound audio fragments for server-side transcription.
type Transport struct {
	serverURL string
	roomID    string
	conn      *websocket.Conn
	incoming  chan Event
	outgoing  chan []byte
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTransport creates a caption transport scoped to one room.
func NewTransport(serverURL, roomID string) *Transport {
	return &Transport{
		serverURL: serverURL,
		roomID:    roomID,
		incoming:  make(chan Event, 16),
		outgoing:  make(chan []byte, audioQueueSize),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps. The
// room is carried in the query string so the relay can scope the channel.
func (t *Transport) Connect() error {
	u, err := url.Parse(t.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("room", t.roomID)
	u.RawQuery = q.Encode()

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

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.conn = conn
	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readPump()
	go t.writePump()

	return nil
}

// readPump delivers inbound caption events in arrival order. Binary frames
// (other participants' audio in transit to the transcriber) are ignored;
// malformed text frames are logged and skipped.
func (t *Transport) readPump() {
	defer func() {
		t.conn.Close()
		close(t.incoming)
	}()

	t.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			slog.Warn("dropping malformed caption event", "room", t.roomID, "err", err)
			continue
		}

		// The consumer may have stopped draining before Close; never block
		// on a dead receiver.
		select {
		case t.incoming <- ev:
		case <-t.done:
			return
		}
	}
}

func (t *Transport) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case frame := <-t.outgoing:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
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

// SendAudio enqueues one audio fragment for the transcription backend.
// Fire-and-forget: fragments are dropped without error when the channel is
// closed or the queue is full.
func (t *Transport) SendAudio(frag AudioFragment) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}

	frame, err := msgpack.Marshal(frag)
	if err != nil {
		slog.Warn("failed to encode audio fragment", "seq", frag.Seq, "err", err)
		return
	}

	select {
	case t.outgoing <- frame:
	default:
		slog.Debug("audio queue full, dropping fragment", "seq", frag.Seq)
	}
}

// Incoming returns the channel of inbound caption events. It is closed when
// the connection terminates.
func (t *Transport) Incoming() <-chan Event {
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
