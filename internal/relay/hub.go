package relay

import (
	"log/slog"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
)

// room holds the two occupants of one call. Occupancy order matters: the
// first occupant is the one that receives peer-joined and opens negotiation.
// Once both slots have filled the room is sealed: a peer leaving does not
// reopen it, because the survivor has already negotiated and cannot take a
// second peer-joined. The room ID becomes usable again only after both
// occupants leave and the room is deleted.
type room struct {
	id     string
	first  *Client
	second *Client
	sealed bool
}

func (r *room) other(c *Client) *Client {
	if r.first == c {
		return r.second
	}
	if r.second == c {
		return r.first
	}
	return nil
}

func (r *room) remove(c *Client) {
	if r.first == c {
		r.first = nil
	}
	if r.second == c {
		r.second = nil
	}
}

func (r *room) empty() bool {
	return r.first == nil && r.second == nil
}

// occupant returns whichever peer is still present, if any.
func (r *room) occupant() *Client {
	if r.first != nil {
		return r.first
	}
	return r.second
}

type inbound struct {
	client *Client
	env    signaling.Envelope
}

// Hub routes signaling envelopes between the two occupants of each room.
// All room state is owned by the Run goroutine; clients talk to it only
// through channels.
type Hub struct {
	rooms map[string]*room

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	done       chan struct{}
}

// NewHub creates an empty hub. Call Run on its own goroutine before
// serving connections.
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
}

// Run is the hub's single thread of control.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			slog.Info("client connected", "client", client.ID)

		case client := <-h.unregister:
			h.dropClient(client)

		case in := <-h.inbound:
			h.dispatch(in.client, in.env)

		case <-h.done:
			return
		}
	}
}

// Stop terminates the Run loop. Connected clients are not torn down; the
// callers own the listener lifecycle.
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) dropClient(client *Client) {
	if client.roomID != "" {
		if r, ok := h.rooms[client.roomID]; ok {
			r.remove(client)
			if r.empty() {
				delete(h.rooms, r.id)
				slog.Info("room deleted", "room", r.id)
			} else if other := r.occupant(); other != nil {
				other.enqueue(signaling.Envelope{Kind: signaling.KindPeerLeft, RoomID: r.id})
			}
		}
	}
	client.closeSend()
	slog.Info("client disconnected", "client", client.ID, "room", client.roomID)
}

func (h *Hub) dispatch(client *Client, env signaling.Envelope) {
	switch env.Kind {
	case signaling.KindJoin:
		h.handleJoin(client, env.RoomID)

	case signaling.KindOffer, signaling.KindAnswer, signaling.KindICECandidate:
		h.relay(client, env)

	default:
		// peer-joined and peer-left are hub-originated; a client sending
		// them is misbehaving.
		slog.Warn("ignoring client envelope", "kind", env.Kind, "client", client.ID)
	}
}

func (h *Hub) handleJoin(client *Client, roomID string) {
	if client.roomID != "" {
		slog.Warn("join from client already in a room", "client", client.ID, "room", client.roomID)
		return
	}

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{id: roomID, first: client}
		h.rooms[roomID] = r
		client.roomID = roomID
		slog.Info("room created", "room", roomID, "client", client.ID)
		return
	}

	if r.sealed {
		// Calls are strictly two-party; a third join, or a join after a
		// peer departed a full room, is refused by dropping the connection.
		slog.Warn("room sealed, refusing join", "room", roomID, "client", client.ID)
		client.closeSend()
		return
	}

	if r.first == nil {
		r.first = client
	} else {
		r.second = client
	}
	r.sealed = r.first != nil && r.second != nil
	client.roomID = roomID
	slog.Info("client joined room", "room", roomID, "client", client.ID)

	if other := r.other(client); other != nil {
		other.enqueue(signaling.Envelope{Kind: signaling.KindPeerJoined, RoomID: roomID})
	}
}

func (h *Hub) relay(client *Client, env signaling.Envelope) {
	if client.roomID == "" || client.roomID != env.RoomID {
		slog.Warn("dropping envelope outside client's room",
			"kind", env.Kind, "client", client.ID, "joined", client.roomID, "addressed", env.RoomID)
		return
	}

	r, ok := h.rooms[client.roomID]
	if !ok {
		slog.Warn("dropping envelope for missing room", "kind", env.Kind, "room", client.roomID)
		return
	}

	other := r.other(client)
	if other == nil {
		slog.Warn("no peer to relay to", "kind", env.Kind, "room", r.id)
		return
	}
	other.enqueue(env)
}
