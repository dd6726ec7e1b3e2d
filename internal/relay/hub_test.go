package relay

import (
	"testing"
	"time"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func hubClient(id string) *Client {
	return &Client{ID: id, send: make(chan signaling.Envelope, 16)}
}

// settle blocks until the hub has drained everything sent before it. The
// register case only logs, so it doubles as a synchronization barrier.
func settle(h *Hub) {
	h.register <- hubClient("settle-probe")
}

func join(h *Hub, c *Client, roomID string) {
	h.inbound <- inbound{client: c, env: signaling.Envelope{Kind: signaling.KindJoin, RoomID: roomID}}
}

func recvFrom(t *testing.T, c *Client) signaling.Envelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for envelope to %s", c.ID)
		return signaling.Envelope{}
	}
}

func TestHub_SecondJoinNotifiesFirstOccupantOnly(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "kitten-waffle-stardust-happy"

	join(h, a, room)
	join(h, b, room)
	settle(h)

	env := recvFrom(t, a)
	if env.Kind != signaling.KindPeerJoined || env.RoomID != room {
		t.Fatalf("first occupant got %#v, want peer-joined", env)
	}
	if len(a.send) != 0 {
		t.Fatalf("first occupant got %d extra envelopes", len(a.send))
	}
	if len(b.send) != 0 {
		t.Fatalf("second occupant should receive nothing on join, got %d", len(b.send))
	}
}

func TestHub_ThirdJoinIsRefused(t *testing.T) {
	h := startHub(t)
	const room = "room-1"

	join(h, hubClient("a"), room)
	join(h, hubClient("b"), room)

	c := hubClient("c")
	join(h, c, room)
	settle(h)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatalf("refused client received an envelope")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("refused client's send queue was never closed")
	}
	if c.roomID != "" {
		t.Fatalf("refused client was placed in room %q", c.roomID)
	}
}

func TestHub_RelaysNegotiationEnvelopesToOtherPeer(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "room-1"

	join(h, a, room)
	join(h, b, room)
	recvFrom(t, a) // peer-joined

	offer := signaling.Envelope{Kind: signaling.KindOffer, RoomID: room}
	h.inbound <- inbound{client: a, env: offer}

	if got := recvFrom(t, b); got.Kind != signaling.KindOffer {
		t.Fatalf("peer B got %s, want offer", got.Kind)
	}

	answer := signaling.Envelope{Kind: signaling.KindAnswer, RoomID: room}
	h.inbound <- inbound{client: b, env: answer}

	if got := recvFrom(t, a); got.Kind != signaling.KindAnswer {
		t.Fatalf("peer A got %s, want answer", got.Kind)
	}
}

func TestHub_DropsEnvelopeAddressedToForeignRoom(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "room-1"

	join(h, a, room)
	join(h, b, room)
	recvFrom(t, a)

	h.inbound <- inbound{client: a, env: signaling.Envelope{Kind: signaling.KindICECandidate, RoomID: "somewhere-else"}}
	settle(h)

	if len(b.send) != 0 {
		t.Fatalf("peer B received an envelope addressed to another room")
	}
}

func TestHub_DropsRelayFromClientOutsideAnyRoom(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")

	h.inbound <- inbound{client: a, env: signaling.Envelope{Kind: signaling.KindOffer, RoomID: "room-1"}}
	settle(h)

	if len(a.send) != 0 {
		t.Fatalf("loose client received an envelope")
	}
}

func TestHub_DepartureNotifiesPeerAndFreesRoom(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "room-1"

	join(h, a, room)
	join(h, b, room)
	recvFrom(t, a)

	h.unregister <- b
	settle(h)

	if got := recvFrom(t, a); got.Kind != signaling.KindPeerLeft || got.RoomID != room {
		t.Fatalf("peer A got %#v, want peer-left", got)
	}

	h.unregister <- a
	settle(h)

	// Room is gone; the next join starts a fresh call under the same ID.
	c := hubClient("c")
	join(h, c, room)
	d := hubClient("d")
	join(h, d, room)
	settle(h)

	if got := recvFrom(t, c); got.Kind != signaling.KindPeerJoined {
		t.Fatalf("fresh occupant got %s, want peer-joined", got.Kind)
	}
}

// After a departure from a full room, the survivor has already negotiated
// and cannot accept a new peer-joined. The hub must refuse the newcomer
// rather than refill the slot, until the room empties out entirely.
func TestHub_RefusesRefillAfterDepartureFromFullRoom(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "room-1"

	join(h, a, room)
	join(h, b, room)
	recvFrom(t, a) // peer-joined

	h.unregister <- b
	recvFrom(t, a) // peer-left

	c := hubClient("c")
	join(h, c, room)
	settle(h)

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatalf("refused client received an envelope")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("refused client's send queue was never closed")
	}
	if c.roomID != "" {
		t.Fatalf("refused client was placed in room %q", c.roomID)
	}
	if len(a.send) != 0 {
		t.Fatalf("survivor received %d envelopes after the refused join", len(a.send))
	}
}

func TestHub_IgnoresHubOriginatedKindsFromClients(t *testing.T) {
	h := startHub(t)
	a := hubClient("a")
	b := hubClient("b")
	const room = "room-1"

	join(h, a, room)
	join(h, b, room)
	recvFrom(t, a)

	h.inbound <- inbound{client: b, env: signaling.Envelope{Kind: signaling.KindPeerLeft, RoomID: room}}
	settle(h)

	if len(a.send) != 0 {
		t.Fatalf("client-forged peer-left was relayed")
	}
}
