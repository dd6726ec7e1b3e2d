package relay

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startCaptionHub(t *testing.T) *CaptionHub {
	t.Helper()
	h := NewCaptionHub()
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func captionClient(id, roomID string) *CaptionClient {
	return &CaptionClient{ID: id, roomID: roomID, send: make(chan frame, 16)}
}

func captionSettle(h *CaptionHub) {
	probe := captionClient("settle-probe", "settle-room")
	h.register <- probe
	h.unregister <- probe
}

func TestCaptionHub_BroadcastsToOtherRoomMembers(t *testing.T) {
	h := startCaptionHub(t)
	const room = "room-1"

	caller := captionClient("caller", room)
	callee := captionClient("callee", room)
	worker := captionClient("worker", room)
	outsider := captionClient("outsider", "room-2")

	for _, c := range []*CaptionClient{caller, callee, worker, outsider} {
		h.register <- c
	}

	audio := frame{messageType: websocket.BinaryMessage, data: []byte{0x01, 0x02}}
	h.frames <- captionFrame{client: caller, frame: audio}
	captionSettle(h)

	for _, c := range []*CaptionClient{callee, worker} {
		select {
		case f := <-c.send:
			if f.messageType != websocket.BinaryMessage {
				t.Fatalf("%s got message type %d", c.ID, f.messageType)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never received the frame", c.ID)
		}
	}
	if len(caller.send) != 0 {
		t.Fatalf("frame echoed back to its sender")
	}
	if len(outsider.send) != 0 {
		t.Fatalf("frame leaked into another room")
	}
}

func TestCaptionHub_TextFramesRelayUnchanged(t *testing.T) {
	h := startCaptionHub(t)
	const room = "room-1"

	worker := captionClient("worker", room)
	caller := captionClient("caller", room)
	h.register <- worker
	h.register <- caller

	caption := []byte(`{"speaker":"Remote","text":"hola","translation":"hello","timestampMs":1,"language":"es"}`)
	h.frames <- captionFrame{client: worker, frame: frame{messageType: websocket.TextMessage, data: caption}}
	captionSettle(h)

	select {
	case f := <-caller.send:
		if f.messageType != websocket.TextMessage || string(f.data) != string(caption) {
			t.Fatalf("caption altered in transit: %q", f.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("caption never relayed")
	}
}

func TestCaptionHub_LastMemberLeavingFreesRoom(t *testing.T) {
	h := startCaptionHub(t)
	const room = "room-1"

	caller := captionClient("caller", room)
	h.register <- caller
	h.unregister <- caller
	captionSettle(h)

	select {
	case _, ok := <-caller.send:
		if ok {
			t.Fatalf("departed client received a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("departed client's send queue was never closed")
	}
}
