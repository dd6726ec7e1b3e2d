package call

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/captions"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
)

type fakePeerHandle struct {
	fakeConn
	onICE  func(*webrtc.ICECandidate)
	onConn func(webrtc.PeerConnectionState)
}

func (f *fakePeerHandle) OnICECandidate(fn func(*webrtc.ICECandidate)) { f.onICE = fn }
func (f *fakePeerHandle) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	f.onConn = fn
}
func (f *fakePeerHandle) AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	return nil, nil
}

type fakeSignalingChannel struct {
	in        chan signaling.Envelope
	out       chan signaling.Envelope
	closeOnce sync.Once
	closes    int
}

func newFakeSignalingChannel() *fakeSignalingChannel {
	return &fakeSignalingChannel{
		in:  make(chan signaling.Envelope, 16),
		out: make(chan signaling.Envelope, 16),
	}
}

func (f *fakeSignalingChannel) Connect() error                      { return nil }
func (f *fakeSignalingChannel) Send(env signaling.Envelope)         { f.out <- env }
func (f *fakeSignalingChannel) Incoming() <-chan signaling.Envelope { return f.in }
func (f *fakeSignalingChannel) Close()                              { f.closeOnce.Do(func() { f.closes++ }) }

type fakeCaptionChannel struct {
	in        chan captions.Event
	audio     chan captions.AudioFragment
	closeOnce sync.Once
}

func newFakeCaptionChannel() *fakeCaptionChannel {
	return &fakeCaptionChannel{
		in:    make(chan captions.Event, 16),
		audio: make(chan captions.AudioFragment, 16),
	}
}

func (f *fakeCaptionChannel) Connect() error                        { return nil }
func (f *fakeCaptionChannel) SendAudio(frag captions.AudioFragment) { f.audio <- frag }
func (f *fakeCaptionChannel) Incoming() <-chan captions.Event       { return f.in }
func (f *fakeCaptionChannel) Close()                                { f.closeOnce.Do(func() {}) }

type countingMedia struct {
	mu       sync.Mutex
	closes   int
	audioOn  *bool
	attached bool
}

func (m *countingMedia) AttachTo(PeerHandle) error { m.attached = true; return nil }
func (m *countingMedia) SetAudioEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOn = &enabled
}
func (m *countingMedia) SetVideoEnabled(bool) {}
func (m *countingMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

type harness struct {
	ctrl   *Controller
	peer   *fakePeerHandle
	sig    *fakeSignalingChannel
	capt   *fakeCaptionChannel
	media  *countingMedia
	events chan string
	errs   chan error
	caps   chan captions.Event
}

func newHarness(t *testing.T, roomID string) *harness {
	t.Helper()

	h := &harness{
		peer:   &fakePeerHandle{},
		sig:    newFakeSignalingChannel(),
		capt:   newFakeCaptionChannel(),
		media:  &countingMedia{},
		events: make(chan string, 16),
		errs:   make(chan error, 16),
		caps:   make(chan captions.Event, 16),
	}

	notify := Notifications{
		OnConnected:    func() { h.events <- "connected" },
		OnDisconnected: func() { h.events <- "disconnected" },
		OnCaption:      func(ev captions.Event) { h.caps <- ev },
		OnError:        func(err error) { h.errs <- err },
	}

	h.ctrl = NewController(roomID, h.peer, h.sig, h.capt, h.media, notify)
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(h.ctrl.End)
	return h
}

func recvEnvelope(t *testing.T, ch <-chan signaling.Envelope) signaling.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for envelope")
		return signaling.Envelope{}
	}
}

func recvString(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for notification")
		return ""
	}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.NegotiationState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state=%s, want %s", c.NegotiationState(), want)
}

// Full two-party handshake: the relay confirms a peer to A, A offers, B
// answers, both settle in stable with exactly one offer and one answer on
// the wire.
func TestController_OfferAnswerHandshake(t *testing.T) {
	const room = "kitten-waffle-stardust-happy"

	a := newHarness(t, room)
	b := newHarness(t, room)

	a.sig.in <- signaling.Envelope{Kind: signaling.KindPeerJoined, RoomID: room}

	offer := recvEnvelope(t, a.sig.out)
	if offer.Kind != signaling.KindOffer || offer.RoomID != room {
		t.Fatalf("unexpected first envelope from A: %#v", offer)
	}

	b.sig.in <- offer

	answer := recvEnvelope(t, b.sig.out)
	if answer.Kind != signaling.KindAnswer || answer.RoomID != room {
		t.Fatalf("unexpected envelope from B: %#v", answer)
	}

	a.sig.in <- answer

	waitForState(t, a.ctrl, StateStable)
	waitForState(t, b.ctrl, StateStable)

	if len(a.sig.out) != 0 || len(b.sig.out) != 0 {
		t.Fatalf("extra envelopes on the wire: A=%d B=%d", len(a.sig.out), len(b.sig.out))
	}
}

func TestController_DropsForeignRoomEnvelopes(t *testing.T) {
	h := newHarness(t, "room-a")

	cand, err := signaling.NewCandidate("room-b", signaling.Candidate{Candidate: "candidate:1"})
	if err != nil {
		t.Fatalf("build candidate: %v", err)
	}
	h.sig.in <- cand

	// A follow-up envelope proves the loop has consumed the foreign one.
	h.sig.in <- signaling.Envelope{Kind: signaling.KindPeerJoined, RoomID: "room-a"}
	recvEnvelope(t, h.sig.out)

	if len(h.peer.applied) != 0 {
		t.Fatalf("foreign-room candidate was applied")
	}
	if h.ctrl.NegotiationState() != StateHaveLocalOffer {
		t.Fatalf("state=%s, want have-local-offer", h.ctrl.NegotiationState())
	}
}

func TestController_BuffersEarlyCandidates(t *testing.T) {
	const room = "room-1"
	h := newHarness(t, room)

	// Candidates race ahead of the offer.
	for i := 0; i < 2; i++ {
		cand, err := signaling.NewCandidate(room, signaling.Candidate{Candidate: candidate(i).Candidate})
		if err != nil {
			t.Fatalf("build candidate: %v", err)
		}
		h.sig.in <- cand
	}

	offer, err := signaling.NewDescription(signaling.KindOffer, room, signaling.Description{Type: "offer", SDP: "v=0"})
	if err != nil {
		t.Fatalf("build offer: %v", err)
	}
	h.sig.in <- offer

	recvEnvelope(t, h.sig.out) // the answer
	waitForState(t, h.ctrl, StateStable)

	if len(h.peer.applied) != 2 {
		t.Fatalf("applied %d candidates, want 2", len(h.peer.applied))
	}
	for i, cand := range h.peer.applied {
		if cand.Candidate != candidate(i).Candidate {
			t.Fatalf("candidate %d out of order: %q", i, cand.Candidate)
		}
	}
}

func TestController_PeerLeftNotifiesWithoutClosingSession(t *testing.T) {
	const room = "room-1"
	h := newHarness(t, room)

	h.sig.in <- signaling.Envelope{Kind: signaling.KindPeerLeft, RoomID: room}

	if got := recvString(t, h.events); got != "disconnected" {
		t.Fatalf("notification=%q, want disconnected", got)
	}
	if h.ctrl.NegotiationState() == StateClosed {
		t.Fatalf("peer-left must not close the session")
	}
}

func TestController_LocalCandidateBecomesEnvelope(t *testing.T) {
	const room = "room-1"
	h := newHarness(t, room)

	h.ctrl.push(localCandidate{cand: webrtc.ICECandidateInit{Candidate: "candidate:42"}})

	env := recvEnvelope(t, h.sig.out)
	if env.Kind != signaling.KindICECandidate || env.RoomID != room {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	cand, err := env.Candidate()
	if err != nil {
		t.Fatalf("decode candidate: %v", err)
	}
	if cand.Candidate != "candidate:42" {
		t.Fatalf("candidate=%q", cand.Candidate)
	}
}

func TestController_ConnectionStateNotifications(t *testing.T) {
	h := newHarness(t, "room-1")

	h.peer.onConn(webrtc.PeerConnectionStateConnected)
	if got := recvString(t, h.events); got != "connected" {
		t.Fatalf("notification=%q, want connected", got)
	}

	h.peer.onConn(webrtc.PeerConnectionStateFailed)
	if got := recvString(t, h.events); got != "disconnected" {
		t.Fatalf("notification=%q, want disconnected", got)
	}
}

// Losing an established connection surfaces a peer-disconnected error along
// with the disconnect notification; a clean hangup does not.
func TestController_FailureAfterConnectSurfacesPeerDisconnected(t *testing.T) {
	h := newHarness(t, "room-1")

	h.peer.onConn(webrtc.PeerConnectionStateConnected)
	recvString(t, h.events)

	h.peer.onConn(webrtc.PeerConnectionStateFailed)

	select {
	case err := <-h.errs:
		if !errors.Is(err, ErrPeerDisconnected) {
			t.Fatalf("error %v does not wrap the peer-disconnected sentinel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an error notification")
	}
	if got := recvString(t, h.events); got != "disconnected" {
		t.Fatalf("notification=%q, want disconnected", got)
	}
}

func TestController_CaptionsFlowToAggregatorAndCallback(t *testing.T) {
	h := newHarness(t, "room-1")

	h.capt.in <- captions.Event{Speaker: "Remote", Text: "bonjour", Translation: "hello", Language: "fr"}

	select {
	case ev := <-h.caps:
		if ev.Text != "bonjour" || ev.Translation != "hello" {
			t.Fatalf("unexpected caption: %#v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("caption callback never fired")
	}

	if h.ctrl.Aggregator().Len() != 1 {
		t.Fatalf("aggregator has %d events, want 1", h.ctrl.Aggregator().Len())
	}
	remote := h.ctrl.Aggregator().BySpeaker("Remote")
	if len(remote) != 1 || remote[0].Text != "bonjour" {
		t.Fatalf("unexpected partition: %#v", remote)
	}
}

func TestController_ToggleAudioReachesMedia(t *testing.T) {
	h := newHarness(t, "room-1")

	h.ctrl.ToggleAudio(false)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.media.mu.Lock()
		set := h.media.audioOn != nil && !*h.media.audioOn
		h.media.mu.Unlock()
		if set {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("audio toggle never reached the media source")
}

func TestController_EndIsIdempotent(t *testing.T) {
	h := newHarness(t, "room-1")

	h.ctrl.End()
	h.ctrl.End()

	if h.peer.closeCount != 1 {
		t.Fatalf("peer connection closed %d times, want 1", h.peer.closeCount)
	}
	if h.sig.closes != 1 {
		t.Fatalf("signaling channel closed %d times, want 1", h.sig.closes)
	}
	h.media.mu.Lock()
	defer h.media.mu.Unlock()
	if h.media.closes != 1 {
		t.Fatalf("media closed %d times, want 1", h.media.closes)
	}
}

func TestController_InvalidRoutingSurfacesError(t *testing.T) {
	const room = "room-1"
	h := newHarness(t, room)

	// Two peer-joined envelopes mean the dispatcher calls CreateOffer twice;
	// the second must surface InvalidState instead of corrupting the session.
	h.sig.in <- signaling.Envelope{Kind: signaling.KindPeerJoined, RoomID: room}
	recvEnvelope(t, h.sig.out)

	h.sig.in <- signaling.Envelope{Kind: signaling.KindPeerJoined, RoomID: room}

	select {
	case err := <-h.errs:
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("error %v does not wrap the invalid-state sentinel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected an error notification")
	}
}
