package call

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/captions"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
)

// PeerHandle extends PeerConnector with the callback registration and track
// surface the controller wires up. *webrtc.PeerConnection satisfies it.
type PeerHandle interface {
	PeerConnector
	OnICECandidate(func(*webrtc.ICECandidate))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
}

// SignalingChannel is the transport surface the controller routes envelopes
// through.
type SignalingChannel interface {
	Connect() error
	Send(signaling.Envelope)
	Incoming() <-chan signaling.Envelope
	Close()
}

// CaptionChannel is the caption transport surface.
type CaptionChannel interface {
	Connect() error
	SendAudio(captions.AudioFragment)
	Incoming() <-chan captions.Event
	Close()
}

// Notifications are the presentation-layer callbacks. All of them are
// invoked from the controller's event loop; nil fields are skipped.
type Notifications struct {
	OnConnected    func()
	OnDisconnected func()
	OnCaption      func(captions.Event)
	OnError        func(error)
}

// Internal events funneled onto the single dispatch loop. Everything that
// can change call state arrives here, so the session and the aggregator
// never see concurrent callers.
type event any

type localCandidate struct{ cand webrtc.ICECandidateInit }
type connectionChanged struct{ state webrtc.PeerConnectionState }
type setAudio struct{ enabled bool }
type setVideo struct{ enabled bool }

// Controller orchestrates one room visit: it owns the peer session, both
// transports and the caption aggregator, routes inbound envelopes to session
// operations, and carries local candidates back out as envelopes.
type Controller struct {
	roomID     string
	pc         PeerHandle
	session    *Session
	signals    SignalingChannel
	captionCh  CaptionChannel
	media      MediaSource
	aggregator *captions.Aggregator
	notify     Notifications

	events   chan event
	done     chan struct{}
	loopDone chan struct{}

	started   bool
	connected bool
	endOnce   sync.Once
}

// NewController wires up a controller for one room. Nothing connects until
// Start.
func NewController(roomID string, pc PeerHandle, signals SignalingChannel, captionCh CaptionChannel, media MediaSource, notify Notifications) *Controller {
	return &Controller{
		roomID:     roomID,
		pc:         pc,
		session:    NewSession(pc),
		signals:    signals,
		captionCh:  captionCh,
		media:      media,
		aggregator: captions.NewAggregator(),
		notify:     notify,
		events:     make(chan event, 64),
		done:       make(chan struct{}),
		loopDone:   make(chan struct{}),
	}
}

// Start attaches local media, connects both transports and begins the event
// loop. On any failure everything acquired so far is released before
// returning.
func (c *Controller) Start() error {
	if err := c.media.AttachTo(c.pc); err != nil {
		c.session.Close()
		c.media.Close()
		return NewError("attach local media", err)
	}

	c.pc.OnICECandidate(func(ic *webrtc.ICECandidate) {
		if ic == nil {
			return
		}
		c.push(localCandidate{cand: ic.ToJSON()})
	})
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.push(connectionChanged{state: state})
	})

	if err := c.signals.Connect(); err != nil {
		c.session.Close()
		c.media.Close()
		return NewError("connect signaling channel", err)
	}
	if err := c.captionCh.Connect(); err != nil {
		c.signals.Close()
		c.session.Close()
		c.media.Close()
		return NewError("connect caption channel", err)
	}

	c.started = true
	go c.loop()
	return nil
}

// loop is the single thread of control for the call: every state transition
// happens here, one event at a time.
func (c *Controller) loop() {
	defer close(c.loopDone)

	sigIn := c.signals.Incoming()
	capIn := c.captionCh.Incoming()

	for {
		select {
		case env, ok := <-sigIn:
			if !ok {
				// Channel closure is terminal for the room visit; no
				// reconnection is attempted.
				sigIn = nil
				c.fail(NewError("signaling channel", ErrTransportClosed))
				c.markDisconnected()
				continue
			}
			c.handleEnvelope(env)

		case ev, ok := <-capIn:
			if !ok {
				capIn = nil
				continue
			}
			c.aggregator.Record(ev)
			if c.notify.OnCaption != nil {
				c.notify.OnCaption(ev)
			}

		case e := <-c.events:
			c.handleEvent(e)

		case <-c.done:
			return
		}
	}
}

// handleEnvelope maps envelope kinds to session operations.
func (c *Controller) handleEnvelope(env signaling.Envelope) {
	if env.RoomID != c.roomID {
		slog.Warn("dropping envelope for foreign room", "kind", env.Kind, "room", env.RoomID, "want", c.roomID)
		return
	}

	switch env.Kind {
	case signaling.KindPeerJoined:
		offer, err := c.session.CreateOffer()
		if err != nil {
			c.fail(err)
			return
		}
		out, err := signaling.NewDescription(signaling.KindOffer, c.roomID, signaling.DescriptionFromPion(offer))
		if err != nil {
			c.fail(NewError("encode offer", err))
			return
		}
		c.signals.Send(out)

	case signaling.KindOffer:
		desc, err := env.Description()
		if err != nil {
			slog.Warn("dropping malformed offer payload", "err", err)
			return
		}
		remote, err := desc.ToPion()
		if err != nil {
			slog.Warn("dropping offer with bad sdp type", "err", err)
			return
		}
		if err := c.session.HandleRemoteOffer(remote); err != nil {
			c.fail(err)
			return
		}
		answer, err := c.session.CreateAnswer()
		if err != nil {
			c.fail(err)
			return
		}
		out, err := signaling.NewDescription(signaling.KindAnswer, c.roomID, signaling.DescriptionFromPion(answer))
		if err != nil {
			c.fail(NewError("encode answer", err))
			return
		}
		c.signals.Send(out)

	case signaling.KindAnswer:
		desc, err := env.Description()
		if err != nil {
			slog.Warn("dropping malformed answer payload", "err", err)
			return
		}
		remote, err := desc.ToPion()
		if err != nil {
			slog.Warn("dropping answer with bad sdp type", "err", err)
			return
		}
		if err := c.session.HandleRemoteAnswer(remote); err != nil {
			c.fail(err)
		}

	case signaling.KindICECandidate:
		cand, err := env.Candidate()
		if err != nil {
			slog.Warn("dropping malformed candidate payload", "err", err)
			return
		}
		// A rejected candidate only removes one possible path; the call
		// survives it.
		if err := c.session.AddRemoteCandidate(cand.ToPion()); err != nil {
			slog.Warn("failed to apply remote candidate", "err", err)
		}

	case signaling.KindPeerLeft:
		// The platform may still tear the connection down on its own; the
		// session stays open until End.
		c.markDisconnected()

	default:
		slog.Warn("ignoring unexpected envelope", "kind", env.Kind)
	}
}

func (c *Controller) handleEvent(e event) {
	switch e := e.(type) {
	case localCandidate:
		out, err := signaling.NewCandidate(c.roomID, signaling.CandidateFromPion(e.cand))
		if err != nil {
			slog.Warn("failed to encode local candidate", "err", err)
			return
		}
		c.signals.Send(out)

	case connectionChanged:
		switch e.state {
		case webrtc.PeerConnectionStateConnected:
			c.connected = true
			if c.notify.OnConnected != nil {
				c.notify.OnConnected()
			}
		case webrtc.PeerConnectionStateFailed:
			// Failure after establishment is a peer loss, not a clean hangup;
			// surface it before the disconnect notification.
			if c.connected {
				c.fail(WrapError("peer connection", ErrPeerDisconnected, e.state.String()))
			}
			c.markDisconnected()
		case webrtc.PeerConnectionStateDisconnected,
			webrtc.PeerConnectionStateClosed:
			c.markDisconnected()
		}

	case setAudio:
		c.media.SetAudioEnabled(e.enabled)

	case setVideo:
		c.media.SetVideoEnabled(e.enabled)
	}
}

func (c *Controller) markDisconnected() {
	c.connected = false
	if c.notify.OnDisconnected != nil {
		c.notify.OnDisconnected()
	}
}

// fail reports a call-level failure to the presentation layer. Failures
// during teardown are expected noise and only logged.
func (c *Controller) fail(err error) {
	if errors.Is(err, ErrSessionClosed) || c.session.State() == StateClosed {
		slog.Debug("ignoring failure after close", "err", err)
		return
	}
	slog.Error("call error", "room", c.roomID, "err", err)
	if c.notify.OnError != nil {
		c.notify.OnError(err)
	}
}

// push hands an event to the loop without ever blocking past teardown.
func (c *Controller) push(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

// ToggleAudio enables or disables the local audio track.
func (c *Controller) ToggleAudio(enabled bool) {
	c.push(setAudio{enabled: enabled})
}

// ToggleVideo enables or disables the local video track.
func (c *Controller) ToggleVideo(enabled bool) {
	c.push(setVideo{enabled: enabled})
}

// SendAudio forwards one locally captured audio fragment to the caption
// channel for transcription. Fire-and-forget.
func (c *Controller) SendAudio(frag captions.AudioFragment) {
	c.captionCh.SendAudio(frag)
}

// Aggregator exposes the transcript for export and display.
func (c *Controller) Aggregator() *captions.Aggregator {
	return c.aggregator
}

// NegotiationState reports the session's current state.
func (c *Controller) NegotiationState() State {
	return c.session.State()
}

// RoomID returns the room this controller is bound to.
func (c *Controller) RoomID() string {
	return c.roomID
}

// End performs full teardown: session first, then both transports, then
// local media, in that order. Safe to call any number of times.
func (c *Controller) End() {
	c.endOnce.Do(func() {
		close(c.done)
		if c.started {
			<-c.loopDone
		}
		if err := c.session.Close(); err != nil {
			slog.Warn("closing session", "err", err)
		}
		c.signals.Close()
		c.captionCh.Close()
		if err := c.media.Close(); err != nil {
			slog.Warn("closing media source", "err", err)
		}
	})
}
