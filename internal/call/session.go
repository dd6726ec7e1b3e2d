package call

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/config"
)

// State is the negotiation state of a Session.
type State int

const (
	StateIdle State = iota
	StateHaveLocalOffer
	StateHaveRemoteOffer
	StateStable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHaveLocalOffer:
		return "have-local-offer"
	case StateHaveRemoteOffer:
		return "have-remote-offer"
	case StateStable:
		return "stable"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PeerConnector is the slice of the peer-connection surface the negotiation
// state machine needs. *webrtc.PeerConnection satisfies it.
type PeerConnector interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// Session is the negotiation state machine for one call. It owns the
// peer-connection handle, tracks local/remote description state, and buffers
// remote candidates that arrive before a remote description is known.
//
// The offering side walks idle -> have-local-offer -> stable; the answering
// side walks idle -> have-remote-offer -> stable. Stable is the only state
// in which media flows, and the only exit from it is Close.
type Session struct {
	mu        sync.Mutex
	pc        PeerConnector
	state     State
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// NewSession wraps a peer-connection handle in a fresh state machine.
func NewSession(pc PeerConnector) *Session {
	return &Session{pc: pc}
}

// NewPeerConnection constructs the pion handle for a real call from the
// configured ICE servers.
func NewPeerConnection(cfg *config.Config) (*webrtc.PeerConnection, error) {
	iceServers := []webrtc.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if cfg.ForceRelay && cfg.GetTURNServers() != nil {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

// State returns the current negotiation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CreateOffer produces the local negotiation blob and moves to
// have-local-offer. Valid only from idle.
func (s *Session) CreateOffer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return webrtc.SessionDescription{}, WrapError("create offer", ErrInvalidState, s.state.String())
	}

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create offer", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local description", err)
	}

	s.state = StateHaveLocalOffer
	return offer, nil
}

// HandleRemoteOffer records the remote description, moves to
// have-remote-offer, and flushes the candidate buffer. The flush must happen
// here, not in CreateAnswer: a candidate arriving between the two calls is
// applied immediately once the description is set, so buffered candidates
// that came earlier have to be applied first to preserve receipt order.
// Valid only from idle; the caller must follow up with CreateAnswer.
func (s *Session) HandleRemoteOffer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return WrapError("handle remote offer", ErrInvalidState, s.state.String())
	}

	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}

	s.remoteSet = true
	s.state = StateHaveRemoteOffer
	s.flushPending()
	return nil
}

// CreateAnswer produces the local negotiation blob and moves to stable.
// Buffered candidates were already flushed by HandleRemoteOffer. Valid only
// from have-remote-offer.
func (s *Session) CreateAnswer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateHaveRemoteOffer {
		return webrtc.SessionDescription{}, WrapError("create answer", ErrInvalidState, s.state.String())
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, NewError("create answer", err)
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, NewError("set local description", err)
	}

	s.state = StateStable
	return answer, nil
}

// HandleRemoteAnswer records the remote description, moves to stable, and
// flushes the candidate buffer. Valid only from have-local-offer.
func (s *Session) HandleRemoteAnswer(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateHaveLocalOffer {
		return WrapError("handle remote answer", ErrInvalidState, s.state.String())
	}

	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", err)
	}

	s.remoteSet = true
	s.state = StateStable
	s.flushPending()
	return nil
}

// AddRemoteCandidate applies the candidate immediately once a remote
// description is set; before that it is buffered. Candidates routinely
// arrive interleaved with or before the description on real networks, so
// buffering here is what keeps them from being lost.
func (s *Session) AddRemoteCandidate(cand webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return NewError("add remote candidate", ErrSessionClosed)
	}

	if !s.remoteSet {
		s.pending = append(s.pending, cand)
		return nil
	}
	if err := s.pc.AddICECandidate(cand); err != nil {
		return NewError("add remote candidate", err)
	}
	return nil
}

// flushPending applies buffered candidates in receipt order and clears the
// buffer. A failed candidate is logged, not fatal: losing one path endpoint
// does not terminate the call. Caller holds s.mu.
func (s *Session) flushPending() {
	for _, cand := range s.pending {
		if err := s.pc.AddICECandidate(cand); err != nil {
			slog.Warn("failed to apply buffered candidate", "err", err)
		}
	}
	s.pending = nil
}

// PendingCandidates reports how many candidates are buffered.
func (s *Session) PendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close releases the underlying connection from any state. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	s.pending = nil
	return s.pc.Close()
}
