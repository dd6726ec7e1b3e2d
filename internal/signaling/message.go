package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"
)

// ErrMalformedMessage wraps every parse or validation failure on inbound
// wire data. Receivers drop and log such messages; the channel stays open.
var ErrMalformedMessage = errors.New("malformed signaling message")

// Kind identifies the purpose of a signaling envelope.
type Kind string

const (
	KindJoin         Kind = "join"
	KindPeerJoined   Kind = "peer-joined"
	KindPeerLeft     Kind = "peer-left"
	KindOffer        Kind = "offer"
	KindAnswer       Kind = "answer"
	KindICECandidate Kind = "ice-candidate"
)

// Envelope is the wire format for every message on the signaling channel.
// All envelopes are scoped to exactly one room.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	RoomID  string          `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Description is a minimal, JSON-friendly representation of an SDP
// offer/answer blob.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func DescriptionFromPion(desc webrtc.SessionDescription) Description {
	return Description{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

func (d Description) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch d.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", d.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: d.SDP}, nil
}

// Candidate is one ICE connectivity candidate descriptor.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) Candidate {
	return Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// NewJoin builds the envelope a client sends immediately after the signaling
// channel opens.
func NewJoin(roomID string) Envelope {
	return Envelope{Kind: KindJoin, RoomID: roomID}
}

// NewDescription builds an offer or answer envelope carrying a negotiation
// blob.
func NewDescription(kind Kind, roomID string, desc Description) (Envelope, error) {
	if kind != KindOffer && kind != KindAnswer {
		return Envelope{}, fmt.Errorf("kind %q cannot carry a description", kind)
	}
	payload, err := json.Marshal(desc)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, RoomID: roomID, Payload: payload}, nil
}

// NewCandidate builds an ice-candidate envelope.
func NewCandidate(roomID string, cand Candidate) (Envelope, error) {
	payload, err := json.Marshal(cand)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindICECandidate, RoomID: roomID, Payload: payload}, nil
}

// Description decodes the payload of an offer/answer envelope.
func (e Envelope) Description() (Description, error) {
	if e.Kind != KindOffer && e.Kind != KindAnswer {
		return Description{}, fmt.Errorf("envelope kind %q carries no description", e.Kind)
	}
	var d Description
	if err := json.Unmarshal(e.Payload, &d); err != nil {
		return Description{}, err
	}
	return d, nil
}

// Candidate decodes the payload of an ice-candidate envelope.
func (e Envelope) Candidate() (Candidate, error) {
	if e.Kind != KindICECandidate {
		return Candidate{}, fmt.Errorf("envelope kind %q carries no candidate", e.Kind)
	}
	var c Candidate
	if err := json.Unmarshal(e.Payload, &c); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// ParseEnvelope strictly decodes and validates one wire message.
func ParseEnvelope(data []byte) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Envelope{}, fmt.Errorf("%w: unexpected trailing data", ErrMalformedMessage)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return env, nil
}

// Validate checks the kind/payload pairing rules of the schema.
func (e Envelope) Validate() error {
	if e.RoomID == "" {
		return fmt.Errorf("envelope missing roomId")
	}
	switch e.Kind {
	case KindJoin, KindPeerJoined, KindPeerLeft:
		if len(e.Payload) != 0 {
			return fmt.Errorf("%s envelope has unexpected payload", e.Kind)
		}
	case KindOffer, KindAnswer:
		d, err := e.Description()
		if err != nil {
			return fmt.Errorf("%s envelope payload: %w", e.Kind, err)
		}
		if d.Type != string(e.Kind) {
			return fmt.Errorf("%s envelope has sdp.type=%q", e.Kind, d.Type)
		}
		if d.SDP == "" {
			return fmt.Errorf("%s envelope missing sdp", e.Kind)
		}
	case KindICECandidate:
		c, err := e.Candidate()
		if err != nil {
			return fmt.Errorf("ice-candidate envelope payload: %w", err)
		}
		if c.Candidate == "" {
			return fmt.Errorf("ice-candidate envelope missing candidate")
		}
	default:
		return fmt.Errorf("unsupported envelope kind %q", e.Kind)
	}
	return nil
}
