package call

// MediaSource supplies local capture tracks to the peer connection. Capture
// itself (devices, permission prompts) lives outside this core; the
// controller only drives the lifecycle and the mute toggles.
type MediaSource interface {
	// AttachTo adds the local tracks to the peer connection. Returns
	// ErrPermissionDenied (possibly wrapped) when the user refused device
	// access.
	AttachTo(pc PeerHandle) error

	SetAudioEnabled(enabled bool)
	SetVideoEnabled(enabled bool)

	// Close releases capture devices. Must be safe to call more than once.
	Close() error
}

// NoCapture is a MediaSource for caption-only terminals: no tracks are
// published and the toggles are no-ops. The caption channel still carries
// audio fragments recorded outside this process.
type NoCapture struct{}

func (NoCapture) AttachTo(PeerHandle) error { return nil }
func (NoCapture) SetAudioEnabled(bool)      {}
func (NoCapture) SetVideoEnabled(bool)      {}
func (NoCapture) Close() error              { return nil }
