package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/captions"
)

// CallState represents the current state of the call view
type CallState int

const (
	StateConnecting CallState = iota
	StateWaitingForPeer
	StateInCall
	StatePeerLeft
	StateEnded
	StateError
)

// How many caption lines stay on screen. The full transcript lives in the
// aggregator, not here.
const maxVisibleCaptions = 8

// UpdateType tags an external update for the call view
type UpdateType int

const (
	UpdateWaitingForPeer UpdateType = iota
	UpdatePeerConnected
	UpdatePeerLeft
	UpdateCaption
	UpdateState
	UpdateError
)

// CallUpdate is a message sent from call goroutines to update the UI
type CallUpdate struct {
	Type    UpdateType
	Caption captions.Event
	Message string
	Error   error
}

// CallControls are the actions the view triggers on key presses. The view
// never talks to the call machinery directly.
type CallControls struct {
	ToggleAudio func(enabled bool)
	ToggleVideo func(enabled bool)

	// SaveTranscript writes the transcript so far and returns the path.
	SaveTranscript func() (string, error)
}

// CallModel is the main Bubble Tea model for a live call with captions
type CallModel struct {
	roomID      string
	roomLink    string
	displayName string

	state    CallState
	stateMsg string

	controls CallControls
	audioOn  bool
	videoOn  bool

	// Rolling window of the most recent captions.
	visible []captions.Event

	// One-line notice under the captions (e.g. transcript saved).
	notice string

	spinner spinner.Model

	width  int
	height int

	updateChan chan CallUpdate
	done       chan struct{}

	err error
}

// NewCallModel creates a call view for one room visit.
func NewCallModel(roomID, roomLink, displayName string, controls CallControls) *CallModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &CallModel{
		roomID:      roomID,
		roomLink:    roomLink,
		displayName: displayName,
		state:       StateConnecting,
		stateMsg:    "Connecting to relay...",
		controls:    controls,
		audioOn:     true,
		videoOn:     true,
		updateChan:  make(chan CallUpdate, 100),
		done:        make(chan struct{}),
		width:       80,
		height:      24,
	}
}

// GetUpdateChannel returns the channel for sending updates
func (m *CallModel) GetUpdateChannel() chan<- CallUpdate {
	return m.updateChan
}

func (m *CallModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdates(),
	)
}

// waitForUpdates returns a command that listens for external updates
func (m *CallModel) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case update := <-m.updateChan:
			return update
		case <-m.done:
			return nil
		}
	}
}

func (m *CallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			close(m.done)
			return m, tea.Quit

		case "m":
			m.audioOn = !m.audioOn
			if m.controls.ToggleAudio != nil {
				m.controls.ToggleAudio(m.audioOn)
			}

		case "v":
			m.videoOn = !m.videoOn
			if m.controls.ToggleVideo != nil {
				m.controls.ToggleVideo(m.videoOn)
			}

		case "s":
			if m.controls.SaveTranscript != nil {
				if path, err := m.controls.SaveTranscript(); err != nil {
					m.notice = ErrorStyle.Render(fmt.Sprintf("%s %v", IconError, err))
				} else {
					m.notice = SuccessStyle.Render(fmt.Sprintf("%s Transcript saved to %s", IconSave, path))
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case CallUpdate:
		m.handleUpdate(msg)
		cmds = append(cmds, m.waitForUpdates())
	}

	return m, tea.Batch(cmds...)
}

func (m *CallModel) handleUpdate(update CallUpdate) {
	switch update.Type {
	case UpdateWaitingForPeer:
		m.state = StateWaitingForPeer

	case UpdatePeerConnected:
		m.state = StateInCall

	case UpdatePeerLeft:
		m.state = StatePeerLeft
		m.stateMsg = "Peer left the call"

	case UpdateCaption:
		m.visible = append(m.visible, update.Caption)
		if len(m.visible) > maxVisibleCaptions {
			m.visible = m.visible[len(m.visible)-maxVisibleCaptions:]
		}

	case UpdateState:
		m.stateMsg = update.Message

	case UpdateError:
		m.state = StateError
		m.err = update.Error
	}
}

func (m *CallModel) View() string {
	var b strings.Builder

	header := HeaderStyle.Render(fmt.Sprintf("%s BabelTalk - %s", IconCall, m.roomID))
	b.WriteString(header + "\n\n")

	switch m.state {
	case StateConnecting:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.stateMsg))

	case StateWaitingForPeer:
		b.WriteString(m.viewWaiting())

	case StateInCall, StatePeerLeft:
		b.WriteString(m.viewCall())

	case StateEnded:
		b.WriteString(fmt.Sprintf("%s Call ended", IconBye))

	case StateError:
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s Call failed: %v", IconError, m.err)))
	}

	if m.notice != "" {
		b.WriteString("\n\n" + m.notice)
	}
	b.WriteString("\n" + m.viewFooter())
	return ContainerStyle.Render(b.String())
}

func (m *CallModel) viewWaiting() string {
	var b strings.Builder
	if m.roomLink != "" {
		b.WriteString(NewRoomInfo(m.roomID, m.roomLink).View())
		b.WriteString("\n\n")
	}
	b.WriteString(fmt.Sprintf("%s Waiting for your peer to join...", m.spinner.View()))
	return b.String()
}

func (m *CallModel) viewCall() string {
	var b strings.Builder

	status := SuccessStyle.Render(fmt.Sprintf("%s In call", IconPeer))
	if m.state == StatePeerLeft {
		status = WarningStyle.Render(fmt.Sprintf("%s %s", IconWarning, m.stateMsg))
	}
	b.WriteString(status + "\n\n")

	mic := IconMicOn
	if !m.audioOn {
		mic = IconMicOff
	}
	cam := IconCamOn
	if !m.videoOn {
		cam = IconCamOff
	}
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%s mic  %s camera", mic, cam)) + "\n\n")

	b.WriteString(CaptionBoxStyle.Width(max(40, m.width-8)).Render(m.viewCaptions()))
	return b.String()
}

func (m *CallModel) viewCaptions() string {
	if len(m.visible) == 0 {
		return MutedStyle.Render(fmt.Sprintf("%s Captions will appear here", IconCaption))
	}

	var b strings.Builder
	for i, ev := range m.visible {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := SpeakerRemoteStyle
		if ev.Speaker == m.displayName || ev.Speaker == "You" {
			speaker = SpeakerYouStyle
		}
		b.WriteString(fmt.Sprintf("%s %s", speaker.Render(ev.Speaker+":"), ev.Text))
		if ev.Translation != "" {
			b.WriteString("\n   " + TranslationStyle.Render(fmt.Sprintf("%s %s", IconGlobe, ev.Translation)))
		}
	}
	return b.String()
}

func (m *CallModel) viewFooter() string {
	return FooterStyle.Render("m: mute • v: camera • s: save transcript • q: hang up")
}
