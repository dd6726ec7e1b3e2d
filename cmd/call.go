package cmd

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/call"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/captions"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/config"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/roomname"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/signaling"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/ui"
)

var (
	flagRoom       string
	flagDomain     string
	flagInsecure   bool
	flagName       string
	flagLang       string
	flagTarget     string
	flagSTUN       string
	flagTURN       string
	flagTURNUser   string
	flagTURNPass   string
	flagRelay      bool
	flagTranscript string
)

var callCmd = &cobra.Command{
	Use:     "call",
	Aliases: []string{"c"},
	Short:   "Start or join a captioned call",
	Long: `Start a new call, or join an existing one by room ID.

Without --room a fresh room is created and its ID printed for your peer.

Examples:
  babeltalk call
  babeltalk call --room kitten-waffle-stardust-happy
  babeltalk call --lang es --to en
  babeltalk call --domain localhost:8080 --insecure`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall()
	},
}

func init() {
	callCmd.Flags().StringVarP(&flagRoom, "room", "r", "", "room ID to join (omit to create a new room)")
	callCmd.Flags().StringVar(&flagDomain, "domain", "", "relay server domain")
	callCmd.Flags().BoolVar(&flagInsecure, "insecure", false, "use ws:// instead of wss:// (local development)")
	callCmd.Flags().StringVarP(&flagName, "name", "n", "", "display name shown on your captions")
	callCmd.Flags().StringVar(&flagLang, "lang", "", "language you speak (BCP 47, e.g. es)")
	callCmd.Flags().StringVar(&flagTarget, "to", "", "language captions are translated into")
	callCmd.Flags().StringVar(&flagSTUN, "stun", "", "custom STUN server URL")
	callCmd.Flags().StringVar(&flagTURN, "turn", "", "custom TURN server URL")
	callCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	callCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	callCmd.Flags().BoolVar(&flagRelay, "relay", false, "force media through the TURN relay")
	callCmd.Flags().StringVarP(&flagTranscript, "transcript", "t", "", "write the transcript JSON to this file when the call ends")

	rootCmd.AddCommand(callCmd)
}

func runCall() error {
	cfg, err := config.Load(config.Options{
		Domain:         flagDomain,
		Insecure:       flagInsecure,
		STUNServer:     flagSTUN,
		TURNServer:     flagTURN,
		TURNUser:       flagTURNUser,
		TURNPass:       flagTURNPass,
		ForceRelay:     flagRelay,
		DisplayName:    flagName,
		Language:       flagLang,
		TargetLanguage: flagTarget,
	})
	if err != nil {
		return err
	}

	roomID := flagRoom
	created := roomID == ""
	if created {
		roomID = roomname.Generate()
	}

	stopSpinner := ui.RunConnectionSpinner("Setting up the call...")
	defer stopSpinner()

	pc, err := call.NewPeerConnection(cfg)
	if err != nil {
		return err
	}

	signals := signaling.NewTransport(cfg.SignalingURL(), roomID)
	captionCh := captions.NewTransport(cfg.CaptionsURL(), roomID)

	var ctrl *call.Controller
	view := ui.NewCallModel(roomID, cfg.RoomLink(roomID), cfg.DisplayName, ui.CallControls{
		ToggleAudio:    func(enabled bool) { ctrl.ToggleAudio(enabled) },
		ToggleVideo:    func(enabled bool) { ctrl.ToggleVideo(enabled) },
		SaveTranscript: func() (string, error) { return saveTranscript(ctrl, roomID) },
	})
	updates := view.GetUpdateChannel()

	notify := call.Notifications{
		OnConnected:    func() { pushUpdate(updates, ui.CallUpdate{Type: ui.UpdatePeerConnected}) },
		OnDisconnected: func() { pushUpdate(updates, ui.CallUpdate{Type: ui.UpdatePeerLeft}) },
		OnCaption: func(ev captions.Event) {
			pushUpdate(updates, ui.CallUpdate{Type: ui.UpdateCaption, Caption: ev})
		},
		OnError: func(err error) { pushUpdate(updates, ui.CallUpdate{Type: ui.UpdateError, Error: err}) },
	}

	ctrl = call.NewController(roomID, pc, signals, captionCh, call.NoCapture{}, notify)
	if err := ctrl.Start(); err != nil {
		return err
	}
	defer ctrl.End()
	stopSpinner()

	if created {
		pushUpdate(updates, ui.CallUpdate{Type: ui.UpdateWaitingForPeer})
	}

	start := time.Now()
	if _, err := tea.NewProgram(view, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	ctrl.End()

	return finishCall(ctrl, roomID, time.Since(start))
}

// pushUpdate never blocks: once the view exits, nobody drains the channel.
func pushUpdate(updates chan<- ui.CallUpdate, update ui.CallUpdate) {
	select {
	case updates <- update:
	default:
	}
}

// saveTranscript writes the transcript so far to --transcript, or to a
// timestamped file next to the binary when the flag is unset. Mid-call
// saves and the end-of-call export share this path.
func saveTranscript(ctrl *call.Controller, roomID string) (string, error) {
	path := flagTranscript
	if path == "" {
		path = fmt.Sprintf("babeltalk-%s-%s.json", roomID, time.Now().Format("20060102-150405"))
	}

	data, err := ctrl.Aggregator().Export()
	if err != nil {
		return "", fmt.Errorf("export transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

func finishCall(ctrl *call.Controller, roomID string, duration time.Duration) error {
	agg := ctrl.Aggregator()

	transcriptPath := ""
	if flagTranscript != "" {
		path, err := saveTranscript(ctrl, roomID)
		if err != nil {
			return err
		}
		transcriptPath = path
	}

	ui.RenderCallSummary(ui.CallSummary{
		RoomID:         roomID,
		Duration:       duration,
		Captions:       agg.Len(),
		Speakers:       len(agg.Speakers()),
		TranscriptPath: transcriptPath,
	}, agg.Events())

	return nil
}
