package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/relay"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/ui"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rendezvous relay",
	Long: `Run the relay that brokers calls: a signaling endpoint on /ws, a caption
endpoint on /captions and a health check on /health. Media never touches the
relay; it flows peer to peer.

Examples:
  babeltalk serve
  babeltalk serve --addr :9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	hub := relay.NewHub()
	go hub.Run()
	defer hub.Stop()

	captions := relay.NewCaptionHub()
	go captions.Run()
	defer captions.Stop()

	ui.PrintSuccessf("Relay listening on %s", flagAddr)
	if err := http.ListenAndServe(flagAddr, relay.NewMux(hub, captions)); err != nil {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}
