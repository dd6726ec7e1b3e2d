package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Rishabh-hub-code/babel-stream-talk/internal/ui"
	"github.com/Rishabh-hub-code/babel-stream-talk/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "babeltalk",
	Short:   "Peer-to-peer video calls with live translated captions",
	Long:    `BabelTalk is a command-line tool for two-party audio/video calls over WebRTC. Media flows directly between peers; a lightweight relay only brokers the rendezvous. While you talk, live captions of both sides appear in your terminal, translated into your language, and the full transcript can be exported when the call ends.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
