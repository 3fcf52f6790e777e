package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/ui"
	"github.com/BioHazard786/liteshare/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "liteshare",
	Short: "Low-bandwidth peer-to-peer screen sharing over WebRTC",
	Long: `LiteShare shares a screen between two peers over WebRTC, pairing them
through a small signaling relay. The sender adapts bitrate, frame rate and
resolution to the link, and lite mode keeps the stream usable on very slow
connections.`,
	Version: version.Version,
}

// Execute runs the root command. Interrupts cancel the command's context so
// sessions hang up cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
