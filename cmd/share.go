package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/ui"
)

var shareFlags clientFlags

var shareCmd = &cobra.Command{
	Use:     "share [room-id]",
	Aliases: []string{"s"},
	Short:   "Share your screen with the other peer in a room",
	Long: `Join a room on the relay and share the screen with whoever joins it.

Examples:
  liteshare share demo-room
  liteshare share demo-room --lite
  liteshare share --relay ws://192.168.1.20:8000/ws --token secret team-sync`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := shareFlags.load(roomArg(args))
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), cfg, sessionOptions{
			title:  ui.IconScreen + " LiteShare",
			share:  true,
			rejoin: shareFlags.rejoin,
		})
	},
}

func init() {
	shareFlags.bind(shareCmd)
	rootCmd.AddCommand(shareCmd)
}
