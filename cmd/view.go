package cmd

import (
	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/ui"
)

var (
	viewFlags  clientFlags
	viewRecord string
)

var viewCmd = &cobra.Command{
	Use:     "view [room-id]",
	Aliases: []string{"v"},
	Short:   "Join a room and watch the other peer's screen",
	Long: `Join a room on the relay and receive the screen shared by the other peer.
Press s in the dashboard to share your own screen back.

Examples:
  liteshare view demo-room
  liteshare view demo-room --record call.ivf`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := viewFlags.load(roomArg(args))
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), cfg, sessionOptions{
			title:  ui.IconViewer + " LiteShare",
			record: viewRecord,
			rejoin: viewFlags.rejoin,
		})
	},
}

func init() {
	viewFlags.bind(viewCmd)
	viewCmd.Flags().StringVar(&viewRecord, "record", "", "write the received video to an IVF file")
	rootCmd.AddCommand(viewCmd)
}
