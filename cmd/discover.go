package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/discovery"
	"github.com/BioHazard786/liteshare/internal/ui"
)

var flagBrowseFor time.Duration

var discoverCmd = &cobra.Command{
	Use:     "discover",
	Aliases: []string{"d"},
	Short:   "Find relays advertised on the local network",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagBrowseFor)
		defer cancel()

		stop := ui.RunConnectionSpinner("Looking for relays...")
		relays, err := discovery.Browse(ctx, nil)
		stop()
		if err != nil {
			return err
		}

		fmt.Println()
		ui.RenderRelayTable(relays)
		if len(relays) > 0 {
			fmt.Println()
			ui.PrintInfof("Connect with: liteshare share --relay %s <room-id>", relays[0].URL())
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&flagBrowseFor, "timeout", discovery.DefaultBrowse, "how long to browse")
	rootCmd.AddCommand(discoverCmd)
}
