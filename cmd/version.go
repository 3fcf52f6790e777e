package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/liteshare/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the liteshare version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("liteshare %s (%s %s/%s)\n", version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
