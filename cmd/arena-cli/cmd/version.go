package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "0.1.0" // set with -ldflags "-X github.com/imfiit/arena/cmd/arena-cli/cmd.version=..."

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of arena-cli",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "arena-cli v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
