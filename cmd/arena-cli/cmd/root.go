package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena-cli",
	Short: "Arena developer tools",
	Long: `arena-cli inspects the arena server without starting it.

Available commands:
  topics      Explore the message bus topics
  simulate    Play an offline battle with a fixed seed

Use "arena-cli [command] --help" for more information about a specific command.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
