package cmd

import (
	"github.com/spf13/cobra"
)

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Explore the arena message bus topics",
	Long: `The topics command lists and describes the topics the server publishes
and subscribes to. Topics are declared at package level, so no server needs
to be running.

Examples:
  # List all topics
  arena-cli topics list

  # List the arena module's topics as JSON
  arena-cli topics list --module arena --format json

  # Show one topic and its payload fields
  arena-cli topics get arena.battle.ended`,
}

func init() {
	rootCmd.AddCommand(topicsCmd)
}
