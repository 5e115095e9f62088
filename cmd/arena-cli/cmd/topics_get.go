package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imfiit/arena/cmd/arena-cli/internal/topics"
	"github.com/imfiit/arena/internal/topicmgr"
)

var getOutputFormat string

// topicsGetCmd represents the topics get command
var topicsGetCmd = &cobra.Command{
	Use:   "get <topic-name>",
	Short: "Show details about a specific topic",
	Long: `Show the scope, module, description and payload fields of one topic.

Examples:
  arena-cli topics get arena.profile.delta
  arena-cli topics get ws.data.direct --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, found := topicmgr.Default().Get(args[0])
		if !found {
			return fmt.Errorf("topic '%s' not found, use 'arena-cli topics list' to see all topics", args[0])
		}
		return topics.DisplayTopicDetails(cmd.OutOrStdout(), topic, getOutputFormat)
	},
}

func init() {
	topicsCmd.AddCommand(topicsGetCmd)

	topicsGetCmd.Flags().StringVarP(&getOutputFormat, "format", "f", "table", "Output format (table, json)")
}
