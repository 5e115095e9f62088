package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imfiit/arena/cmd/arena-cli/internal/topics"
	"github.com/imfiit/arena/internal/topicmgr"
)

var (
	listOutputFormat string
	listModuleFilter string
	listScopeFilter  string
)

// topicsListCmd represents the topics list command
var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered topics",
	Long: `List every topic declared by the server, optionally filtered by module or
scope.

Examples:
  arena-cli topics list                       # all topics as a table
  arena-cli topics list --module arena        # only the arena module
  arena-cli topics list --scope framework     # websocket and presence plumbing
  arena-cli topics list --format json`,
	Args: cobra.NoArgs,
	RunE: topicsListHandler,
}

func topicsListHandler(cmd *cobra.Command, args []string) error {
	manager := topicmgr.Default()
	list := manager.List()
	if listModuleFilter != "" {
		list = manager.ListByModule(listModuleFilter)
	}
	if listScopeFilter != "" {
		scope := parseScope(listScopeFilter)
		if scope == "" {
			return fmt.Errorf("invalid scope %q, valid scopes: framework, module", listScopeFilter)
		}
		filtered := list[:0]
		for _, t := range list {
			if t.Scope() == scope {
				filtered = append(filtered, t)
			}
		}
		list = filtered
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		var filters []string
		if listModuleFilter != "" {
			filters = append(filters, fmt.Sprintf("module '%s'", listModuleFilter))
		}
		if listScopeFilter != "" {
			filters = append(filters, fmt.Sprintf("scope '%s'", listScopeFilter))
		}
		message := "No topics found"
		if len(filters) > 0 {
			message += " matching: " + strings.Join(filters, ", ")
		}
		fmt.Fprintln(out, message)
		return nil
	}

	switch listOutputFormat {
	case "json":
		return topics.DisplayTopicsJSON(out, list)
	case "table":
		return topics.DisplayTopicsTable(out, list)
	default:
		return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", listOutputFormat)
	}
}

// parseScope converts string scope to topicmgr.TopicScope
func parseScope(scopeStr string) topicmgr.TopicScope {
	switch strings.ToLower(scopeStr) {
	case "framework":
		return topicmgr.ScopeFramework
	case "module":
		return topicmgr.ScopeModule
	default:
		return ""
	}
}

func init() {
	topicsCmd.AddCommand(topicsListCmd)

	topicsListCmd.Flags().StringVarP(&listOutputFormat, "format", "f", "table", "Output format (table, json)")
	topicsListCmd.Flags().StringVarP(&listModuleFilter, "module", "m", "", "Filter topics by module name")
	topicsListCmd.Flags().StringVarP(&listScopeFilter, "scope", "s", "", "Filter topics by scope (framework, module)")
}
