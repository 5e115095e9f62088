// Package topics renders the bus topic catalogue for the CLI.
package topics

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	// Importing the application registers every topic it declares.
	_ "github.com/imfiit/arena/internal/app"
	"github.com/imfiit/arena/internal/topicmgr"
)

// TopicDisplay represents a topic for display purposes
type TopicDisplay struct {
	Name        string         `json:"name"`
	Scope       string         `json:"scope"`
	Module      string         `json:"module"`
	Description string         `json:"description"`
	Fields      []string       `json:"payloadFields,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func display(t topicmgr.Topic) TopicDisplay {
	fields, _ := t.Metadata()["payload_fields"].([]string)
	return TopicDisplay{
		Name:        t.Name(),
		Scope:       string(t.Scope()),
		Module:      t.Module(),
		Description: t.Description(),
		Fields:      fields,
		Metadata:    t.Metadata(),
	}
}

// DisplayTopicsTable writes topics as an aligned table.
func DisplayTopicsTable(w io.Writer, topics []topicmgr.Topic) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCOPE\tMODULE\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t-----\t------\t-----------")
	for _, t := range topics {
		module := t.Module()
		if module == "" {
			module = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name(), t.Scope(), module, truncateString(t.Description(), 60))
	}
	return tw.Flush()
}

// DisplayTopicsJSON writes topics as an indented JSON document.
func DisplayTopicsJSON(w io.Writer, topics []topicmgr.Topic) error {
	out := struct {
		Topics []TopicDisplay `json:"topics"`
		Count  int            `json:"count"`
	}{Topics: make([]TopicDisplay, len(topics)), Count: len(topics)}
	for i, t := range topics {
		out.Topics[i] = display(t)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// DisplayTopicDetails writes one topic in the given format.
func DisplayTopicDetails(w io.Writer, t topicmgr.Topic, format string) error {
	d := display(t)
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Fprintf(w, "Name:        %s\n", d.Name)
	fmt.Fprintf(w, "Scope:       %s\n", d.Scope)
	fmt.Fprintf(w, "Module:      %s\n", d.Module)
	fmt.Fprintf(w, "Description: %s\n", d.Description)
	if len(d.Fields) > 0 {
		fmt.Fprintf(w, "Payload:     %s\n", strings.Join(d.Fields, ", "))
	}
	if len(d.Metadata) > 0 {
		fmt.Fprintln(w, "Metadata:")
		keys := make([]string, 0, len(d.Metadata))
		for k := range d.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, d.Metadata[k])
		}
	}
	return nil
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
