package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brennhill/soulbrowser-agent/internal/audit"
	"github.com/brennhill/soulbrowser-agent/internal/util"
)

func newAuditCmd() *cobra.Command {
	var (
		taskID   string
		toolName string
		since    string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the dispatch audit trail (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			filter := audit.Filter{TaskID: taskID, ToolName: toolName, Limit: limit}
			if since != "" {
				ts := util.ParseTimestamp(since)
				if ts.IsZero() {
					return fmt.Errorf("invalid --since timestamp %q (want RFC3339)", since)
				}
				filter.Since = &ts
			}

			for _, entry := range app.Audit.Query(filter) {
				b, err := json.Marshal(entry)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "only entries for this task")
	cmd.Flags().StringVar(&toolName, "tool", "", "only entries for this tool")
	cmd.Flags().StringVar(&since, "since", "", "only entries at or after this RFC3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", 0, "max entries to print (0 uses the trail default)")
	return cmd
}
