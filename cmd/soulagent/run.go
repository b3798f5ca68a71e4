package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brennhill/soulbrowser-agent/internal/agent"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
)

func newRunCmd() *cobra.Command {
	var (
		prompt    string
		sessionID string
		pageID    string
		taskID    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute one agent task end to end (prompt -> plan -> flow -> result)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Runner.Run(cmd.Context(), agent.AgentRequest{
				TaskID: taskID,
				Prompt: prompt,
			}, flow.ExecRoute{SessionID: sessionID, PageID: pageID})
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "natural-language task prompt for the planner")
	cmd.Flags().StringVar(&sessionID, "session", "default", "browser session id to route actions to")
	cmd.Flags().StringVar(&pageID, "page", "default", "page id within the session")
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id carried on the agent request handed to the planner")
	return cmd
}
