package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brennhill/soulbrowser-agent/internal/timeline"
)

func newReplayCmd() *cobra.Command {
	var (
		source         string
		actionID       string
		flowID         string
		taskID         string
		outPath        string
		maxPayloadByte int
		allowTail      bool
		asBundle       bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Fetch a timeline window and export it as bounded JSONL",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			if asBundle {
				bundle, err := app.Timeline.Replay(actionID)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(bundle, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			}

			plan := timeline.FetchPlan{
				Source:         timeline.SourceKind(source),
				ActionID:       actionID,
				FlowID:         flowID,
				TaskID:         taskID,
				AllowStateTail: allowTail,
			}
			envelopes, err := app.Timeline.Fetch(plan)
			if err != nil {
				return err
			}
			if outPath == "" {
				for _, e := range envelopes {
					fmt.Fprintf(cmd.OutOrStdout(), "%s seq=%d kind=%s\n", e.ActionID, e.Seq, e.Kind)
				}
				return nil
			}
			return timeline.ExportJSONL(envelopes, outPath, maxPayloadByte)
		},
	}
	cmd.Flags().StringVar(&source, "source", "action", "fetch source: action|flow|task|range")
	cmd.Flags().StringVar(&actionID, "action-id", "", "action id (source=action)")
	cmd.Flags().StringVar(&flowID, "flow-id", "", "flow id (source=flow)")
	cmd.Flags().StringVar(&taskID, "task-id", "", "task id (source=task)")
	cmd.Flags().StringVar(&outPath, "out", "", "JSONL export path; prints a summary to stdout if empty")
	cmd.Flags().IntVar(&maxPayloadByte, "max-payload-bytes", 1<<20, "per-envelope payload byte cap for export")
	cmd.Flags().BoolVar(&allowTail, "allow-state-tail", false, "merge in the last 256 state-center events")
	cmd.Flags().BoolVar(&asBundle, "bundle", false, "print a minimal replay bundle for --action-id instead of raw events")
	return cmd
}
