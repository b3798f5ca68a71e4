package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect or override the live policy cascade",
	}
	cmd.AddCommand(newPolicyShowCmd())
	cmd.AddCommand(newPolicySetCmd())
	return cmd
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current policy snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			snap := app.Policy.Snapshot()
			b, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newPolicySetCmd() *cobra.Command {
	var ttl string
	cmd := &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Apply a runtime override to one policy path, optionally bounded by a TTL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Policy.ApplyOverride(args[0], parseOverrideValue(args[1]), ttl)
		},
	}
	cmd.Flags().StringVar(&ttl, "ttl", "", "duration string of at least 1m (e.g. 5m, 1h) after which the override reverts; empty means permanent")
	return cmd
}

// parseOverrideValue converts a CLI string argument into int/bool/string,
// the same loose typing the policy cascade's env layer applies.
func parseOverrideValue(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
