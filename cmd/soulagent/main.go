package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var policyPath string

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "soulagent",
		Short:         "Autonomous browser-automation agent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&policyPath, "policy-file", "", "path to a policy YAML file (File layer of the policy cascade)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newAuditCmd())
	return root
}
