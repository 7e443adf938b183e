package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "marksync",
		Short:         "Leaderless bookmark sync agent and snapshot server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		newServeCmd(),
		newAgentCmd(),
		newSyncCmd(),
		newForcePushCmd(),
		newForcePullCmd(),
		newStatusCmd(),
		newResetCmd(),
		newImportCmd(),
		newTokenCmd(),
		newVersionCmd(),
	)
	return cmd
}
