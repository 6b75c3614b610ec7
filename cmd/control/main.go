// Command control runs the control process (C5's control flavour): it
// loads raid.yml, spins up the profile registry, container runtime,
// lifecycle supervisor and dispatch fabric, then drives the reasoning
// loop to completion for a single user-supplied goal.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "control",
		Short:         "Raid control process: orchestrates sub-agents to accomplish a goal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(buildRunCmd())
	cmd.AddCommand(buildProfilesCmd())
	return cmd
}

// exitCodeFor maps a run failure to spec.md's process exit codes. Any
// error not recognised as one of the typed run-time failures defaults
// to 1 (goal failed), matching "0 success; 1 goal failed" as the
// catch-all pairing.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case isConfigError(err):
		return 2
	case isBrokerError(err):
		return 3
	case isContainerRuntimeError(err):
		return 4
	default:
		return 1
	}
}

func init() {
	cobra.EnableCommandSorting = false
}
