package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewProgressCommand creates the progress command group.
func NewProgressCommand() *cobra.Command {
	sf := &stateFlags{}

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show or discard progress of an interrupted run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return progressShow(cmd, sf)
		},
	}

	sf.register(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the progress file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return progressClear(cmd, sf)
		},
	})

	return cmd
}

func progressShow(cmd *cobra.Command, sf *stateFlags) error {
	env, err := sf.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	ledger, err := env.settings.Ledger(env.root, env.providers.Logger)
	if err != nil {
		return err
	}

	state, found, err := ledger.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if !found {
		fmt.Fprintln(out, "No run in progress")

		return nil
	}

	fmt.Fprintf(out, "Progress file: %s\n", ledger.Path())
	fmt.Fprintf(out, "Batches:       %d/%d completed (%.1f%%)\n",
		len(state.CompletedBatchIndices), state.TotalBatches, state.Percentage())
	fmt.Fprintf(out, "Remaining:     %v\n", state.Remaining())
	fmt.Fprintf(out, "Results:       %d files\n", len(state.Results))

	return nil
}

func progressClear(cmd *cobra.Command, sf *stateFlags) error {
	env, err := sf.load(cmd)
	if err != nil {
		return err
	}
	defer env.close()

	err = clearProgress(env)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Progress cleared")

	return nil
}
