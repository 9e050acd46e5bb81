package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/runs"
)

func NewPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune [run]",
		Short: "Remove checkpoints past the retention window",
		Args:  cobra.MaximumNArgs(1),
		RunE:  pruneHandler,
	}
	cmd.Flags().Int("keep", 0, "Checkpoints to retain per run (default the run's own retention setting)")

	return cmd
}

func pruneHandler(cmd *cobra.Command, args []string) error {
	keep, err := cmd.Flags().GetInt("keep")
	if err != nil {
		return err
	}

	root := envconfig.RunsDir()

	names := args
	if len(names) == 0 {
		summaries, err := runs.List(root)
		if err != nil {
			return err
		}

		for _, s := range summaries {
			names = append(names, s.Name)
		}
	}

	for _, name := range names {
		removed, err := runs.Prune(root, name, retention(root, name, keep))
		if err != nil {
			return err
		}

		if len(removed) > 0 {
			fmt.Printf("%s: pruned %d checkpoints\n", name, len(removed))
		}
	}

	return nil
}

// retention picks the window: the explicit flag, then the run's own
// manifest, then the environment default.
func retention(root, name string, flag int) int {
	if flag > 0 {
		return flag
	}

	if e, err := runs.ReadManifest(filepath.Join(root, name)); err == nil && e.MaxSaveCheckpoints > 0 {
		return e.MaxSaveCheckpoints
	}

	return int(envconfig.KeepCheckpoints())
}
