package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/eval"
	"github.com/edgarlab/secrnn/progress"
	"github.com/edgarlab/secrnn/runs"
)

func NewEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval RUN",
		Short: "Score a run's checkpoint and write its eval results",
		Args:  cobra.ExactArgs(1),
		RunE:  evalHandler,
	}
	cmd.Flags().Int("checkpoint", 0, "Checkpoint epoch to score (default the newest)")
	cmd.Flags().String("split", "val", "Exported split to score")

	return cmd
}

func evalHandler(cmd *cobra.Command, args []string) error {
	name := args[0]
	dir := filepath.Join(envconfig.RunsDir(), name)

	e, err := runs.ReadManifest(dir)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("run %q has no launch manifest", name)
	} else if err != nil {
		return err
	}

	epoch, err := cmd.Flags().GetInt("checkpoint")
	if err != nil {
		return err
	}
	if epoch == 0 {
		cps, err := runs.Checkpoints(dir)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			return fmt.Errorf("run %q has no checkpoints", name)
		}

		epoch = cps[len(cps)-1].Epoch
	}

	split, err := cmd.Flags().GetString("split")
	if err != nil {
		return err
	}

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	spinner := progress.NewSpinner(fmt.Sprintf("loading %s split", split))
	p.Add("load", spinner)

	// The bar replaces the spinner once the batch count is known.
	var bar *progress.Bar
	opts := eval.Options{
		Split: split,
		Progress: func(completed, total int) {
			if bar == nil {
				spinner.Stop()
				bar = progress.NewBar(fmt.Sprintf("scoring checkpoint-%d", epoch), int64(total), 0)
				p.Add("eval", bar)
			}

			bar.Set(int64(completed))
		},
	}

	metrics, err := eval.Evaluate(*e, runs.CheckpointDir(dir, epoch), opts)
	if err != nil {
		return err
	}

	p.StopAndClear()

	results := metrics.Results()
	if err := runs.WriteEvalResults(dir, name, results); err != nil {
		return err
	}

	writeMetricsTable(os.Stdout, results)
	return nil
}

func writeMetricsTable(out io.Writer, results map[string]string) {
	keys := maps.Keys(results)
	slices.Sort(keys)

	var data [][]string
	for _, key := range keys {
		data = append(data, []string{key, results[key]})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"METRIC", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
