package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/format"
	"github.com/edgarlab/secrnn/parser"
	"github.com/edgarlab/secrnn/progress"
	"github.com/edgarlab/secrnn/sweep"
)

func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Plan and launch fine-tuning sweeps",
	}

	planCmd := &cobra.Command{
		Use:   "plan SWEEPFILE",
		Short: "Show the configurations a Sweepfile expands to",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepPlanHandler,
	}

	runCmd := &cobra.Command{
		Use:   "run SWEEPFILE",
		Short: "Launch every configuration against the fine-tuning entry point",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepRunHandler,
	}
	runCmd.Flags().String("output", "", "Directory run outputs are written under (default SECRNN_RUNS)")

	scriptsCmd := &cobra.Command{
		Use:   "scripts SWEEPFILE",
		Short: "Write one sbatch job script per configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepScriptsHandler,
	}
	scriptsCmd.Flags().String("dir", "scripts", "Directory job scripts are written to")
	scriptsCmd.Flags().String("partition", "", "Cluster partition to request")
	scriptsCmd.Flags().String("time", "", "Job time limit")

	resultsCmd := &cobra.Command{
		Use:   "results [k]",
		Short: "Rank finished runs by eval loss",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepResultsHandler,
	}

	cmd.AddCommand(planCmd, runCmd, scriptsCmd, resultsCmd)

	return cmd
}

func expandSweepfile(p string) ([]api.Experiment, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := parser.ParseFile(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}

	s, err := sweep.FromFile(parsed)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}

	return s.Expand()
}

func sweepPlanHandler(cmd *cobra.Command, args []string) error {
	exps, err := expandSweepfile(args[0])
	if err != nil {
		return err
	}

	writePlanTable(os.Stdout, exps)
	return nil
}

func writePlanTable(out io.Writer, exps []api.Experiment) {
	var data [][]string
	for i, e := range exps {
		data = append(data, []string{strconv.Itoa(i + 1), e.Name(), string(e.LossMode)})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "NAME", "LOSS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(out, "\n%d configurations\n", len(exps))
}

func sweepRunHandler(cmd *cobra.Command, args []string) error {
	exps, err := expandSweepfile(args[0])
	if err != nil {
		return err
	}

	launcher := sweep.NewLauncher()
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if output != "" {
		launcher.OutputDir = output
	}

	slog.Info("launching sweep", "configurations", len(exps), "output", launcher.OutputDir)

	p := progress.NewProgress(os.Stderr)
	defer p.Stop()

	bar := progress.NewStepBar("configurations", len(exps))
	p.Add("sweep", bar)
	launcher.Progress = func(completed, _ int) {
		bar.Set(completed)
	}

	results, runErr := launcher.Run(cmd.Context(), exps)

	p.StopAndClear()

	session, err := sweep.NewSession(results)
	if err != nil {
		return err
	}

	sessionPath, err := session.Save(launcher.OutputDir)
	if err != nil {
		return err
	}
	slog.Info("sweep session saved", "path", sessionPath)

	writeSessionTable(os.Stdout, results)

	return runErr
}

func writeSessionTable(out io.Writer, results []sweep.Result) {
	var data [][]string
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}

		data = append(data, []string{r.Name, format.ExactDuration(r.Duration), status})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"NAME", "DURATION", "STATUS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func sweepResultsHandler(cmd *cobra.Command, args []string) error {
	k := 10
	if len(args) == 1 {
		var err error
		if k, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid count %q", args[0])
		}
	}

	top, err := sweep.TopK(envconfig.RunsDir(), k)
	if err != nil {
		return err
	}

	writeResultsTable(os.Stdout, top)
	return nil
}

func writeResultsTable(out io.Writer, summaries []api.RunSummary) {
	var data [][]string
	for i, s := range summaries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			s.Name,
			strconv.FormatFloat(s.EvalLoss, 'g', 6, 64),
			strconv.Itoa(s.Epochs),
			format.HumanTime(s.ModifiedAt, "Never"),
		})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "NAME", "EVAL LOSS", "EPOCHS", "MODIFIED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

func sweepScriptsHandler(cmd *cobra.Command, args []string) error {
	exps, err := expandSweepfile(args[0])
	if err != nil {
		return err
	}

	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	partition, err := cmd.Flags().GetString("partition")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetString("time")
	if err != nil {
		return err
	}

	paths, err := sweep.WriteScripts(dir, exps, sweep.ScriptOptions{
		Partition: partition,
		TimeLimit: limit,
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Println(p)
	}

	return nil
}
