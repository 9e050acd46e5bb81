package cmd

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/edgarlab/secrnn/api"
	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/format"
	"github.com/edgarlab/secrnn/runs"
)

func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "runs [prefix]",
		Aliases: []string{"ls"},
		Short:   "List runs",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runsHandler,
	}
	cmd.Flags().Bool("remote", false, "List through the monitor server instead of the local filesystem")

	return cmd
}

func runsHandler(cmd *cobra.Command, args []string) error {
	remote, err := cmd.Flags().GetBool("remote")
	if err != nil {
		return err
	}

	var summaries []api.RunSummary
	if remote {
		if err := checkServerHeartbeat(cmd, args); err != nil {
			return err
		}

		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		resp, err := client.List(cmd.Context())
		if err != nil {
			return err
		}

		summaries = resp.Runs
	} else if summaries, err = runs.List(envconfig.RunsDir()); err != nil {
		return err
	}

	var prefix string
	if len(args) == 1 {
		prefix = args[0]
	}

	writeRunsTable(os.Stdout, summaries, prefix)
	return nil
}

func writeRunsTable(out io.Writer, summaries []api.RunSummary, prefix string) {
	var data [][]string
	for _, s := range summaries {
		if !strings.HasPrefix(strings.ToLower(s.Name), strings.ToLower(prefix)) {
			continue
		}

		var loss string
		if s.EvalLoss != 0 {
			loss = strconv.FormatFloat(s.EvalLoss, 'g', 6, 64)
		}

		var state string
		if s.Resumable {
			state = "resumable"
		}

		data = append(data, []string{s.Name, strconv.Itoa(s.Epochs), format.HumanBytes(s.Size), loss, state, format.HumanTime(s.ModifiedAt, "Never")})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"NAME", "EPOCHS", "SIZE", "EVAL LOSS", "STATE", "MODIFIED"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
