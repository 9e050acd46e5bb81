package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/edgarlab/secrnn/convert"
	"github.com/edgarlab/secrnn/format"
)

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show CHECKPOINT",
		Short: "Show the tensors inside a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  showHandler,
	}
	cmd.Flags().BoolP("verbose", "v", false, "Show per-gate statistics for packed LSTM tensors")

	return cmd
}

func showHandler(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	fi, err := os.Stat(args[0])
	if err != nil {
		return err
	}

	var ts []convert.Tensor
	if fi.IsDir() {
		ts, err = convert.ParseDir(args[0])
	} else {
		ts, err = convert.ParseFile(args[0])
	}
	if err != nil {
		return err
	}

	return writeTensorTable(os.Stdout, ts, verbose)
}

func writeTensorTable(out io.Writer, ts []convert.Tensor, verbose bool) error {
	var data [][]string
	var total uint64
	for _, t := range ts {
		n := uint64(1)
		for _, d := range t.Shape() {
			n *= d
		}
		total += n

		data = append(data, []string{t.Name(), shapeString(t.Shape()), strconv.FormatUint(n, 10)})
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"TENSOR", "SHAPE", "PARAMETERS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(out, "\n%s parameters (%d)\n", format.HumanNumber(total), total)

	if verbose {
		return writeGateTable(out, ts)
	}

	return nil
}

func shapeString(shape []uint64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.FormatUint(d, 10)
	}

	return strings.Join(parts, " x ")
}

// writeGateTable breaks packed LSTM parameters into their gate blocks and
// summarizes each block's value distribution.
func writeGateTable(out io.Writer, ts []convert.Tensor) error {
	var data [][]string
	for _, t := range ts {
		if !strings.HasPrefix(t.Name(), "lstm.") {
			continue
		}

		values, err := t.Floats()
		if err != nil {
			return err
		}

		gates, err := convert.SplitGates(t.Name(), t.Shape(), values)
		if err != nil {
			return err
		}

		for _, g := range gates {
			data = append(data, []string{
				t.Name(),
				g.Name,
				strconv.FormatFloat(floats.Min(g.Data), 'g', 4, 64),
				strconv.FormatFloat(stat.Mean(g.Data, nil), 'g', 4, 64),
				strconv.FormatFloat(floats.Max(g.Data), 'g', 4, 64),
			})
		}
	}

	if len(data) == 0 {
		return nil
	}

	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"TENSOR", "GATE", "MIN", "MEAN", "MAX"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
