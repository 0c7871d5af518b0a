package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/explorer"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// printCurrent waits for the result of the current selection and prints it in the format given by
// the --format flag.
func printCurrent(ctx context.Context, cmd *cobra.Command, cubeExplorer *explorer.Explorer) error {
	output := cmd.OutOrStdout()

	snapshot, err := cubeExplorer.Flush(ctx)
	if err != nil {
		return err
	}
	if snapshot.Err != nil {
		if !snapshot.HasResult {
			return snapshot.Err
		}
		log.ErrorCause(snapshot.Err, "failed to query selection, showing previous result")
	}

	switch formatFlag {
	case "csv":
		return cubeExplorer.Export(ctx, cube.FormatCSV, output)
	case "json":
		encoder := json.NewEncoder(output)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(struct {
			State  string      `json:"state"`
			Result cube.Result `json:"result"`
		}{snapshot.Encoded, snapshot.Result}); err != nil {
			return wrap.Error(err, "failed to write JSON output")
		}
		return nil
	case "table":
		return printTable(output, snapshot)
	default:
		return fmt.Errorf("unknown output format '%s'", formatFlag)
	}
}

func printTable(output io.Writer, snapshot explorer.Snapshot) error {
	writer := tabwriter.NewWriter(output, 0, 4, 2, ' ', tabwriter.AlignRight)

	for _, column := range snapshot.Result.Columns {
		if column.Parent != "" {
			fmt.Fprintf(writer, "%s / %s\t", column.Parent, column.Label)
		} else {
			fmt.Fprintf(writer, "%s\t", column.Label)
		}
	}
	fmt.Fprintln(writer)

	for _, row := range snapshot.Result.Rows {
		for _, key := range row.Keys {
			fmt.Fprintf(writer, "%s\t", cube.Path(key...))
		}
		for _, value := range row.Values {
			fmt.Fprintf(writer, "%s\t", formatNumber(value))
		}
		fmt.Fprintln(writer)
	}

	if len(snapshot.Result.Totals) > 0 {
		dimensionCount := len(snapshot.Result.Columns) - len(snapshot.Result.Totals)
		for i := range dimensionCount {
			if i == 0 {
				fmt.Fprint(writer, "Total\t")
			} else {
				fmt.Fprint(writer, "\t")
			}
		}
		for _, total := range snapshot.Result.Totals {
			fmt.Fprintf(writer, "%s\t", formatNumber(total))
		}
		fmt.Fprintln(writer)
	}

	if err := writer.Flush(); err != nil {
		return wrap.Error(err, "failed to write result table")
	}

	_, err := fmt.Fprintf(output, "\nstate: %s\n", snapshot.Encoded)
	return err
}

func printMatches(output io.Writer, matches []cube.SearchMatch) error {
	writer := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "#\tValue\tDepth\t")
	for i, match := range matches {
		fmt.Fprintf(writer, "%d\t%s\t%d\t\n", i+1, match.Value, match.Depth)
	}
	return writer.Flush()
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
