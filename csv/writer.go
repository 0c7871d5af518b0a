package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

// WriteResult writes an aggregation result as CSV: a header row, one row per result row, and a
// final totals row. Coordinate values are written as their full path ("EU/FR"), and pivoted
// measure columns are named after their group ("EU/FR | 2024 / Amount").
func WriteResult(output io.Writer, result cube.Result) error {
	writer := csv.NewWriter(output)

	header := make([]string, len(result.Columns))
	dimensionCount := 0
	for i, column := range result.Columns {
		header[i] = column.Label
		if column.Parent != "" {
			header[i] = column.Parent + " / " + column.Label
		}
		if column.Type == cube.ColumnDimension {
			dimensionCount++
		}
	}
	if err := writer.Write(header); err != nil {
		return wrap.Error(err, "failed to write CSV header")
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		record = record[:0]
		for _, key := range row.Keys {
			record = append(record, cube.Path(key...).String())
		}
		for _, value := range row.Values {
			record = append(record, formatValue(value))
		}
		if err := writer.Write(record); err != nil {
			return wrap.Error(err, "failed to write CSV row")
		}
	}

	if len(result.Totals) > 0 {
		record = record[:0]
		for i := range dimensionCount {
			if i == 0 {
				record = append(record, "Total")
			} else {
				record = append(record, "")
			}
		}
		for _, total := range result.Totals {
			record = append(record, formatValue(total))
		}
		if err := writer.Write(record); err != nil {
			return wrap.Error(err, "failed to write CSV totals")
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return wrap.Error(err, "failed to flush CSV output")
	}
	return nil
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
