package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hermannm.dev/cube/csv"
	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

// ClickHouse recommends keeping batch inserts between 10,000 and 100,000 rows:
// https://clickhouse.com/docs/en/cloud/bestpractices/bulk-inserts
const BatchInsertSize = 10000

// DataSource yields raw table rows, e.g. from a CSV file.
type DataSource interface {
	ReadRow() (row []string, rowNumber int, done bool, err error)
}

// Record is one fact row of a space, keyed by column name.
type Record struct {
	Levels   map[string]string
	Measures map[string]float64
}

// RecordReader converts the rows of a DataSource to records of a space, locating columns by name
// in a header row.
type RecordReader struct {
	data           DataSource
	levelColumns   map[string]int
	measureColumns map[string]int
}

func NewRecordReader(space SpaceSchema, header []string, data DataSource) (*RecordReader, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.TrimSpace(name)] = i
	}

	reader := &RecordReader{
		data:           data,
		levelColumns:   make(map[string]int),
		measureColumns: make(map[string]int),
	}

	levelColumns, measureColumns := space.Columns()
	var missing []string
	for _, column := range levelColumns {
		position, ok := positions[column]
		if !ok {
			missing = append(missing, column)
		}
		reader.levelColumns[column] = position
	}
	for _, column := range measureColumns {
		position, ok := positions[column]
		if !ok {
			missing = append(missing, column)
		}
		reader.measureColumns[column] = position
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"data for space '%s' is missing columns: %s", space.Name, strings.Join(missing, ", "),
		)
	}
	return reader, nil
}

func (reader *RecordReader) Read() (record Record, rowNumber int, done bool, err error) {
	row, rowNumber, done, err := reader.data.ReadRow()
	if done || err != nil {
		return Record{}, rowNumber, done, err
	}

	record = Record{
		Levels:   make(map[string]string, len(reader.levelColumns)),
		Measures: make(map[string]float64, len(reader.measureColumns)),
	}

	for column, position := range reader.levelColumns {
		if position >= len(row) {
			return Record{}, rowNumber, false, fmt.Errorf("row %d has no value for '%s'", rowNumber, column)
		}
		record.Levels[column] = row[position]
	}

	for column, position := range reader.measureColumns {
		if position >= len(row) || strings.TrimSpace(row[position]) == "" {
			continue
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(row[position]), 64)
		if err != nil {
			return Record{}, rowNumber, false, wrap.Errorf(
				err, "invalid number in column '%s' of row %d", column, rowNumber,
			)
		}
		record.Measures[column] = value
	}

	return record, rowNumber, false, nil
}

// Dicer is implemented by every backend; Export builds on it.
type Dicer interface {
	Dice(ctx context.Context, state cube.SelectionState) (cube.Result, error)
}

// Export runs the full query for state and writes the result in the given format.
func Export(
	ctx context.Context,
	dicer Dicer,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	result, err := dicer.Dice(ctx, state)
	if err != nil {
		return err
	}
	if result.Error != "" {
		return &cube.ServerError{Message: result.Error}
	}

	switch format {
	case cube.FormatJSON:
		if err := json.NewEncoder(output).Encode(result); err != nil {
			return wrap.Error(err, "failed to write JSON export")
		}
		return nil
	case cube.FormatCSV:
		return csv.WriteResult(output, result)
	default:
		return fmt.Errorf("unsupported export format '%s'", format)
	}
}

// WithSearch combines a backend with a separate search index.
func WithSearch(backend cube.Backend, search cube.SearchFetcher) cube.Backend {
	return searchBackend{Backend: backend, search: search}
}

type searchBackend struct {
	cube.Backend
	search cube.SearchFetcher
}

func (backend searchBackend) Search(
	ctx context.Context,
	query cube.SearchQuery,
) ([]cube.SearchMatch, error) {
	return backend.search.Search(ctx, query)
}
