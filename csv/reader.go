// Package csv reads fact tables from CSV files and writes aggregation results as CSV.
package csv

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"hermannm.dev/wrap"
)

// Reader reads the rows of a CSV file whose first row is a header. The field delimiter is deduced
// from the file's first rows.
type Reader struct {
	inner      *csv.Reader
	file       io.ReadSeeker
	header     []string
	currentRow int
}

const rowsToCheckForDelimiter = 20

func NewReader(csvFile io.ReadSeeker) (*Reader, error) {
	delimiter, err := DeduceFieldDelimiter(csvFile, rowsToCheckForDelimiter, DefaultDelimitersToCheck)
	if err != nil {
		return nil, err
	}

	reader := &Reader{inner: newInnerReader(csvFile, delimiter), file: csvFile}
	if err := reader.readHeaderRow(); err != nil {
		return nil, err
	}
	return reader, nil
}

// File is a Reader over an open file, which must be closed after use.
type File struct {
	*Reader
	file *os.File
}

func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to open CSV file '%s'", path)
	}

	reader, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, wrap.Errorf(err, "failed to read CSV file '%s'", path)
	}
	return &File{Reader: reader, file: file}, nil
}

func (file *File) Close() error {
	return file.file.Close()
}

func newInnerReader(csvFile io.ReadSeeker, delimiter rune) *csv.Reader {
	reader := csv.NewReader(csvFile)
	reader.ReuseRecord = true
	reader.Comma = delimiter
	reader.TrimLeadingSpace = true
	return reader
}

// Header returns the column names of the header row.
func (reader *Reader) Header() []string {
	return reader.header
}

// ReadRow returns the next data row. Row numbers count the header as row 1. The returned row is
// only valid until the next call.
func (reader *Reader) ReadRow() (row []string, rowNumber int, done bool, err error) {
	reader.currentRow++

	row, err = reader.inner.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, reader.currentRow, true, nil
		}
		return nil, reader.currentRow, false, wrap.Errorf(err, "failed to read CSV row %d", reader.currentRow)
	}

	return row, reader.currentRow, false, nil
}

func (reader *Reader) readHeaderRow() error {
	row, _, done, err := reader.ReadRow()
	if done {
		return errors.New("CSV file ended before header row")
	}
	if err != nil {
		return wrap.Error(err, "failed to read CSV header row")
	}

	reader.header = make([]string, len(row))
	for i, name := range row {
		reader.header[i] = strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))
	}
	return nil
}

// Rewind moves the reader back to the first data row.
func (reader *Reader) Rewind() error {
	if _, err := reader.file.Seek(0, io.SeekStart); err != nil {
		return wrap.Error(err, "failed to rewind CSV file")
	}

	reader.currentRow = 0
	reader.inner = newInnerReader(reader.file, reader.inner.Comma)
	return reader.readHeaderRow()
}
