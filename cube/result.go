package cube

import (
	"hermannm.dev/enumnames"
)

// Result is an aggregated table, as returned by an AggregationFetcher.
type Result struct {
	Columns []Column  `json:"columns"`
	Rows    []Row     `json:"data"`
	Totals  []float64 `json:"totals"`
	// Set by the server when the query was understood but could not be answered.
	Error string `json:"error,omitempty"`
}

type Column struct {
	Label string     `json:"label"`
	Type  ColumnType `json:"type"`
	// Dimension name or qualified measure name.
	Name string `json:"name,omitempty"`
	// Header grouping pivoted measure columns under the pivot coordinate they belong to.
	Parent string `json:"parent,omitempty"`
}

// Row holds the coordinate value path of every non-pivoted dimension slot, followed by one value
// per measure column.
type Row struct {
	Keys   [][]string `json:"keys"`
	Values []float64  `json:"values"`
}

type ColumnType int8

const (
	ColumnDimension ColumnType = iota + 1
	ColumnMeasure
)

var columnTypeMap = enumnames.NewMap(map[ColumnType]string{
	ColumnDimension: "dimension",
	ColumnMeasure:   "measure",
})

func (columnType ColumnType) IsValid() bool {
	return columnTypeMap.ContainsEnumValue(columnType)
}

func (columnType ColumnType) String() string {
	return columnTypeMap.GetNameOrFallback(columnType, "INVALID_COLUMN_TYPE")
}

func (columnType ColumnType) MarshalJSON() ([]byte, error) {
	return columnTypeMap.MarshalToNameJSON(columnType)
}

func (columnType *ColumnType) UnmarshalJSON(bytes []byte) error {
	return columnTypeMap.UnmarshalFromNameJSON(bytes, columnType)
}

// Format is an export format, used as the extension of export requests.
type Format int8

const (
	FormatJSON Format = iota + 1
	FormatCSV
)

var formatMap = enumnames.NewMap(map[Format]string{
	FormatJSON: "json",
	FormatCSV:  "csv",
})

// ParseFormat maps a file extension to a Format.
func ParseFormat(extension string) (Format, bool) {
	for _, format := range []Format{FormatJSON, FormatCSV} {
		if format.String() == extension {
			return format, true
		}
	}
	return 0, false
}

func (format Format) IsValid() bool {
	return formatMap.ContainsEnumValue(format)
}

func (format Format) String() string {
	return formatMap.GetNameOrFallback(format, "INVALID_FORMAT")
}

func (format Format) MarshalJSON() ([]byte, error) {
	return formatMap.MarshalToNameJSON(format)
}

func (format *Format) UnmarshalJSON(bytes []byte) error {
	return formatMap.UnmarshalFromNameJSON(bytes, format)
}
