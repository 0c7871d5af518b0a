package clickhouse

import (
	"fmt"
	"strconv"
	"strings"

	"hermannm.dev/cube/db"
)

type QueryBuilder struct {
	strings.Builder
	args []any
}

func (builder *QueryBuilder) WriteInt(i int) {
	builder.WriteString(strconv.Itoa(i))
}

// Must only be called after calling ValidateIdentifier/ValidateIdentifiers on the given identifier.
func (builder *QueryBuilder) WriteIdentifier(identifier string) {
	builder.WriteRune('`')
	builder.WriteString(identifier)
	builder.WriteRune('`')
}

// WriteParameter writes a positional bind placeholder, and stores the value to pass with it.
func (builder *QueryBuilder) WriteParameter(value any) {
	builder.WriteRune('?')
	builder.args = append(builder.args, value)
}

func (builder *QueryBuilder) Args() []any {
	return builder.args
}

func (builder *QueryBuilder) WriteAggregation(measure db.MeasureSchema) error {
	function, ok := clickhouseAggregations.GetName(measure.Aggregation)
	if !ok {
		return fmt.Errorf("invalid aggregation '%v' for measure '%s'", measure.Aggregation, measure.Name)
	}

	// Aggregations over only NULLs give NULL, which is 0 in the cube
	builder.WriteString("coalesce(toFloat64(")
	builder.WriteString(function)
	builder.WriteRune('(')
	builder.WriteIdentifier(measure.Column)
	builder.WriteString(")), 0)")
	return nil
}

// WriteWhere writes a WHERE clause restricting every column to its value, if there are any filters.
func (builder *QueryBuilder) WriteWhere(filters []db.LevelFilter) {
	for i, filter := range filters {
		if i == 0 {
			builder.WriteString(" WHERE ")
		} else {
			builder.WriteString(" AND ")
		}
		builder.WriteIdentifier(filter.Column)
		builder.WriteString(" = ")
		builder.WriteParameter(filter.Value)
	}
}

func ValidateIdentifier(identifier string) error {
	if strings.ContainsRune(identifier, '`') {
		return fmt.Errorf("'%s' contains `, which is incompatible with database", identifier)
	}

	return nil
}

func ValidateIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if err := ValidateIdentifier(identifier); err != nil {
			return err
		}
	}

	return nil
}
