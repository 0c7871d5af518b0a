package clickhouse

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

func (clickhouse ClickHouseDB) Drill(ctx context.Context, query cube.DrillQuery) ([]cube.Child, error) {
	space, err := clickhouse.schema.Space(query.Space)
	if err != nil {
		return nil, err
	}
	dimension, err := space.Dimension(query.Dimension)
	if err != nil {
		return nil, err
	}

	drillQuery, err := buildDrillQuery(space, dimension, query.Value)
	if err != nil {
		return nil, err
	}

	log.Debug("generated clickhouse query", slog.String("query", drillQuery.String()))

	rows, err := clickhouse.conn.Query(ctx, drillQuery.String(), drillQuery.Args()...)
	if err != nil {
		return nil, wrap.Error(err, "failed to execute drill query against ClickHouse")
	}
	defer rows.Close()

	var children []cube.Child
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, wrap.Error(err, "failed to scan drill result row")
		}
		children = append(children, cube.Child{Value: value, Label: value})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read drill result")
	}

	return children, nil
}

func buildDrillQuery(
	space db.SpaceSchema,
	dimension db.DimensionSchema,
	value []string,
) (*QueryBuilder, error) {
	columns, err := dimension.LevelColumns(len(value) + 1)
	if err != nil {
		return nil, err
	}

	filters := make([]db.LevelFilter, len(value))
	for i, segment := range value {
		filters[i] = db.LevelFilter{Column: columns[i], Value: segment}
	}

	var query QueryBuilder
	query.WriteString("SELECT DISTINCT ")
	query.WriteIdentifier(columns[len(columns)-1])
	query.WriteString(" AS value FROM ")
	query.WriteIdentifier(space.Table)
	query.WriteWhere(filters)
	query.WriteString(" ORDER BY value")
	return &query, nil
}

// Dice runs one grouped aggregation query per space in the selection, and assembles the results.
// Selections the schema cannot answer give a result with Error set.
func (clickhouse ClickHouseDB) Dice(ctx context.Context, state cube.SelectionState) (cube.Result, error) {
	plan, err := db.NewPlan(clickhouse.schema, state)
	if err != nil {
		return cube.Result{Error: err.Error()}, nil
	}

	slicesBySpace := make(map[string][]db.Slice)
	for _, group := range plan.Groups() {
		query, keyCount, err := buildDiceQuery(plan, group)
		if err != nil {
			return cube.Result{Error: err.Error()}, nil
		}

		log.Debug("generated clickhouse query", slog.String("query", query.String()))

		slices, err := clickhouse.runDiceQuery(ctx, query, plan, group, keyCount)
		if err != nil {
			return cube.Result{}, wrap.Errorf(err, "dice query failed for space '%s'", group.Space.Name)
		}
		slicesBySpace[group.Space.Name] = slices
	}

	return db.Assemble(plan, slicesBySpace), nil
}

func buildDiceQuery(plan db.Plan, group db.SpaceGroup) (query *QueryBuilder, keyCount int, err error) {
	groupColumns, err := plan.GroupColumns(group.Space)
	if err != nil {
		return nil, 0, err
	}
	filters, err := plan.LevelFilters(group.Space)
	if err != nil {
		return nil, 0, err
	}

	query = &QueryBuilder{}
	query.WriteString("SELECT ")

	var keyAliases []string
	for _, columns := range groupColumns {
		for _, column := range columns {
			alias := "key_" + strconv.Itoa(len(keyAliases))
			query.WriteIdentifier(column)
			query.WriteString(" AS ")
			query.WriteString(alias)
			query.WriteString(", ")
			keyAliases = append(keyAliases, alias)
		}
	}

	for i, measure := range group.Measures {
		if err := query.WriteAggregation(measure.Measure); err != nil {
			return nil, 0, err
		}
		if i != len(group.Measures)-1 {
			query.WriteString(", ")
		}
	}

	query.WriteString(" FROM ")
	query.WriteIdentifier(group.Space.Table)
	query.WriteWhere(filters)

	if len(keyAliases) > 0 {
		query.WriteString(" GROUP BY ")
		for i, alias := range keyAliases {
			if i != 0 {
				query.WriteString(", ")
			}
			query.WriteString(alias)
		}
	}

	// Without GROUP BY, an aggregation over no rows still gives one row
	query.WriteString(" HAVING count() > 0")

	return query, len(keyAliases), nil
}

func (clickhouse ClickHouseDB) runDiceQuery(
	ctx context.Context,
	query *QueryBuilder,
	plan db.Plan,
	group db.SpaceGroup,
	keyCount int,
) ([]db.Slice, error) {
	rows, err := clickhouse.conn.Query(ctx, query.String(), query.Args()...)
	if err != nil {
		return nil, wrap.Error(err, "failed to execute query against ClickHouse")
	}
	defer rows.Close()

	var slices []db.Slice
	for rows.Next() {
		keys := make([]string, keyCount)
		values := make([]float64, len(group.Measures))

		destinations := make([]any, 0, keyCount+len(values))
		for i := range keys {
			destinations = append(destinations, &keys[i])
		}
		for i := range values {
			destinations = append(destinations, &values[i])
		}

		if err := rows.Scan(destinations...); err != nil {
			return nil, wrap.Error(err, "failed to scan result row")
		}

		slices = append(slices, db.Slice{Keys: splitKeys(keys, plan.Slots), Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read query result")
	}

	return slices, nil
}

// splitKeys divides the flat key columns of a result row into one path per slot.
func splitKeys(keys []string, slots []db.SlotPlan) [][]string {
	split := make([][]string, len(slots))
	offset := 0
	for i, slot := range slots {
		split[i] = keys[offset : offset+slot.Depth]
		offset += slot.Depth
	}
	return split
}

func (clickhouse ClickHouseDB) Export(
	ctx context.Context,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	return db.Export(ctx, clickhouse, state, format, output)
}

// Search is served by the Elasticsearch coordinate index, see db.WithSearch.
func (clickhouse ClickHouseDB) Search(ctx context.Context, query cube.SearchQuery) ([]cube.SearchMatch, error) {
	return nil, cube.ErrSearchUnavailable
}
