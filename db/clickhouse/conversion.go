package clickhouse

import (
	"hermannm.dev/cube/db"
	"hermannm.dev/enumnames"
)

// See https://clickhouse.com/docs/en/sql-reference/aggregate-functions/reference
var clickhouseAggregations = enumnames.NewMap(map[db.AggregationKind]string{
	db.AggregationSum:     "sum",
	db.AggregationAverage: "avg",
	db.AggregationMin:     "min",
	db.AggregationMax:     "max",
	db.AggregationCount:   "count",
})

// See https://clickhouse.com/docs/en/sql-reference/data-types
const (
	levelColumnType   = "String"
	measureColumnType = "Nullable(Float64)"
)
