package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/cubetest"
	"hermannm.dev/cube/db"
)

func TestParseSchemaDefaults(t *testing.T) {
	schema, err := db.ParseSchema([]byte(`
spaces:
  - name: sales
    measures:
      - name: amount
      - name: price
        aggregation: AVERAGE
    dimensions:
      - name: geo
        levels:
          - name: region
            column: region_code
`))
	require.NoError(t, err)

	space, err := schema.Space("sales")
	require.NoError(t, err)
	assert.Equal(t, "sales", space.Table)
	assert.Equal(t, "sales", space.Label)

	amount, err := space.Measure("amount")
	require.NoError(t, err)
	assert.Equal(t, db.AggregationSum, amount.Aggregation)
	assert.Equal(t, "amount", amount.Column)

	price, err := space.Measure("price")
	require.NoError(t, err)
	assert.Equal(t, db.AggregationAverage, price.Aggregation)

	levels, measures := space.Columns()
	assert.Equal(t, []string{"region_code"}, levels)
	assert.Equal(t, []string{"amount", "price"}, measures)
}

func TestParseSchemaInvalid(t *testing.T) {
	_, err := db.ParseSchema([]byte(`
spaces:
  - name: sales
    dimensions:
      - name: geo
`))
	assert.ErrorContains(t, err, "no levels")

	_, err = db.ParseSchema([]byte(`
spaces:
  - name: sales
    measures:
      - name: amount
        aggregation: MEDIAN
`))
	assert.Error(t, err)
}

func TestSchemaInfo(t *testing.T) {
	info := cubetest.Schema(t).Info()

	require.Len(t, info.Spaces, 2)
	assert.Equal(t, "Sales", info.Spaces[0].Label)
	assert.Equal(t, []cube.MeasureInfo{{Name: "amount", Label: "Amount"}, {Name: "count", Label: "Count"}}, info.Spaces[0].Measures)
	assert.Equal(t, cubetest.GeoDimension(), info.Spaces[0].Dimensions[1])
}

func TestPlan(t *testing.T) {
	schema := cubetest.Schema(t)

	plan, err := db.NewPlan(schema, cube.SelectionState{
		Measures: []string{"sales.amount", "stock.units", "sales.count"},
		Dimensions: []cube.DimensionValue{
			{Name: "geo", Path: cube.Path("EU", "FR", "Paris")},
			{Name: "time", Path: cube.ValuePath{}},
		},
		PivotOn: []int{1, 1},
		Filters: []cube.Filter{{Dimension: "time", Value: "2024", Depth: 1}},
	})
	require.NoError(t, err)

	// geo is clamped to the two levels shared by both spaces.
	assert.Equal(t, db.SlotPlan{Dimension: "geo", Label: "Geography", Depth: 2, Prefix: []string{"EU"}}, plan.Slots[0])
	assert.Equal(t, db.SlotPlan{Dimension: "time", Label: "Time", Depth: 1, Prefix: []string{}}, plan.Slots[1])
	assert.Equal(t, []int{1}, plan.PivotOn)

	groups := plan.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "sales", groups[0].Space.Name)
	assert.Len(t, groups[0].Measures, 2)
	assert.Equal(t, 2, groups[0].Measures[1].Index)

	sales, err := schema.Space("sales")
	require.NoError(t, err)
	filters, err := plan.LevelFilters(sales)
	require.NoError(t, err)
	assert.Equal(t, []db.LevelFilter{{Column: "region", Value: "EU"}, {Column: "year", Value: "2024"}}, filters)
}

func TestPlanErrors(t *testing.T) {
	schema := cubetest.Schema(t)

	for name, state := range map[string]cube.SelectionState{
		"no measures":        {},
		"unknown space":      {Measures: []string{"returns.amount"}},
		"unknown measure":    {Measures: []string{"sales.profit"}},
		"unshared dim":       {Measures: []string{"stock.units"}, Dimensions: []cube.DimensionValue{{Name: "product"}}},
		"filter too deep":    {Measures: []string{"sales.amount"}, Filters: []cube.Filter{{Dimension: "time", Value: "x", Depth: 3}}},
		"pivot out of range": {Measures: []string{"sales.amount"}, PivotOn: []int{0}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := db.NewPlan(schema, state)
			assert.Error(t, err)
		})
	}
}
