package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/cubetest"
	"hermannm.dev/cube/db"
)

func TestBuildDrillQuery(t *testing.T) {
	space, err := cubetest.Schema(t).Space("sales")
	require.NoError(t, err)
	geo, err := space.Dimension("geo")
	require.NoError(t, err)

	query, err := buildDrillQuery(space, geo, []string{"EU", "FR"})
	require.NoError(t, err)
	assert.Equal(
		t,
		"SELECT DISTINCT `city` AS value FROM `sales` WHERE `region` = ? AND `country` = ? ORDER BY value",
		query.String(),
	)
	assert.Equal(t, []any{"EU", "FR"}, query.Args())

	query, err = buildDrillQuery(space, geo, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT `region` AS value FROM `sales` ORDER BY value", query.String())
	assert.Empty(t, query.Args())

	_, err = buildDrillQuery(space, geo, []string{"EU", "FR", "Paris"})
	assert.Error(t, err)
}

func TestBuildDiceQuery(t *testing.T) {
	plan, err := db.NewPlan(cubetest.Schema(t), cube.SelectionState{
		Measures: []string{"sales.amount", "sales.count"},
		Dimensions: []cube.DimensionValue{
			{Name: "geo", Path: cube.ValuePath{cube.Value("EU"), cube.Unset}},
		},
		Filters:  []cube.Filter{{Dimension: "time", Value: "2024", Depth: 1}},
		SkipZero: true,
	})
	require.NoError(t, err)

	groups := plan.Groups()
	require.Len(t, groups, 1)

	query, keyCount, err := buildDiceQuery(plan, groups[0])
	require.NoError(t, err)
	assert.Equal(t, 2, keyCount)
	assert.Equal(
		t,
		"SELECT `region` AS key_0, `country` AS key_1, "+
			"coalesce(toFloat64(sum(`amount`)), 0), coalesce(toFloat64(sum(`sale_count`)), 0) "+
			"FROM `sales` WHERE `region` = ? AND `year` = ? "+
			"GROUP BY key_0, key_1 HAVING count() > 0",
		query.String(),
	)
	assert.Equal(t, []any{"EU", "2024"}, query.Args())
}

func TestBuildDiceQueryWithoutDimensions(t *testing.T) {
	plan, err := db.NewPlan(cubetest.Schema(t), cube.SelectionState{
		Measures: []string{"stock.units"},
	})
	require.NoError(t, err)

	query, keyCount, err := buildDiceQuery(plan, plan.Groups()[0])
	require.NoError(t, err)
	assert.Equal(t, 0, keyCount)
	assert.Equal(
		t,
		"SELECT coalesce(toFloat64(sum(`units`)), 0) FROM `stock` HAVING count() > 0",
		query.String(),
	)
}

func TestBuildCreateTableQuery(t *testing.T) {
	space, err := cubetest.Schema(t).Space("stock")
	require.NoError(t, err)

	query, err := buildCreateTableQuery(space)
	require.NoError(t, err)
	assert.Equal(
		t,
		"CREATE TABLE `stock` (`id` UUID, `region` String, `country` String, `year` String, "+
			"`quarter` String, `units` Nullable(Float64)) ENGINE = MergeTree() PRIMARY KEY (id)",
		query,
	)

	space.Table = "bad`table"
	_, err = buildCreateTableQuery(space)
	assert.Error(t, err)
}

func TestSplitKeys(t *testing.T) {
	slots := []db.SlotPlan{{Dimension: "geo", Depth: 2}, {Dimension: "time", Depth: 1}}

	assert.Equal(
		t,
		[][]string{{"EU", "FR"}, {"2023"}},
		splitKeys([]string{"EU", "FR", "2023"}, slots),
	)
}
