package cube_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
)

var testInfo = cube.Info{
	Spaces: []cube.SpaceInfo{
		{
			Name:     "sales",
			Label:    "Sales",
			Measures: []cube.MeasureInfo{{Name: "amount", Label: "Amount"}},
			Dimensions: []cube.Dimension{
				{Name: "time", Label: "Time", Levels: []string{"year", "quarter", "month"}},
				{Name: "geo", Label: "Geography", Levels: []string{"region", "country", "city"}},
				{Name: "product", Label: "Product", Levels: []string{"category"}},
			},
		},
		{
			Name:     "stock",
			Label:    "Stock",
			Measures: []cube.MeasureInfo{{Name: "units", Label: "Units"}},
			Dimensions: []cube.Dimension{
				{Name: "geo", Label: "Geography", Levels: []string{"region", "country"}},
				{Name: "time", Label: "Time", Levels: []string{"year", "quarter", "month"}},
			},
		},
	},
}

func TestValidDimensionsIntersection(t *testing.T) {
	catalog := cube.NewCatalog(testInfo)

	amount, ok := catalog.Measure("sales.amount")
	require.True(t, ok)
	units, ok := catalog.Measure("stock.units")
	require.True(t, ok)

	valid := catalog.ValidDimensions([]cube.Measure{amount, units})
	require.Len(t, valid, 2)

	// Order follows the first measure's space.
	assert.Equal(t, "time", valid[0].Name)
	assert.Equal(t, 3, valid[0].Depth())

	// The shallower definition wins.
	assert.Equal(t, "geo", valid[1].Name)
	assert.Equal(t, []string{"region", "country"}, valid[1].Levels)
}

func TestValidDimensionsSingleSpace(t *testing.T) {
	catalog := cube.NewCatalog(testInfo)
	amount, _ := catalog.Measure("sales.amount")

	valid := catalog.ValidDimensions([]cube.Measure{amount})
	assert.Len(t, valid, 3)
	assert.Empty(t, catalog.ValidDimensions(nil))
}

func TestValidDimensionsDoesNotAliasCatalog(t *testing.T) {
	catalog := cube.NewCatalog(testInfo)
	amount, _ := catalog.Measure("sales.amount")

	valid := catalog.ValidDimensions([]cube.Measure{amount})
	valid[0].Levels[0] = "changed"

	assert.Equal(t, "year", catalog.Dimensions("sales")[0].Levels[0])
}

func TestCatalogMeasures(t *testing.T) {
	catalog := cube.NewCatalog(testInfo)

	measures := catalog.Measures()
	require.Len(t, measures, 2)
	assert.Equal(t, "sales.amount", measures[0].QualifiedName())
	assert.Equal(t, "Stock / Units", measures[1].FullName())

	_, ok := catalog.Measure("sales.missing")
	assert.False(t, ok)
}
