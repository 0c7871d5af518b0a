package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
)

func TestParseFilter(t *testing.T) {
	filter, err := parseFilter("time=2024@1")
	require.NoError(t, err)
	assert.Equal(t, cube.Filter{Dimension: "time", Value: "2024", Depth: 1}, filter)

	filter, err = parseFilter("geo=Saint-Denis@Réunion@3")
	require.NoError(t, err)
	assert.Equal(t, cube.Filter{Dimension: "geo", Value: "Saint-Denis@Réunion", Depth: 3}, filter)

	for _, invalid := range []string{"time", "time=2024", "time=2024@first"} {
		_, err := parseFilter(invalid)
		assert.Error(t, err, invalid)
	}
}

func TestApplyFlags(t *testing.T) {
	t.Cleanup(func() {
		measureFlags, dimFlags, pivotFlags, filterFlags = nil, nil, nil, nil
	})

	require.NoError(t, exploreCmd.Flags().Parse([]string{
		"--measure", "sales.amount",
		"--dim", "geo=EU/*",
		"--dim", "time=",
		"--pivot", "1",
		"--filter", "product=Books@1",
		"--skip-zero=false",
	}))

	state := cube.SelectionState{Measures: []string{"stock.units"}, SkipZero: true}
	require.NoError(t, applyFlags(exploreCmd, &state))

	assert.Equal(t, cube.SelectionState{
		Measures: []string{"sales.amount"},
		Dimensions: []cube.DimensionValue{
			{Name: "geo", Path: cube.ValuePath{cube.Value("EU"), cube.Unset}},
			{Name: "time", Path: cube.ValuePath{cube.Unset}},
		},
		PivotOn:  []int{1},
		Filters:  []cube.Filter{{Dimension: "product", Value: "Books", Depth: 1}},
		SkipZero: false,
	}, state)
}
