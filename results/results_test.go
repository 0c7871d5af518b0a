package results_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/cubetest"
	"hermannm.dev/cube/results"
)

func geoState(path ...string) cube.SelectionState {
	value := cube.ParsePath("")
	if len(path) > 0 {
		value = append(cube.Path(path...), cube.Unset)
	}
	return cube.SelectionState{
		Measures:   []string{"sales.amount"},
		Dimensions: []cube.DimensionValue{{Name: "geo", Path: value}},
		SkipZero:   true,
	}
}

func TestResultsAreCached(t *testing.T) {
	ctx := context.Background()
	backend := cubetest.NewBackend(t)
	cache := results.NewCache(backend, 10)

	first, cached, err := cache.GetOrFetch(ctx, geoState("EU"))
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := cache.GetOrFetch(ctx, geoState("EU"))
	require.NoError(t, err)
	assert.True(t, cached)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.Calls("dice"))
	assert.Equal(t, 1, cache.Len())
}

func TestResultCacheEvictsOldestInsert(t *testing.T) {
	ctx := context.Background()
	backend := cubetest.NewBackend(t)
	cache := results.NewCache(backend, 10)

	states := make([]cube.SelectionState, 11)
	for i := range states {
		states[i] = geoState(fmt.Sprintf("region%d", i))
	}

	for i, state := range states {
		_, _, err := cache.GetOrFetch(ctx, state)
		require.NoError(t, err)

		// Hits on the first state must not save it from eviction.
		if i > 0 && i < 10 {
			_, cached, err := cache.GetOrFetch(ctx, states[0])
			require.NoError(t, err)
			assert.True(t, cached)
		}
	}

	assert.Equal(t, 10, cache.Len())
	first, err := states[0].Encode()
	require.NoError(t, err)
	assert.NotContains(t, cache.Keys(), first)

	_, cached, err := cache.GetOrFetch(ctx, states[0])
	require.NoError(t, err)
	assert.False(t, cached)
}

func TestServerErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	backend := cubetest.NewBackend(t)
	cache := results.NewCache(backend, 10)

	backend.FailDice("unknown measure")
	_, _, err := cache.GetOrFetch(ctx, geoState())
	require.Error(t, err)
	assert.True(t, cube.IsServerError(err))
	assert.Equal(t, 0, cache.Len())

	backend.FailDice("")
	_, cached, err := cache.GetOrFetch(ctx, geoState())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, backend.Calls("dice"))
}

func TestExportBypassesCache(t *testing.T) {
	ctx := context.Background()
	backend := cubetest.NewBackend(t)
	cache := results.NewCache(backend, 10)

	state := geoState()
	_, _, err := cache.GetOrFetch(ctx, state)
	require.NoError(t, err)

	var output bytes.Buffer
	require.NoError(t, cache.Export(ctx, state, cube.FormatCSV, &output))
	require.NoError(t, cache.Export(ctx, state, cube.FormatCSV, &output))

	assert.Equal(t, 2, backend.Calls("export"))
	assert.Equal(t, 1, cache.Len())
	assert.Contains(t, output.String(), "EU")
}
