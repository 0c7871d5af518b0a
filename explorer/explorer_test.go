package explorer_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/cubetest"
	"hermannm.dev/cube/explorer"
	"hermannm.dev/cube/history"
	"hermannm.dev/cube/selection"
)

func newExplorer(
	t *testing.T,
	debounce time.Duration,
) (*explorer.Explorer, *cubetest.Backend, *history.Memory) {
	t.Helper()

	backend := cubetest.NewBackend(t)
	hist := history.NewMemory()
	ex := explorer.New(backend, hist, explorer.Options{Debounce: debounce})
	t.Cleanup(ex.Close)

	require.NoError(t, ex.Load(context.Background()))
	return ex, backend, hist
}

func drillGeo(value string) func(context.Context, *selection.Set) error {
	return func(ctx context.Context, set *selection.Set) error {
		selector, err := set.Selector(0)
		if err != nil {
			return err
		}
		if err := selector.SelectDimension(ctx, "geo"); err != nil {
			return err
		}
		return selector.Drill(ctx, value)
	}
}

func TestFirstRender(t *testing.T) {
	ctx := context.Background()
	ex, backend, hist := newExplorer(t, time.Hour)

	require.NoError(t, ex.Update(ctx, drillGeo("EU")))
	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)

	require.NoError(t, snapshot.Err)
	assert.Equal(t, explorer.StatusReady, snapshot.Status)
	assert.Equal(t, []string{"sales.amount"}, snapshot.State.Measures)
	assert.Equal(
		t,
		[]cube.DimensionValue{{Name: "geo", Path: cube.ValuePath{cube.Value("EU"), cube.Unset}}},
		snapshot.State.Dimensions,
	)

	_, cachedResults := ex.CacheSizes()
	assert.Equal(t, 1, cachedResults)
	assert.Equal(t, 1, backend.Calls("dice"))

	entries, _ := hist.Entries()
	assert.Equal(t, []string{snapshot.Encoded}, entries)

	require.True(t, snapshot.HasResult)
	assert.Len(t, snapshot.Result.Rows, 2)
}

func TestDebounceCoalescesEdits(t *testing.T) {
	ctx := context.Background()
	ex, backend, _ := newExplorer(t, 100*time.Millisecond)

	snapshots := make(chan explorer.Snapshot, 10)
	ex.Subscribe(func(snapshot explorer.Snapshot) { snapshots <- snapshot })

	require.NoError(t, ex.Update(ctx, drillGeo("EU")))
	require.NoError(t, ex.Update(ctx, func(ctx context.Context, set *selection.Set) error {
		set.SetSkipZero(false)
		return nil
	}))
	require.NoError(t, ex.Update(ctx, func(ctx context.Context, set *selection.Set) error {
		_, err := set.PushSelector(ctx)
		return err
	}))

	select {
	case snapshot := <-snapshots:
		assert.False(t, snapshot.State.SkipZero)
		assert.Len(t, snapshot.State.Dimensions, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot published")
	}

	assert.Equal(t, 1, backend.Calls("dice"))
}

func TestStaleResultsAreDiscarded(t *testing.T) {
	ctx := context.Background()
	ex, backend, _ := newExplorer(t, time.Hour)

	var mu sync.Mutex
	var published []string
	ex.Subscribe(func(snapshot explorer.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, snapshot.Encoded)
	})

	release := backend.BlockDice()
	require.NoError(t, ex.Update(ctx, drillGeo("EU")))

	stale := make(chan explorer.Snapshot, 1)
	go func() {
		snapshot, err := ex.Flush(ctx)
		assert.NoError(t, err)
		stale <- snapshot
	}()
	backend.WaitForDice(t, 1)

	replacement, err := cube.SelectionState{
		Measures:   []string{"sales.amount"},
		Dimensions: []cube.DimensionValue{{Name: "time", Path: cube.ValuePath{cube.Unset}}},
		SkipZero:   true,
		PivotOn:    []int{},
		Filters:    []cube.Filter{},
	}.Encode()
	require.NoError(t, err)
	require.NoError(t, ex.Navigate(ctx, replacement))

	release()
	discarded := <-stale
	assert.False(t, discarded.HasResult)

	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, replacement, snapshot.Encoded)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{replacement}, published)
}

func TestFailedFetchKeepsPreviousResult(t *testing.T) {
	ctx := context.Background()
	ex, backend, _ := newExplorer(t, time.Hour)

	first, err := ex.Flush(ctx)
	require.NoError(t, err)
	require.True(t, first.HasResult)

	backend.FailDice("table missing")
	require.NoError(t, ex.Update(ctx, drillGeo("NA")))
	failed, err := ex.Flush(ctx)
	require.NoError(t, err)

	require.Error(t, failed.Err)
	assert.True(t, cube.IsServerError(failed.Err))
	assert.Equal(t, first.Result, failed.Result)
	assert.NotEqual(t, first.Encoded, failed.Encoded)
}

func TestHistoryNavigation(t *testing.T) {
	ctx := context.Background()
	ex, _, _ := newExplorer(t, time.Hour)

	first, err := ex.Flush(ctx)
	require.NoError(t, err)

	require.NoError(t, ex.Update(ctx, drillGeo("EU")))
	second, err := ex.Flush(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Encoded, second.Encoded)

	moved, err := ex.Back(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	back, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.State, back.State)

	moved, err = ex.Forward(ctx)
	require.NoError(t, err)
	require.True(t, moved)
	forward, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.State, forward.State)

	moved, err = ex.Forward(ctx)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestLoadResumesFromHistory(t *testing.T) {
	ctx := context.Background()
	backend := cubetest.NewBackend(t)
	hist := history.NewMemory()

	state := cube.SelectionState{
		Measures:   []string{"sales.count"},
		Dimensions: []cube.DimensionValue{{Name: "product", Path: cube.ValuePath{cube.Unset}}},
		SkipZero:   true,
		PivotOn:    []int{},
		Filters:    []cube.Filter{},
	}
	encoded, err := state.Encode()
	require.NoError(t, err)
	require.NoError(t, hist.Push(encoded))

	ex := explorer.New(backend, hist, explorer.Options{Debounce: time.Hour})
	t.Cleanup(ex.Close)
	require.NoError(t, ex.Load(ctx))

	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, state, snapshot.State)

	// Resuming does not push the same state again.
	entries, _ := hist.Entries()
	assert.Len(t, entries, 1)
}

func TestUndecodableStateFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	ex, _, _ := newExplorer(t, time.Hour)

	require.NoError(t, ex.Navigate(ctx, "%%%"))
	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales.amount"}, snapshot.State.Measures)
}

func TestSearchAndFilter(t *testing.T) {
	ctx := context.Background()
	ex, _, _ := newExplorer(t, time.Hour)

	require.NoError(t, ex.Update(ctx, drillGeo("EU")))

	matches, err := ex.Search(ctx, 0, "par", 0)
	require.NoError(t, err)
	require.Equal(t, []cube.SearchMatch{{Value: "Paris", Depth: 3}}, matches)

	require.NoError(t, ex.ApplyFilter(ctx, 0, matches[0]))
	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []cube.Filter{{Dimension: "geo", Value: "Paris", Depth: 3}}, snapshot.State.Filters)

	require.Len(t, snapshot.Result.Rows, 1)
	assert.Equal(t, [][]string{{"EU", "FR"}}, snapshot.Result.Rows[0].Keys)
}

func TestExportBypassesResultCache(t *testing.T) {
	ctx := context.Background()
	ex, backend, _ := newExplorer(t, time.Hour)

	_, err := ex.Flush(ctx)
	require.NoError(t, err)

	var output bytes.Buffer
	require.NoError(t, ex.Export(ctx, cube.FormatCSV, &output))
	assert.Equal(t, 1, backend.Calls("export"))
	assert.Equal(t, 1, backend.Calls("dice"))
	assert.NotEmpty(t, output.String())
}

func TestFailedEditKeepsSelection(t *testing.T) {
	ctx := context.Background()
	ex, backend, hist := newExplorer(t, time.Hour)

	first, err := ex.Flush(ctx)
	require.NoError(t, err)

	drillErr := errors.New("network down")
	backend.FailDrills(drillErr)
	err = ex.Update(ctx, func(ctx context.Context, set *selection.Set) error {
		return set.SelectMeasure(ctx, 0, "stock.units")
	})
	assert.ErrorIs(t, err, drillErr)

	state, err := ex.State()
	require.NoError(t, err)
	assert.Equal(t, first.State, state)

	after, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Encoded, after.Encoded)
	assert.Equal(t, 1, backend.Calls("dice"))

	entries, _ := hist.Entries()
	assert.Equal(t, []string{first.Encoded}, entries)
}

func TestStatusIsAvailableWhileApplying(t *testing.T) {
	ctx := context.Background()
	ex, backend, _ := newExplorer(t, time.Hour)

	target, err := cube.SelectionState{
		Measures:   []string{"stock.units"},
		Dimensions: []cube.DimensionValue{{Name: "geo", Path: cube.Path("EU", "FR")}},
		SkipZero:   true,
		PivotOn:    []int{},
		Filters:    []cube.Filter{},
	}.Encode()
	require.NoError(t, err)

	release := backend.BlockDrills()
	defer release()

	drillsBefore := backend.Calls("drill")
	navigated := make(chan error, 1)
	go func() {
		navigated <- ex.Navigate(ctx, target)
	}()
	backend.WaitForDrills(t, drillsBefore+1)

	statuses := make(chan explorer.Status, 1)
	go func() {
		ex.Snapshot()
		statuses <- ex.Status()
	}()
	select {
	case status := <-statuses:
		assert.Equal(t, explorer.StatusNotReady, status)
	case <-time.After(5 * time.Second):
		t.Fatal("status blocked while drilling")
	}

	release()
	require.NoError(t, <-navigated)
	assert.Equal(t, explorer.StatusReady, ex.Status())

	snapshot, err := ex.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, target, snapshot.Encoded)
}
