// Package explorer synchronizes a selection with its aggregation result and the session history.
// Edits mark the selection dirty; after a quiet period the selection state is derived, pushed to
// history if it changed, and its result fetched through the result cache.
package explorer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/drill"
	"hermannm.dev/cube/history"
	"hermannm.dev/cube/metrics"
	"hermannm.dev/cube/results"
	"hermannm.dev/cube/selection"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// ErrNotReady is returned for edits attempted while a selection state is being applied.
var ErrNotReady = errors.New("explorer is applying a selection state")

const DefaultDebounce = 10 * time.Millisecond

type Options struct {
	// Quiet period before a changed selection is queried.
	Debounce time.Duration
	// Capacity of the result cache (results.DefaultCapacity if 0).
	ResultCacheSize int
	// Capacity of the drill cache (unbounded if 0).
	DrillCacheSize int
}

// Snapshot is the last settled view of the explorer.
type Snapshot struct {
	Status Status
	State  cube.SelectionState
	// Encoded form of State, as pushed to history.
	Encoded string
	// The last successfully fetched result. Kept when a later fetch fails.
	Result    cube.Result
	HasResult bool
	// Error of the last fetch, nil if it succeeded.
	Err error
}

type Explorer struct {
	backend   cube.Backend
	history   history.Channel
	drills    *drill.Cache
	results   *results.Cache
	debouncer *debouncer
	cancel    context.CancelFunc

	mu          sync.Mutex
	set         *selection.Set
	status      Status
	generation  uint64
	lastEncoded string
	snapshot    Snapshot
	subscribers []func(Snapshot)
}

// New creates an explorer and starts its debounce loop. Call Load before editing, and Close when
// done.
func New(backend cube.Backend, history history.Channel, options Options) *Explorer {
	if options.Debounce <= 0 {
		options.Debounce = DefaultDebounce
	}

	explorer := &Explorer{
		backend: backend,
		history: history,
		drills:  drill.NewCache(backend, options.DrillCacheSize),
		results: results.NewCache(backend, options.ResultCacheSize),
		status:  StatusNotReady,
	}
	explorer.snapshot.Status = StatusNotReady

	ctx, cancel := context.WithCancel(context.Background())
	explorer.cancel = cancel
	explorer.debouncer = newDebouncer(options.Debounce, explorer.refresh)
	go explorer.debouncer.run(ctx)

	return explorer
}

func (explorer *Explorer) Close() {
	explorer.cancel()
}

// Load fetches the cube metadata and applies the current history entry, or the default selection
// if the history is empty or holds an undecodable entry.
func (explorer *Explorer) Load(ctx context.Context) error {
	info, err := explorer.backend.Info(ctx)
	metrics.Fetched("info", err)
	if err != nil {
		return wrap.Error(err, "failed to fetch cube metadata")
	}

	encoded, _, err := explorer.history.Current()
	if err != nil {
		return wrap.Error(err, "failed to read history")
	}

	explorer.mu.Lock()
	explorer.set = selection.NewSet(cube.NewCatalog(info), explorer.drills)
	explorer.mu.Unlock()

	return explorer.apply(ctx, encoded)
}

// Navigate replaces the selection with an encoded state from outside, recording it in history.
func (explorer *Explorer) Navigate(ctx context.Context, encoded string) error {
	current, _, err := explorer.history.Current()
	if err != nil {
		return wrap.Error(err, "failed to read history")
	}
	if current != encoded {
		if err := explorer.history.Push(encoded); err != nil {
			return wrap.Error(err, "failed to record navigation in history")
		}
		metrics.HistoryPushed()
	}

	return explorer.apply(ctx, encoded)
}

// Back applies the previous history entry. It returns false at the oldest entry.
func (explorer *Explorer) Back(ctx context.Context) (bool, error) {
	encoded, ok, err := explorer.history.Back()
	if err != nil || !ok {
		return false, err
	}
	return true, explorer.apply(ctx, encoded)
}

// Forward applies the next history entry. It returns false at the newest entry.
func (explorer *Explorer) Forward(ctx context.Context) (bool, error) {
	encoded, ok, err := explorer.history.Forward()
	if err != nil || !ok {
		return false, err
	}
	return true, explorer.apply(ctx, encoded)
}

// apply makes encoded the selection. The explorer is NotReady until every selector has resolved,
// and any fetch started before is discarded when it completes. Selectors are rebuilt on a new set
// without holding the lock, so Status, Snapshot and Subscribe do not wait on the drills.
func (explorer *Explorer) apply(ctx context.Context, encoded string) error {
	state, ok := cube.Decode(encoded)
	if !ok {
		if encoded != "" {
			log.Warn("ignoring undecodable selection state", slog.String("state", encoded))
		}
		state = cube.SelectionState{SkipZero: true}
	}

	explorer.mu.Lock()
	if explorer.set == nil {
		explorer.mu.Unlock()
		return wrap.Error(ErrNotReady, "explorer has not been loaded")
	}

	explorer.status = StatusNotReady
	explorer.snapshot.Status = StatusNotReady
	explorer.generation++
	generation := explorer.generation
	explorer.lastEncoded = encoded
	set := selection.NewSet(explorer.set.Catalog(), explorer.drills)
	explorer.mu.Unlock()

	if err := set.Restore(ctx, state); err != nil {
		return wrap.Error(err, "failed to apply selection state")
	}

	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	if generation != explorer.generation {
		log.Debug("discarding superseded selection state", slog.String("state", encoded))
		return nil
	}

	explorer.set = set
	explorer.status = StatusReady
	explorer.debouncer.trigger()
	return nil
}

// Update edits the selection. The change is queried after the debounce period, or on Flush. A
// failed edit is not queried.
func (explorer *Explorer) Update(
	ctx context.Context,
	edit func(ctx context.Context, set *selection.Set) error,
) error {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	if explorer.status != StatusReady {
		return ErrNotReady
	}

	if err := edit(ctx, explorer.set); err != nil {
		return err
	}
	explorer.debouncer.trigger()
	return nil
}

// Flush skips any remaining debounce delay, and returns the snapshot once the current selection
// has been queried.
func (explorer *Explorer) Flush(ctx context.Context) (Snapshot, error) {
	if err := explorer.debouncer.flush(ctx); err != nil {
		return Snapshot{}, err
	}
	return explorer.Snapshot(), nil
}

func (explorer *Explorer) Snapshot() Snapshot {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	return explorer.snapshot
}

// State derives the selection state of the current selection, without querying it.
func (explorer *Explorer) State() (cube.SelectionState, error) {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	if explorer.status != StatusReady {
		return cube.SelectionState{}, ErrNotReady
	}
	state, ok := explorer.set.Derive()
	if !ok {
		return cube.SelectionState{}, cube.ErrNoMeasures
	}
	return state, nil
}

func (explorer *Explorer) Status() Status {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	return explorer.status
}

// Subscribe registers a function called with every new snapshot.
func (explorer *Explorer) Subscribe(subscriber func(Snapshot)) {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	explorer.subscribers = append(explorer.subscribers, subscriber)
}

// refresh derives the selection state, records it in history if it changed, and fetches its
// result. Results that return after the selection was replaced are discarded.
func (explorer *Explorer) refresh(ctx context.Context) {
	explorer.mu.Lock()
	if explorer.status != StatusReady {
		explorer.mu.Unlock()
		return
	}

	state, ok := explorer.set.Derive()
	if !ok {
		explorer.mu.Unlock()
		return
	}
	explorer.set.Remember(state)

	encoded, err := state.Encode()
	if err != nil {
		explorer.mu.Unlock()
		log.ErrorCause(err, "failed to encode selection state")
		return
	}

	explorer.generation++
	generation := explorer.generation
	changed := encoded != explorer.lastEncoded
	explorer.lastEncoded = encoded
	explorer.mu.Unlock()

	if changed {
		if err := explorer.history.Push(encoded); err != nil {
			log.ErrorCause(err, "failed to push selection state to history")
		} else {
			metrics.HistoryPushed()
		}
	}

	result, cached, err := explorer.results.GetOrFetch(ctx, state)

	explorer.mu.Lock()
	if generation != explorer.generation {
		explorer.mu.Unlock()
		metrics.StaleResponse()
		log.Debug("discarding stale aggregation result", slog.String("state", encoded))
		return
	}

	snapshot := Snapshot{
		Status:    StatusReady,
		State:     state,
		Encoded:   encoded,
		Result:    explorer.snapshot.Result,
		HasResult: explorer.snapshot.HasResult,
		Err:       err,
	}
	if err == nil {
		snapshot.Result = result
		snapshot.HasResult = true
	} else {
		log.ErrorCause(err, "aggregation failed")
	}
	explorer.snapshot = snapshot
	subscribers := append(([]func(Snapshot))(nil), explorer.subscribers...)
	explorer.mu.Unlock()

	log.Debug(
		"selection refreshed",
		slog.String("state", encoded),
		slog.Bool("cached", cached),
		slog.Bool("historyPushed", changed),
	)
	for _, subscriber := range subscribers {
		subscriber(snapshot)
	}
}

// Export writes the full result of the current selection. It bypasses the result cache.
func (explorer *Explorer) Export(ctx context.Context, format cube.Format, output io.Writer) error {
	explorer.mu.Lock()
	if explorer.status != StatusReady {
		explorer.mu.Unlock()
		return ErrNotReady
	}
	state, ok := explorer.set.Derive()
	explorer.mu.Unlock()

	if !ok {
		return wrap.Error(cube.ErrNoMeasures, "nothing to export")
	}
	return explorer.results.Export(ctx, state, format, output)
}

// Search looks for coordinates matching text in the dimension of the selector at position slot.
func (explorer *Explorer) Search(
	ctx context.Context,
	slot int,
	text string,
	maxDepth int,
) ([]cube.SearchMatch, error) {
	query, err := explorer.searchQuery(slot, text, maxDepth)
	if err != nil {
		return nil, err
	}

	matches, err := explorer.backend.Search(ctx, query)
	metrics.Fetched("search", err)
	if err != nil {
		return nil, wrap.Errorf(err, "failed to search dimension '%s'", query.Dimension)
	}
	return matches, nil
}

func (explorer *Explorer) searchQuery(slot int, text string, maxDepth int) (cube.SearchQuery, error) {
	explorer.mu.Lock()
	defer explorer.mu.Unlock()

	if explorer.status != StatusReady {
		return cube.SearchQuery{}, ErrNotReady
	}

	selector, err := explorer.set.Selector(slot)
	if err != nil {
		return cube.SearchQuery{}, err
	}
	if selector.Selected() == nil {
		return cube.SearchQuery{}, wrap.Errorf(
			cube.ErrUnknownDimension, "selector %d has no dimension selected", slot,
		)
	}

	measures := explorer.set.Measures()
	if len(measures) == 0 {
		return cube.SearchQuery{}, cube.ErrNoMeasures
	}

	return cube.SearchQuery{
		Space:     measures[0].Space.Name,
		Dimension: selector.Selected().Name(),
		Text:      text,
		MaxDepth:  maxDepth,
	}, nil
}

// ApplyFilter restricts the selector at position slot to a search match.
func (explorer *Explorer) ApplyFilter(ctx context.Context, slot int, match cube.SearchMatch) error {
	return explorer.Update(ctx, func(ctx context.Context, set *selection.Set) error {
		selector, err := set.Selector(slot)
		if err != nil {
			return err
		}
		if selector.Selected() == nil {
			return wrap.Errorf(cube.ErrUnknownDimension, "selector %d has no dimension selected", slot)
		}

		selector.SetFilter(match.Filter(selector.Selected().Name()))
		return nil
	})
}

// CacheSizes returns the number of entries in the drill and result caches.
func (explorer *Explorer) CacheSizes() (drills int, results int) {
	return explorer.drills.Len(), explorer.results.Len()
}
