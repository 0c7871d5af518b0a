// Package cubetest provides a small sales/stock cube and an instrumented backend over it, for
// tests of the packages built on cube.Backend.
package cubetest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/cube/db/memory"
)

// FixtureDir is the directory holding schema.yaml and the CSV tables of the fixture cube.
func FixtureDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "fixtures")
}

func Schema(t testing.TB) db.Schema {
	t.Helper()

	schema, err := db.ReadSchema(filepath.Join(FixtureDir(), "schema.yaml"))
	require.NoError(t, err)
	return schema
}

// GeoDimension is the geography dimension of the sales space.
func GeoDimension() cube.Dimension {
	return cube.Dimension{
		Name:   "geo",
		Label:  "Geography",
		Levels: []string{"region", "country", "city"},
	}
}

// Backend wraps the fixture cube, counting calls and letting tests inject failures and delays.
type Backend struct {
	inner *memory.MemoryDB

	mu          sync.Mutex
	calls       map[string]int
	drillFail   error
	diceError   string
	drillGate   chan struct{}
	diceGate    chan struct{}
	drillsBegun int
	dicesBegun  int
}

func NewBackend(t testing.TB) *Backend {
	t.Helper()

	inner, err := memory.Load(Schema(t), FixtureDir())
	require.NoError(t, err)

	return &Backend{inner: inner, calls: make(map[string]int)}
}

// Memory returns the uninstrumented backend.
func (backend *Backend) Memory() *memory.MemoryDB {
	return backend.inner
}

func (backend *Backend) record(key string) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.calls[key]++
}

// Calls returns the number of calls of kind "info", "drill", "dice", "export" or "search".
func (backend *Backend) Calls(kind string) int {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	return backend.calls[kind]
}

// DrillCalls returns the number of drills of one coordinate.
func (backend *Backend) DrillCalls(space string, dimension string, value ...string) int {
	return backend.Calls(drillKey(space, dimension, value))
}

func drillKey(space string, dimension string, value []string) string {
	return fmt.Sprintf("drill:%s:%s:%s", space, dimension, strings.Join(value, "/"))
}

// FailDrills makes every drill fail with err, until called with nil.
func (backend *Backend) FailDrills(err error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.drillFail = err
}

// FailDice makes every dice return a result with the given server error, until called with "".
func (backend *Backend) FailDice(message string) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	backend.diceError = message
}

// BlockDrills holds every drill until the returned function is called.
func (backend *Backend) BlockDrills() (release func()) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	gate := make(chan struct{})
	backend.drillGate = gate
	return backend.releaser(gate, &backend.drillGate)
}

// BlockDice holds every dice until the returned function is called.
func (backend *Backend) BlockDice() (release func()) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	gate := make(chan struct{})
	backend.diceGate = gate
	return backend.releaser(gate, &backend.diceGate)
}

func (backend *Backend) releaser(gate chan struct{}, field *chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			backend.mu.Lock()
			if *field == gate {
				*field = nil
			}
			backend.mu.Unlock()
			close(gate)
		})
	}
}

// WaitForDrills waits until at least count drills have started.
func (backend *Backend) WaitForDrills(t testing.TB, count int) {
	t.Helper()
	backend.waitFor(t, func() bool { return backend.drillsBegun >= count })
}

// WaitForDice waits until at least count dice calls have started.
func (backend *Backend) WaitForDice(t testing.TB, count int) {
	t.Helper()
	backend.waitFor(t, func() bool { return backend.dicesBegun >= count })
}

func (backend *Backend) waitFor(t testing.TB, condition func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return condition()
	}, 5*time.Second, time.Millisecond)
}

func (backend *Backend) Info(ctx context.Context) (cube.Info, error) {
	backend.record("info")
	return backend.inner.Info(ctx)
}

func (backend *Backend) Drill(ctx context.Context, query cube.DrillQuery) ([]cube.Child, error) {
	backend.mu.Lock()
	backend.calls["drill"]++
	backend.calls[drillKey(query.Space, query.Dimension, query.Value)]++
	backend.drillsBegun++
	gate, failure := backend.drillGate, backend.drillFail
	backend.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return backend.inner.Drill(ctx, query)
}

func (backend *Backend) Dice(ctx context.Context, state cube.SelectionState) (cube.Result, error) {
	backend.mu.Lock()
	backend.calls["dice"]++
	backend.dicesBegun++
	gate, serverError := backend.diceGate, backend.diceError
	backend.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return cube.Result{}, err
	}
	if serverError != "" {
		return cube.Result{Error: serverError}, nil
	}
	return backend.inner.Dice(ctx, state)
}

func (backend *Backend) Export(
	ctx context.Context,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	backend.record("export")
	return backend.inner.Export(ctx, state, format, output)
}

func (backend *Backend) Search(ctx context.Context, query cube.SearchQuery) ([]cube.SearchMatch, error) {
	backend.record("search")
	return backend.inner.Search(ctx, query)
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
