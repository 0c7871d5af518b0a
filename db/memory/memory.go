// Package memory implements the cube backend over fact records held in memory, loaded from CSV
// files. It serves small cubes and tests without a database server.
package memory

import (
	"cmp"
	"context"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"hermannm.dev/cube/csv"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/db"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Implements cube.Backend.
type MemoryDB struct {
	schema db.Schema

	mu      sync.RWMutex
	records map[string][]db.Record
}

func NewMemoryDB(schema db.Schema) *MemoryDB {
	return &MemoryDB{schema: schema, records: make(map[string][]db.Record)}
}

// Load reads the table of every space from <dir>/<table>.csv.
func Load(schema db.Schema, dir string) (*MemoryDB, error) {
	memoryDB := NewMemoryDB(schema)

	for _, space := range schema.Spaces {
		path := filepath.Join(dir, space.Table+".csv")
		if err := memoryDB.loadFile(space, path); err != nil {
			return nil, wrap.Errorf(err, "failed to load data for space '%s'", space.Name)
		}
	}

	return memoryDB, nil
}

func (memoryDB *MemoryDB) loadFile(space db.SpaceSchema, path string) error {
	file, err := csv.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := db.NewRecordReader(space, file.Header(), file)
	if err != nil {
		return err
	}

	var records []db.Record
	for {
		record, _, done, err := reader.Read()
		if done {
			break
		}
		if err != nil {
			return err
		}
		records = append(records, record)
	}

	log.Infof("Loaded %d records for space '%s' from %s", len(records), space.Name, path)
	return memoryDB.Insert(space.Name, records...)
}

func (memoryDB *MemoryDB) Insert(space string, records ...db.Record) error {
	if _, err := memoryDB.schema.Space(space); err != nil {
		return err
	}

	memoryDB.mu.Lock()
	defer memoryDB.mu.Unlock()

	memoryDB.records[space] = append(memoryDB.records[space], records...)
	return nil
}

func (memoryDB *MemoryDB) Info(ctx context.Context) (cube.Info, error) {
	return memoryDB.schema.Info(), nil
}

func (memoryDB *MemoryDB) Drill(ctx context.Context, query cube.DrillQuery) ([]cube.Child, error) {
	space, err := memoryDB.schema.Space(query.Space)
	if err != nil {
		return nil, err
	}
	dimension, err := space.Dimension(query.Dimension)
	if err != nil {
		return nil, err
	}

	columns, err := dimension.LevelColumns(len(query.Value) + 1)
	if err != nil {
		return nil, err
	}

	memoryDB.mu.RLock()
	defer memoryDB.mu.RUnlock()

	seen := make(map[string]struct{})
	var children []cube.Child
	for _, record := range memoryDB.records[space.Name] {
		if !matchesPrefix(record, columns, query.Value) {
			continue
		}

		value := record.Levels[columns[len(columns)-1]]
		if _, ok := seen[value]; !ok {
			seen[value] = struct{}{}
			children = append(children, cube.Child{Value: value, Label: value})
		}
	}

	slices.SortFunc(children, func(a, b cube.Child) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return children, nil
}

func matchesPrefix(record db.Record, columns []string, prefix []string) bool {
	for i, value := range prefix {
		if record.Levels[columns[i]] != value {
			return false
		}
	}
	return true
}

// Dice aggregates the records of every space in the selection. Selections the schema cannot
// answer give a result with Error set.
func (memoryDB *MemoryDB) Dice(ctx context.Context, state cube.SelectionState) (cube.Result, error) {
	plan, err := db.NewPlan(memoryDB.schema, state)
	if err != nil {
		return cube.Result{Error: err.Error()}, nil
	}

	memoryDB.mu.RLock()
	defer memoryDB.mu.RUnlock()

	slicesBySpace := make(map[string][]db.Slice)
	for _, group := range plan.Groups() {
		spaceSlices, err := memoryDB.diceSpace(plan, group)
		if err != nil {
			return cube.Result{Error: err.Error()}, nil
		}
		slicesBySpace[group.Space.Name] = spaceSlices
	}

	return db.Assemble(plan, slicesBySpace), nil
}

func (memoryDB *MemoryDB) diceSpace(plan db.Plan, group db.SpaceGroup) ([]db.Slice, error) {
	groupColumns, err := plan.GroupColumns(group.Space)
	if err != nil {
		return nil, err
	}
	filters, err := plan.LevelFilters(group.Space)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		keys   [][]string
		values [][]float64
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, record := range memoryDB.records[group.Space.Name] {
		if !matchesFilters(record, filters) {
			continue
		}

		keys := make([][]string, len(groupColumns))
		var keyBuilder strings.Builder
		for i, columns := range groupColumns {
			keys[i] = make([]string, len(columns))
			for j, column := range columns {
				keys[i][j] = record.Levels[column]
				keyBuilder.WriteString(keys[i][j])
				keyBuilder.WriteByte(0)
			}
			keyBuilder.WriteByte(1)
		}

		key := keyBuilder.String()
		current, ok := buckets[key]
		if !ok {
			current = &bucket{keys: keys, values: make([][]float64, len(group.Measures))}
			buckets[key] = current
			order = append(order, key)
		}

		for i, measure := range group.Measures {
			if value, ok := record.Measures[measure.Measure.Column]; ok {
				current.values[i] = append(current.values[i], value)
			}
		}
	}

	result := make([]db.Slice, 0, len(order))
	for _, key := range order {
		current := buckets[key]
		values := make([]float64, len(group.Measures))
		for i, measure := range group.Measures {
			values[i] = measure.Measure.Aggregation.Apply(current.values[i])
		}
		result = append(result, db.Slice{Keys: current.keys, Values: values})
	}
	return result, nil
}

func matchesFilters(record db.Record, filters []db.LevelFilter) bool {
	for _, filter := range filters {
		if record.Levels[filter.Column] != filter.Value {
			return false
		}
	}
	return true
}

func (memoryDB *MemoryDB) Export(
	ctx context.Context,
	state cube.SelectionState,
	format cube.Format,
	output io.Writer,
) error {
	return db.Export(ctx, memoryDB, state, format, output)
}

// Search finds coordinate values containing the query text, case-insensitively. Matches are
// ordered by depth, then value.
func (memoryDB *MemoryDB) Search(ctx context.Context, query cube.SearchQuery) ([]cube.SearchMatch, error) {
	space, err := memoryDB.schema.Space(query.Space)
	if err != nil {
		return nil, err
	}
	dimension, err := space.Dimension(query.Dimension)
	if err != nil {
		return nil, err
	}

	depth := dimension.Depth()
	if query.MaxDepth > 0 {
		depth = min(depth, query.MaxDepth)
	}
	text := strings.ToLower(query.Text)

	memoryDB.mu.RLock()
	defer memoryDB.mu.RUnlock()

	seen := make(map[cube.SearchMatch]struct{})
	var matches []cube.SearchMatch
	for _, record := range memoryDB.records[space.Name] {
		for i := range depth {
			value := record.Levels[dimension.Levels[i].Column]
			if !strings.Contains(strings.ToLower(value), text) {
				continue
			}

			match := cube.SearchMatch{Value: value, Depth: i + 1}
			if _, ok := seen[match]; !ok {
				seen[match] = struct{}{}
				matches = append(matches, match)
			}
		}
	}

	slices.SortFunc(matches, func(a, b cube.SearchMatch) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), cmp.Compare(a.Value, b.Value))
	})
	return matches, nil
}
