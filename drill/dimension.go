package drill

import (
	"context"
	"log/slog"

	"hermannm.dev/cube/cube"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"
)

// Dimension is the navigation state of one dimension within one selector: its schema, the root of
// its coordinate tree, and the currently selected coordinate.
type Dimension struct {
	schema   cube.Dimension
	fetcher  Fetcher
	root     *Coordinate
	selected *Coordinate
	active   bool
}

// NewDimension creates an undrilled dimension. Its tree is created by DrillRoot or SetValue.
func NewDimension(schema cube.Dimension, fetcher Fetcher) *Dimension {
	return &Dimension{schema: schema.Clone(), fetcher: fetcher}
}

func (dim *Dimension) Schema() cube.Dimension {
	return dim.schema
}

func (dim *Dimension) Name() string {
	return dim.schema.Name
}

func (dim *Dimension) Label() string {
	return dim.schema.Label
}

func (dim *Dimension) Levels() []string {
	return dim.schema.Levels
}

func (dim *Dimension) Depth() int {
	return dim.schema.Depth()
}

// SetLevels replaces the level list, e.g. when the set of selected measures narrows a dimension.
func (dim *Dimension) SetLevels(levels []string) {
	dim.schema = dim.schema.WithLevels(levels)
}

func (dim *Dimension) Active() bool {
	return dim.active
}

func (dim *Dimension) SetActive(active bool) {
	dim.active = active
}

// Selected returns the coordinate whose children are currently offered, nil before the first drill.
func (dim *Dimension) Selected() *Coordinate {
	return dim.selected
}

func (dim *Dimension) Root() *Coordinate {
	return dim.root
}

// Choice returns the children of the selected coordinate.
func (dim *Dimension) Choice() []*Coordinate {
	if dim.selected == nil {
		return nil
	}
	return dim.selected.children
}

// DrillRoot replaces the tree with a fresh root and drills it.
func (dim *Dimension) DrillRoot(ctx context.Context) error {
	root := dim.newRoot()
	if err := root.Drill(ctx); err != nil {
		return wrap.Errorf(err, "failed to drill root of dimension '%s'", dim.Name())
	}
	return nil
}

// DrillUp selects the parent of the selected coordinate. It returns false at the root.
func (dim *Dimension) DrillUp() bool {
	if dim.selected == nil || dim.selected.parent == nil {
		return false
	}
	dim.selected = dim.selected.parent
	return true
}

func (dim *Dimension) newRoot() *Coordinate {
	root := &Coordinate{dimension: dim, value: []string{}, label: dim.schema.Label}
	dim.root = root
	dim.selected = root
	return root
}

// Resolution is the outcome of SetValue.
type Resolution struct {
	// The deepest coordinate reached.
	Coordinate *Coordinate
	// False if some segment of the path matched none of the drilled children. The tree is then left
	// at the deepest matching coordinate.
	Matched bool
	// When the path ended in unset segments, the level index they denote, i.e. the depth the
	// selector should aggregate at.
	LevelIndex    int
	HasLevelIndex bool
}

// SetValue rebuilds the tree from a fresh root and drills along path. Paths longer than the
// dimension are clamped first (see cube.ValuePath.Clamp). A path of set values ends with the last
// coordinate activated; a path ending in unset segments ends with the coordinate before them
// drilled and selected.
func (dim *Dimension) SetValue(ctx context.Context, path cube.ValuePath) (Resolution, error) {
	root := dim.newRoot()
	resolution, err := root.resolve(ctx, path.Clamp(dim.Depth()), 0)
	if err != nil {
		return Resolution{}, wrap.Errorf(
			err, "failed to set value '%s' in dimension '%s'", path, dim.Name(),
		)
	}

	if !resolution.Matched {
		log.Debug(
			"value path no longer matches dimension hierarchy",
			slog.String("dimension", dim.Name()),
			slog.String("path", path.String()),
			slog.String("stoppedAt", resolution.Coordinate.Path().String()),
		)
	}
	return resolution, nil
}

func (coord *Coordinate) resolve(
	ctx context.Context,
	remaining cube.ValuePath,
	offset int,
) (Resolution, error) {
	if len(remaining) == 0 {
		return Resolution{Coordinate: coord, Matched: true}, nil
	}

	if err := coord.Drill(ctx); err != nil {
		return Resolution{}, err
	}

	value, ok := remaining[0].Get()
	if !ok {
		return Resolution{
			Coordinate:    coord,
			Matched:       true,
			LevelIndex:    len(remaining) + offset - 1,
			HasLevelIndex: true,
		}, nil
	}

	child, found := coord.Child(value)
	if !found {
		return Resolution{Coordinate: coord, Matched: false}, nil
	}

	if len(remaining) > 1 {
		return child.resolve(ctx, remaining[1:], offset+1)
	}

	child.activate()
	return Resolution{Coordinate: child, Matched: true}, nil
}

// GetValue returns the value path describing the current navigation state: the path of the
// active child of the selected coordinate if there is one, otherwise the selected coordinate's path
// followed by an unset segment. Either is padded with unset segments up to levelIndex+1 elements.
// Before any drill it is [Unset].
func (dim *Dimension) GetValue(levelIndex int) cube.ValuePath {
	if dim.selected == nil {
		return cube.ValuePath{cube.Unset}
	}

	var path cube.ValuePath
	if active := dim.selected.activeChild(); active != nil {
		path = active.Path()
	} else {
		path = append(dim.selected.Path(), cube.Unset)
	}
	for len(path) <= levelIndex {
		path = append(path, cube.Unset)
	}
	return path
}
