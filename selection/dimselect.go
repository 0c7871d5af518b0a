// Package selection holds the measure and dimension selectors of a query, and derives the
// selection state from them.
package selection

import (
	"context"

	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/drill"
	"hermannm.dev/wrap"
)

// DimSelect is one dimension slot of a query. It offers every available dimension, each with its
// own coordinate tree, and tracks the selected one, its aggregation level, and its pivot and
// filter flags.
type DimSelect struct {
	fetcher    drill.Fetcher
	dimensions []*drill.Dimension
	selected   *drill.Dimension
	levelIndex int
	pivot      bool
	filter     *cube.Filter
}

// Level is an aggregation level the selector can switch to.
type Level struct {
	Name string
	// Depth index in the dimension (0 = top level).
	Index  int
	Active bool
}

// Choice is one item a selector offers: the children of the selected coordinate once a dimension
// is selected, and the dimensions themselves otherwise.
type Choice struct {
	Label      string
	Coordinate *drill.Coordinate
	Dimension  *drill.Dimension
}

const unselectedLabel = "?"

func NewDimSelect(fetcher drill.Fetcher) *DimSelect {
	return &DimSelect{fetcher: fetcher}
}

// SetDimensions replaces the offered dimensions with fresh trees for available, selects the one
// named name and resolves value in it. If no dimension has that name, the first is selected
// without drilling.
func (dimSelect *DimSelect) SetDimensions(
	ctx context.Context,
	available []cube.Dimension,
	name string,
	value cube.ValuePath,
) error {
	dimSelect.dimensions = make([]*drill.Dimension, len(available))
	var match *drill.Dimension
	for i, schema := range available {
		dim := drill.NewDimension(schema, dimSelect.fetcher)
		dimSelect.dimensions[i] = dim
		if schema.Name == name && match == nil {
			match = dim
		}
	}

	if match == nil {
		dimSelect.selected = nil
		if len(dimSelect.dimensions) > 0 {
			dimSelect.activate(dimSelect.dimensions[0])
		}
		return nil
	}

	dimSelect.activate(match)
	resolution, err := match.SetValue(ctx, value)
	if err != nil {
		return err
	}
	if resolution.HasLevelIndex {
		dimSelect.levelIndex = resolution.LevelIndex
	}
	return nil
}

func (dimSelect *DimSelect) activate(dim *drill.Dimension) {
	if dimSelect.selected != nil {
		dimSelect.selected.SetActive(false)
	}
	dimSelect.selected = dim
	dim.SetActive(true)
	dimSelect.levelIndex = 0
}

// SelectDimension switches the selector to the named dimension and drills its root.
func (dimSelect *DimSelect) SelectDimension(ctx context.Context, name string) error {
	for _, dim := range dimSelect.dimensions {
		if dim.Name() == name {
			dimSelect.activate(dim)
			return dim.DrillRoot(ctx)
		}
	}
	return wrap.Errorf(cube.ErrUnknownDimension, "'%s' is not available in this selector", name)
}

// Dimensions returns every dimension the selector offers.
func (dimSelect *DimSelect) Dimensions() []*drill.Dimension {
	return dimSelect.dimensions
}

// Selected returns the selected dimension, or nil.
func (dimSelect *DimSelect) Selected() *drill.Dimension {
	return dimSelect.selected
}

// Label is the selected dimension's label, or "?" when no dimension is selected.
func (dimSelect *DimSelect) Label() string {
	if dimSelect.selected == nil {
		return unselectedLabel
	}
	return dimSelect.selected.Label()
}

func (dimSelect *DimSelect) Choices() []Choice {
	if dimSelect.selected != nil && dimSelect.selected.Selected() != nil {
		children := dimSelect.selected.Choice()
		choices := make([]Choice, len(children))
		for i, child := range children {
			choices[i] = Choice{Label: child.Label(), Coordinate: child}
		}
		return choices
	}

	choices := make([]Choice, len(dimSelect.dimensions))
	for i, dim := range dimSelect.dimensions {
		choices[i] = Choice{Label: dim.Label(), Dimension: dim}
	}
	return choices
}

// Drill drills into the offered child with the given value.
func (dimSelect *DimSelect) Drill(ctx context.Context, value string) error {
	child, err := dimSelect.child(value)
	if err != nil {
		return err
	}
	return child.Drill(ctx)
}

// Toggle toggles the active flag of the offered child with the given value.
func (dimSelect *DimSelect) Toggle(value string) error {
	child, err := dimSelect.child(value)
	if err != nil {
		return err
	}
	child.Toggle()
	return nil
}

func (dimSelect *DimSelect) child(value string) (*drill.Coordinate, error) {
	if dimSelect.selected == nil || dimSelect.selected.Selected() == nil {
		return nil, wrap.Errorf(cube.ErrUnknownDimension, "no dimension selected to find '%s' in", value)
	}

	child, ok := dimSelect.selected.Selected().Child(value)
	if !ok {
		return nil, wrap.Errorf(
			cube.ErrUnknownDimension,
			"'%s' is not a child of '%s' in dimension '%s'",
			value,
			dimSelect.selected.Selected().Path(),
			dimSelect.selected.Name(),
		)
	}
	return child, nil
}

func (dimSelect *DimSelect) CanDrillUp() bool {
	return dimSelect.selected != nil &&
		dimSelect.selected.Selected() != nil &&
		!dimSelect.selected.Selected().IsRoot()
}

func (dimSelect *DimSelect) DrillUp() bool {
	if dimSelect.selected == nil {
		return false
	}
	return dimSelect.selected.DrillUp()
}

func (dimSelect *DimSelect) LevelIndex() int {
	return dimSelect.levelIndex
}

// SetLevel sets the aggregation level. Indices outside the selected dimension are clamped.
func (dimSelect *DimSelect) SetLevel(index int) {
	if dimSelect.selected != nil {
		index = min(index, dimSelect.selected.Depth()-1)
	}
	dimSelect.levelIndex = max(index, 0)
}

// Levels returns the levels below the selected coordinate, split into the first two (head) and the
// rest (tail).
func (dimSelect *DimSelect) Levels() (head []Level, tail []Level) {
	if dimSelect.selected == nil {
		return nil, nil
	}

	depth := 0
	if coord := dimSelect.selected.Selected(); coord != nil {
		depth = coord.Depth()
	}

	levels := dimSelect.selected.Levels()
	for pos, name := range levels[min(depth, len(levels)):] {
		level := Level{
			Name:   name,
			Index:  depth + pos,
			Active: depth+pos == dimSelect.levelIndex,
		}
		if pos < 2 {
			head = append(head, level)
		} else {
			tail = append(tail, level)
		}
	}
	return head, tail
}

// Value is the value path of the selected dimension, [Unset] if none is selected.
func (dimSelect *DimSelect) Value() cube.ValuePath {
	if dimSelect.selected == nil {
		return cube.ValuePath{cube.Unset}
	}
	return dimSelect.selected.GetValue(dimSelect.levelIndex)
}

func (dimSelect *DimSelect) Pivot() bool {
	return dimSelect.pivot
}

func (dimSelect *DimSelect) SetPivot(pivot bool) {
	dimSelect.pivot = pivot
}

func (dimSelect *DimSelect) Filter() (cube.Filter, bool) {
	if dimSelect.filter == nil {
		return cube.Filter{}, false
	}
	return *dimSelect.filter, true
}

func (dimSelect *DimSelect) SetFilter(filter cube.Filter) {
	dimSelect.filter = &filter
}

func (dimSelect *DimSelect) ClearFilter() {
	dimSelect.filter = nil
}
