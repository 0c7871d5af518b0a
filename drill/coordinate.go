package drill

import (
	"context"

	"hermannm.dev/cube/cube"
)

// Coordinate is a node of a dimension's coordinate tree. Its children are unknown until it is
// drilled, after which they are fixed.
type Coordinate struct {
	dimension *Dimension
	parent    *Coordinate
	value     []string
	label     string
	children  []*Coordinate
	drilled   bool
	active    bool
}

// Value returns the full path from the dimension root, e.g. ["EU", "FR"]. The root's value is empty.
func (coord *Coordinate) Value() []string {
	return append([]string(nil), coord.value...)
}

func (coord *Coordinate) Path() cube.ValuePath {
	return cube.Path(coord.value...)
}

func (coord *Coordinate) Label() string {
	return coord.label
}

func (coord *Coordinate) Parent() *Coordinate {
	return coord.parent
}

func (coord *Coordinate) Depth() int {
	return len(coord.value)
}

func (coord *Coordinate) IsRoot() bool {
	return coord.parent == nil
}

// HasChildren reports whether the coordinate is above the deepest level of its dimension.
func (coord *Coordinate) HasChildren() bool {
	return coord.Depth() < coord.dimension.Depth()
}

func (coord *Coordinate) Drilled() bool {
	return coord.drilled
}

// Children returns the materialized children, nil until drilled.
func (coord *Coordinate) Children() []*Coordinate {
	return coord.children
}

func (coord *Coordinate) Active() bool {
	return coord.active
}

// Child returns the drilled child whose last value segment is value.
func (coord *Coordinate) Child(value string) (*Coordinate, bool) {
	for _, child := range coord.children {
		if child.value[len(child.value)-1] == value {
			return child, true
		}
	}
	return nil, false
}

// Drill materializes the coordinate's children (once) and makes it the selected coordinate of its
// dimension.
func (coord *Coordinate) Drill(ctx context.Context) error {
	if !coord.HasChildren() {
		return cube.ErrLeafCoordinate
	}

	if !coord.drilled {
		children, err := coord.dimension.fetcher.Children(ctx, coord.dimension.Name(), coord.value)
		if err != nil {
			return err
		}

		coord.children = make([]*Coordinate, len(children))
		for i, child := range children {
			coord.children[i] = coord.newChild(child)
		}
		coord.drilled = true
	}

	coord.dimension.selected = coord
	return nil
}

func (coord *Coordinate) newChild(child cube.Child) *Coordinate {
	value := make([]string, len(coord.value), len(coord.value)+1)
	copy(value, coord.value)

	return &Coordinate{
		dimension: coord.dimension,
		parent:    coord,
		value:     append(value, child.Value),
		label:     child.Label,
	}
}

// Toggle flips the coordinate's active flag. Activating it deactivates its siblings.
func (coord *Coordinate) Toggle() {
	if coord.active {
		coord.active = false
	} else {
		coord.activate()
	}
}

func (coord *Coordinate) activate() {
	if coord.parent != nil {
		for _, sibling := range coord.parent.children {
			sibling.active = false
		}
	}
	coord.active = true
}

func (coord *Coordinate) activeChild() *Coordinate {
	for _, child := range coord.children {
		if child.active {
			return child
		}
	}
	return nil
}
