package db

import (
	"fmt"
	"slices"

	"hermannm.dev/cube/cube"
	"hermannm.dev/wrap"
)

// Plan is a selection state resolved against a schema: which levels to group each dimension slot
// by, which values to restrict them to, and which measures to aggregate in which space.
type Plan struct {
	Slots    []SlotPlan
	Measures []MeasurePlan
	Filters  []cube.Filter
	SkipZero bool
	PivotOn  []int
}

type SlotPlan struct {
	Dimension string
	Label     string
	// Number of levels to group by.
	Depth int
	// Values the first levels are fixed to.
	Prefix []string
}

type MeasurePlan struct {
	// Position among all measures of the plan.
	Index   int
	Space   SpaceSchema
	Measure MeasureSchema
}

func (measure MeasurePlan) QualifiedName() string {
	return measure.Space.Name + "." + measure.Measure.Name
}

func (measure MeasurePlan) FullName() string {
	return measure.Space.Label + " / " + measure.Measure.Label
}

// SpaceGroup is the measures of a plan that are aggregated in the same space, and thus in one query.
type SpaceGroup struct {
	Space    SpaceSchema
	Measures []MeasurePlan
}

func NewPlan(schema Schema, state cube.SelectionState) (Plan, error) {
	if len(state.Measures) == 0 {
		return Plan{}, cube.ErrNoMeasures
	}

	plan := Plan{SkipZero: state.SkipZero}

	for i, qualifiedName := range state.Measures {
		spaceName, measureName, err := cube.SplitQualifiedName(qualifiedName)
		if err != nil {
			return Plan{}, err
		}
		space, err := schema.Space(spaceName)
		if err != nil {
			return Plan{}, err
		}
		measure, err := space.Measure(measureName)
		if err != nil {
			return Plan{}, err
		}

		plan.Measures = append(plan.Measures, MeasurePlan{Index: i, Space: space, Measure: measure})
	}

	for _, value := range state.Dimensions {
		depth, label, err := plan.dimensionDepth(value.Name)
		if err != nil {
			return Plan{}, err
		}

		path := value.Path.Clamp(depth)
		if len(path) == 0 {
			path = cube.ValuePath{cube.Unset}
		}

		plan.Slots = append(plan.Slots, SlotPlan{
			Dimension: value.Name,
			Label:     label,
			Depth:     len(path),
			Prefix:    path.Prefix(),
		})
	}

	for _, filter := range state.Filters {
		depth, _, err := plan.dimensionDepth(filter.Dimension)
		if err != nil {
			return Plan{}, wrap.Error(err, "invalid filter")
		}
		if filter.Depth < 1 || filter.Depth > depth {
			return Plan{}, fmt.Errorf(
				"filter depth %d is outside dimension '%s' (depth %d)",
				filter.Depth, filter.Dimension, depth,
			)
		}
		plan.Filters = append(plan.Filters, filter)
	}

	for _, index := range state.PivotOn {
		if index < 0 || index >= len(plan.Slots) {
			return Plan{}, fmt.Errorf("pivot index %d is outside the %d dimensions", index, len(plan.Slots))
		}
		if !slices.Contains(plan.PivotOn, index) {
			plan.PivotOn = append(plan.PivotOn, index)
		}
	}

	return plan, nil
}

// dimensionDepth returns the depth of the named dimension common to the spaces of all measures.
func (plan Plan) dimensionDepth(name string) (depth int, label string, err error) {
	depth = -1
	for _, measure := range plan.Measures {
		dimension, err := measure.Space.Dimension(name)
		if err != nil {
			return 0, "", err
		}
		if depth == -1 || dimension.Depth() < depth {
			depth = dimension.Depth()
		}
		label = withDefault(label, dimension.Label)
	}
	return depth, label, nil
}

// Groups returns the measures grouped by space, in order of first appearance.
func (plan Plan) Groups() []SpaceGroup {
	var groups []SpaceGroup
	for _, measure := range plan.Measures {
		found := false
		for i := range groups {
			if groups[i].Space.Name == measure.Space.Name {
				groups[i].Measures = append(groups[i].Measures, measure)
				found = true
				break
			}
		}
		if !found {
			groups = append(groups, SpaceGroup{Space: measure.Space, Measures: []MeasurePlan{measure}})
		}
	}
	return groups
}

// LevelFilter is a restriction of one level column to one value.
type LevelFilter struct {
	Column string
	Value  string
}

// GroupColumns returns, per slot, the level columns to group by in the given space.
func (plan Plan) GroupColumns(space SpaceSchema) ([][]string, error) {
	columns := make([][]string, len(plan.Slots))
	for i, slot := range plan.Slots {
		dimension, err := space.Dimension(slot.Dimension)
		if err != nil {
			return nil, err
		}
		if columns[i], err = dimension.LevelColumns(slot.Depth); err != nil {
			return nil, err
		}
	}
	return columns, nil
}

// LevelFilters returns the slot prefixes and filters of the plan as column restrictions in the
// given space.
func (plan Plan) LevelFilters(space SpaceSchema) ([]LevelFilter, error) {
	var filters []LevelFilter

	for _, slot := range plan.Slots {
		dimension, err := space.Dimension(slot.Dimension)
		if err != nil {
			return nil, err
		}
		for i, value := range slot.Prefix {
			filters = append(filters, LevelFilter{Column: dimension.Levels[i].Column, Value: value})
		}
	}

	for _, filter := range plan.Filters {
		dimension, err := space.Dimension(filter.Dimension)
		if err != nil {
			return nil, err
		}
		filters = append(
			filters,
			LevelFilter{Column: dimension.Levels[filter.Depth-1].Column, Value: filter.Value},
		)
	}

	return filters, nil
}
