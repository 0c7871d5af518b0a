package selection

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
	"hermannm.dev/cube/cube"
	"hermannm.dev/cube/drill"
	"hermannm.dev/wrap"
)

// Set is the full selection of a query: the measures, the dimension selectors valid for all of
// them, and the query flags. It is not safe for concurrent use.
//
// Changes of measures or state are all-or-nothing: when a drill fails while rebuilding the
// selectors, the set is left as it was.
type Set struct {
	catalog   cube.Catalog
	drills    *drill.Cache
	measures  []cube.Measure
	available []cube.Dimension
	selectors []*DimSelect
	skipZero  bool
	// The last known state, used to rebuild selectors once measures are known.
	state cube.SelectionState
}

// NewSet creates an empty selection. Drills go through drills, in the space of the first selected
// measure.
func NewSet(catalog cube.Catalog, drills *drill.Cache) *Set {
	return &Set{catalog: catalog, drills: drills, skipZero: true}
}

// fetcher drills in the space of the first of measures.
func (set *Set) fetcher(measures []cube.Measure) drill.Fetcher {
	return set.drills.Bind(func() (string, error) {
		if len(measures) == 0 {
			return "", cube.ErrNoMeasures
		}
		return measures[0].Space.Name, nil
	})
}

func (set *Set) Catalog() cube.Catalog {
	return set.catalog
}

func (set *Set) Measures() []cube.Measure {
	return slices.Clone(set.measures)
}

// Available returns the dimensions valid for all selected measures.
func (set *Set) Available() []cube.Dimension {
	return set.available
}

func (set *Set) Selectors() []*DimSelect {
	return slices.Clone(set.selectors)
}

func (set *Set) Selector(index int) (*DimSelect, error) {
	if index < 0 || index >= len(set.selectors) {
		return nil, wrap.Errorf(
			cube.ErrUnknownDimension, "no dimension selector at position %d", index,
		)
	}
	return set.selectors[index], nil
}

func (set *Set) SkipZero() bool {
	return set.skipZero
}

func (set *Set) SetSkipZero(skipZero bool) {
	set.skipZero = skipZero
}

// Restore rebuilds the selection from state: measures that exist in the catalog (in catalog
// order, defaulting to the first measure), and selectors reconstructed from its dimensions.
func (set *Set) Restore(ctx context.Context, state cube.SelectionState) error {
	var measures []cube.Measure
	for _, measure := range set.catalog.Measures() {
		if slices.Contains(state.Measures, measure.QualifiedName()) {
			measures = append(measures, measure)
		}
	}
	if len(measures) == 0 {
		all := set.catalog.Measures()
		if len(all) == 0 {
			return wrap.Error(cube.ErrNoMeasures, "cube has no measures")
		}
		measures = all[:1]
	}

	rebuilt, err := set.reconcile(ctx, measures, nil, state)
	if err != nil {
		return err
	}

	set.commit(rebuilt)
	set.state = state
	set.skipZero = state.SkipZero
	return nil
}

// Remember records state as the last known state.
func (set *Set) Remember(state cube.SelectionState) {
	set.state = state
}

// SetMeasures replaces the measures, and reconciles the selectors with the dimensions valid for
// the new measures.
func (set *Set) SetMeasures(ctx context.Context, measures []cube.Measure) error {
	rebuilt, err := set.reconcile(ctx, slices.Clone(measures), set.selectors, set.state)
	if err != nil {
		return err
	}
	set.commit(rebuilt)
	return nil
}

type reconciled struct {
	measures  []cube.Measure
	available []cube.Dimension
	selectors []*DimSelect
}

func (set *Set) commit(rebuilt reconciled) {
	set.measures = rebuilt.measures
	set.available = rebuilt.available
	set.selectors = rebuilt.selectors
}

// reconcile builds the selectors for measures on fresh trees. Current selectors on dimensions that
// are still available are rebuilt with their value, pivot and filter; the others are dropped. If
// none remain, selectors are rebuilt from state, or a single default selector is added. It returns
// once every selector has resolved its value, and touches none of the current selectors.
func (set *Set) reconcile(
	ctx context.Context,
	measures []cube.Measure,
	current []*DimSelect,
	state cube.SelectionState,
) (reconciled, error) {
	type pending struct {
		selector *DimSelect
		name     string
		value    cube.ValuePath
	}

	available := set.catalog.ValidDimensions(measures)
	fetcher := set.fetcher(measures)

	var jobs []pending
	for _, previous := range current {
		selected := previous.Selected()
		if selected == nil || !isAvailable(available, selected.Name()) {
			continue
		}

		selector := NewDimSelect(fetcher)
		selector.pivot = previous.pivot
		selector.filter = previous.filter
		jobs = append(jobs, pending{selector, selected.Name(), previous.Value()})
	}

	if len(jobs) == 0 {
		for i, dimension := range state.Dimensions {
			if !isAvailable(available, dimension.Name) {
				continue
			}

			selector := NewDimSelect(fetcher)
			selector.pivot = slices.Contains(state.PivotOn, i)
			for _, filter := range state.Filters {
				if filter.Dimension == dimension.Name {
					selector.SetFilter(filter)
				}
			}

			jobs = append(jobs, pending{selector, dimension.Name, dimension.Path})
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		group.Go(func() error {
			return job.selector.SetDimensions(groupCtx, available, job.name, job.value)
		})
	}
	if err := group.Wait(); err != nil {
		return reconciled{}, wrap.Error(err, "failed to reconcile dimension selectors")
	}

	rebuilt := reconciled{measures: measures, available: available}
	for _, job := range jobs {
		rebuilt.selectors = append(rebuilt.selectors, job.selector)
	}

	if len(rebuilt.selectors) == 0 {
		selector, err := newSelector(ctx, fetcher, available, nil)
		if err != nil {
			return reconciled{}, err
		}
		if selector != nil {
			rebuilt.selectors = append(rebuilt.selectors, selector)
		}
	}
	return rebuilt, nil
}

func isAvailable(available []cube.Dimension, name string) bool {
	for _, dimension := range available {
		if dimension.Name == name {
			return true
		}
	}
	return false
}

// PushSelector appends a selector on the first available dimension not used by another selector,
// aggregated at the top level. It returns nil if no dimensions are available.
func (set *Set) PushSelector(ctx context.Context) (*DimSelect, error) {
	selector, err := newSelector(ctx, set.fetcher(set.measures), set.available, set.selectors)
	if err != nil || selector == nil {
		return nil, err
	}

	set.selectors = append(set.selectors, selector)
	return selector, nil
}

// newSelector creates a selector on the first of available not used by existing, or the first of
// available if all are used. It returns nil if nothing is available.
func newSelector(
	ctx context.Context,
	fetcher drill.Fetcher,
	available []cube.Dimension,
	existing []*DimSelect,
) (*DimSelect, error) {
	if len(available) == 0 {
		return nil, nil
	}

	name := available[0].Name
	for _, dimension := range available {
		if !isUsed(existing, dimension.Name) {
			name = dimension.Name
			break
		}
	}

	selector := NewDimSelect(fetcher)
	if err := selector.SetDimensions(ctx, available, name, cube.ValuePath{cube.Unset}); err != nil {
		return nil, err
	}
	return selector, nil
}

func isUsed(selectors []*DimSelect, name string) bool {
	for _, selector := range selectors {
		if selected := selector.Selected(); selected != nil && selected.Name() == name {
			return true
		}
	}
	return false
}

// PopSelector removes the last selector, keeping at least one.
func (set *Set) PopSelector() bool {
	if len(set.selectors) <= 1 {
		return false
	}
	set.selectors = set.selectors[:len(set.selectors)-1]
	return true
}

func (set *Set) RemoveSelector(index int) error {
	if _, err := set.Selector(index); err != nil {
		return err
	}
	set.selectors = slices.Delete(set.selectors, index, index+1)
	return nil
}

// MoveSelectorUp swaps the selector at index with the one before it.
func (set *Set) MoveSelectorUp(index int) error {
	if _, err := set.Selector(index); err != nil {
		return err
	}
	if index == 0 {
		return nil
	}
	set.selectors[index-1], set.selectors[index] = set.selectors[index], set.selectors[index-1]
	return nil
}

// MoveSelectorDown swaps the selector at index with the one after it.
func (set *Set) MoveSelectorDown(index int) error {
	if _, err := set.Selector(index); err != nil {
		return err
	}
	if index == len(set.selectors)-1 {
		return nil
	}
	set.selectors[index+1], set.selectors[index] = set.selectors[index], set.selectors[index+1]
	return nil
}

// PushMeasure appends the first measure not already selected, or the first measure of the cube if
// all are selected.
func (set *Set) PushMeasure(ctx context.Context) error {
	all := set.catalog.Measures()
	if len(all) == 0 {
		return wrap.Error(cube.ErrNoMeasures, "cube has no measures")
	}

	next := all[0]
	for _, measure := range all {
		if !slices.Contains(set.measures, measure) {
			next = measure
			break
		}
	}

	return set.SetMeasures(ctx, append(slices.Clone(set.measures), next))
}

// PopMeasure removes the last measure, keeping at least one.
func (set *Set) PopMeasure(ctx context.Context) (bool, error) {
	if len(set.measures) <= 1 {
		return false, nil
	}
	return true, set.SetMeasures(ctx, set.measures[:len(set.measures)-1])
}

// SelectMeasure replaces the measure at position index with the named one.
func (set *Set) SelectMeasure(ctx context.Context, index int, qualifiedName string) error {
	measure, ok := set.catalog.Measure(qualifiedName)
	if !ok {
		return wrap.Errorf(cube.ErrUnknownMeasure, "no measure named '%s'", qualifiedName)
	}

	measures := slices.Clone(set.measures)
	switch {
	case index == len(measures):
		measures = append(measures, measure)
	case index >= 0 && index < len(measures):
		measures[index] = measure
	default:
		return wrap.Errorf(cube.ErrUnknownMeasure, "no measure selector at position %d", index)
	}

	return set.SetMeasures(ctx, measures)
}

// Derive builds the selection state from the selectors. ok is false while there are no measures
// or no selectors to derive from.
func (set *Set) Derive() (state cube.SelectionState, ok bool) {
	if len(set.measures) == 0 || len(set.selectors) == 0 {
		return cube.SelectionState{}, false
	}

	state = cube.SelectionState{
		Measures:   make([]string, 0, len(set.measures)),
		Dimensions: make([]cube.DimensionValue, 0, len(set.selectors)),
		SkipZero:   set.skipZero,
		PivotOn:    []int{},
		Filters:    []cube.Filter{},
	}

	for _, measure := range set.measures {
		state.Measures = append(state.Measures, measure.QualifiedName())
	}

	for _, selector := range set.selectors {
		selected := selector.Selected()
		if selected == nil {
			continue
		}

		state.Dimensions = append(
			state.Dimensions,
			cube.DimensionValue{Name: selected.Name(), Path: selector.Value()},
		)
		if selector.Pivot() {
			state.PivotOn = append(state.PivotOn, len(state.Dimensions)-1)
		}
		if filter, ok := selector.Filter(); ok {
			state.Filters = append(state.Filters, filter)
		}
	}

	return state, true
}
