package db

import (
	"slices"
	"strings"

	"hermannm.dev/cube/cube"
)

// Slice is one grouped row returned by a backend for one space: the value path of every slot, and
// one aggregated value per measure of the space group.
type Slice struct {
	Keys   [][]string
	Values []float64
}

// Assemble merges the slices of every space group into one result table, applying the plan's
// skip-zero and pivot settings. slices maps space names to the rows of that space's group.
func Assemble(plan Plan, slicesBySpace map[string][]Slice) cube.Result {
	cells := newCellTable(len(plan.Measures))
	for _, group := range plan.Groups() {
		for _, slice := range slicesBySpace[group.Space.Name] {
			cell := cells.get(slice.Keys)
			for i, measure := range group.Measures {
				if i < len(slice.Values) {
					cell.values[measure.Index] = slice.Values[i]
				}
			}
		}
	}

	if !plan.SkipZero {
		cells.fillProduct(len(plan.Slots))
	}

	var regularSlots, pivotSlots []int
	for i := range plan.Slots {
		if slices.Contains(plan.PivotOn, i) {
			pivotSlots = append(pivotSlots, i)
		} else {
			regularSlots = append(regularSlots, i)
		}
	}

	var result cube.Result
	for _, i := range regularSlots {
		result.Columns = append(result.Columns, cube.Column{
			Label: plan.Slots[i].Label,
			Type:  cube.ColumnDimension,
			Name:  plan.Slots[i].Dimension,
		})
	}

	if len(pivotSlots) == 0 {
		for _, measure := range plan.Measures {
			result.Columns = append(result.Columns, cube.Column{
				Label: measure.FullName(),
				Type:  cube.ColumnMeasure,
				Name:  measure.QualifiedName(),
			})
		}

		for _, cell := range cells.sorted() {
			if plan.SkipZero && allZero(cell.values) {
				continue
			}
			result.Rows = append(result.Rows, cube.Row{Keys: cell.keys, Values: cell.values})
		}
	} else {
		result.Columns, result.Rows = pivot(plan, cells, regularSlots, pivotSlots, result.Columns)
	}

	result.Totals = totals(result.Rows, len(result.Columns)-len(regularSlots))
	return result
}

func pivot(
	plan Plan,
	cells *cellTable,
	regularSlots []int,
	pivotSlots []int,
	columns []cube.Column,
) ([]cube.Column, []cube.Row) {
	pivotTable := newCellTable(0)
	for _, cell := range cells.sorted() {
		pivotTable.get(pick(cell.keys, pivotSlots))
	}
	pivotKeys := pivotTable.sorted()
	pivotIndex := make(map[string]int, len(pivotKeys))

	for i, pivotKey := range pivotKeys {
		pivotIndex[keyString(pivotKey.keys)] = i

		parent := pivotLabel(pivotKey.keys)
		for _, measure := range plan.Measures {
			columns = append(columns, cube.Column{
				Label:  measure.Measure.Label,
				Type:   cube.ColumnMeasure,
				Name:   measure.QualifiedName(),
				Parent: parent,
			})
		}
	}

	measureCount := len(plan.Measures)
	rowTable := newCellTable(len(pivotKeys) * measureCount)
	for _, cell := range cells.sorted() {
		row := rowTable.get(pick(cell.keys, regularSlots))
		offset := pivotIndex[keyString(pick(cell.keys, pivotSlots))] * measureCount
		copy(row.values[offset:offset+measureCount], cell.values)
	}

	var rows []cube.Row
	for _, row := range rowTable.sorted() {
		if plan.SkipZero && allZero(row.values) {
			continue
		}
		rows = append(rows, cube.Row{Keys: row.keys, Values: row.values})
	}
	return columns, rows
}

func pivotLabel(keys [][]string) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = cube.Path(key...).String()
	}
	return strings.Join(parts, " | ")
}

func pick(keys [][]string, indices []int) [][]string {
	picked := make([][]string, len(indices))
	for i, index := range indices {
		picked[i] = keys[index]
	}
	return picked
}

func totals(rows []cube.Row, width int) []float64 {
	totals := make([]float64, width)
	for _, row := range rows {
		for i, value := range row.Values {
			if i < width {
				totals[i] += value
			}
		}
	}
	return totals
}

func allZero(values []float64) bool {
	for _, value := range values {
		if value != 0 {
			return false
		}
	}
	return true
}

type cell struct {
	keys   [][]string
	values []float64
}

// cellTable is an insertion-ordered map from slot keys to cells.
type cellTable struct {
	width int
	cells map[string]*cell
	order []string
}

func newCellTable(width int) *cellTable {
	return &cellTable{width: width, cells: make(map[string]*cell)}
}

func (table *cellTable) get(keys [][]string) *cell {
	key := keyString(keys)
	if existing, ok := table.cells[key]; ok {
		return existing
	}

	created := &cell{keys: keys, values: make([]float64, table.width)}
	table.cells[key] = created
	table.order = append(table.order, key)
	return created
}

// fillProduct adds zero cells for every combination of the slot keys seen so far.
func (table *cellTable) fillProduct(slotCount int) {
	if slotCount == 0 || len(table.order) == 0 {
		return
	}

	distinct := make([][][]string, slotCount)
	for slot := range distinct {
		seen := make(map[string]struct{})
		for _, key := range table.order {
			value := table.cells[key].keys[slot]
			joined := strings.Join(value, keySeparator)
			if _, ok := seen[joined]; !ok {
				seen[joined] = struct{}{}
				distinct[slot] = append(distinct[slot], value)
			}
		}
	}

	var combine func(prefix [][]string, slot int)
	combine = func(prefix [][]string, slot int) {
		if slot == slotCount {
			table.get(slices.Clone(prefix))
			return
		}
		for _, value := range distinct[slot] {
			combine(append(prefix, value), slot+1)
		}
	}
	combine(make([][]string, 0, slotCount), 0)
}

func (table *cellTable) sorted() []*cell {
	cells := make([]*cell, len(table.order))
	for i, key := range table.order {
		cells[i] = table.cells[key]
	}

	slices.SortStableFunc(cells, func(a, b *cell) int {
		return slices.CompareFunc(a.keys, b.keys, slices.Compare[[]string])
	})
	return cells
}

const (
	keySeparator  = "\x1f"
	slotSeparator = "\x1e"
)

func keyString(keys [][]string) string {
	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(slotSeparator)
		}
		builder.WriteString(strings.Join(key, keySeparator))
	}
	return builder.String()
}
