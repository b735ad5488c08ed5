// Package heatmap groups test cases into facets and triangular grids of
// call-pair cells, and narrows its output to a selected cell.
package heatmap

import (
	"github.com/pumped-fn/mscan-go/testcase"
)

// Predicate decides whether a record counts as matched.
type Predicate func(*testcase.TestCase) bool

// FacetFunc classifies a record into a facet.
type FacetFunc func(*testcase.TestCase) any

// SingleFacet puts every record in one facet labelled "".
func SingleFacet(*testcase.TestCase) any {
	return ""
}

// FacetByField facets records by the value of a field.
func FacetByField(name string) FacetFunc {
	return func(tc *testcase.TestCase) any {
		v, _ := tc.Get(name)
		return v
	}
}

// HasShared matches records that carry shared state.
func HasShared(tc *testcase.TestCase) bool {
	return tc.HasShared()
}

// HasNonEmpty matches records whose named field is a non-empty list.
func HasNonEmpty(name string) Predicate {
	if name == testcase.FieldShared {
		return HasShared
	}
	return func(tc *testcase.TestCase) bool {
		v, _ := tc.Get(name)
		list, ok := v.([]any)
		return ok && len(list) > 0
	}
}

// Coord is a grid coordinate.
type Coord struct {
	X, Y int
}

// Cell aggregates the records of one facet whose call pair maps to one grid
// coordinate.
type Cell struct {
	X, Y int
	// Calls is the raw call sequence the cell was grouped by.
	Calls     string
	Total     int
	Matched   int
	TestCases []*testcase.TestCase
}

// Fraction returns Matched/Total.
func (c *Cell) Fraction() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Matched) / float64(c.Total)
}

// Facet is a named partition of records with its own grid.
type Facet struct {
	Label string
	// Calls is the shared axis, ordered canonically.
	Calls []string
	Cells []*Cell
}

// CellAt returns the cell at (x, y). When several call sequences map to the
// same coordinate the first one grouped is returned.
func (f *Facet) CellAt(x, y int) (*Cell, bool) {
	for _, c := range f.Cells {
		if c.X == x && c.Y == y {
			return c, true
		}
	}
	return nil, false
}

// CellsAt returns every cell at (x, y).
func (f *Facet) CellsAt(x, y int) []*Cell {
	var out []*Cell
	for _, c := range f.Cells {
		if c.X == x && c.Y == y {
			out = append(out, c)
		}
	}
	return out
}

// InGrid reports whether (x, y) lies in the triangular grid.
func (f *Facet) InGrid(x, y int) bool {
	n := len(f.Calls)
	return x >= 0 && y >= 0 && y <= n-x-1
}

// Result is one aggregation of a record sequence.
type Result struct {
	Calls  []string
	Facets []*Facet
}

// Facet returns the facet with the given label.
func (r *Result) Facet(label string) (*Facet, bool) {
	for _, f := range r.Facets {
		if f.Label == label {
			return f, true
		}
	}
	return nil, false
}

// Axis returns the distinct operation names of all records in canonical
// order.
func Axis(records *testcase.View, order *testcase.CallOrder) []string {
	seen := make(map[string]bool)
	var calls []string
	for _, tc := range records.All() {
		for _, name := range tc.CallNames() {
			if !seen[name] {
				seen[name] = true
				calls = append(calls, name)
			}
		}
	}
	order.Sort(calls)
	return calls
}

// Position maps a call sequence to its grid coordinate on axis calls. The
// grid is symmetric: "a_b" and "b_a" share a cell. A sequence naming one
// operation maps to the diagonal.
func Position(calls []string, seq []string) (x, y int) {
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c] = i
	}
	return position(index, len(calls), seq)
}

func position(index map[string]int, n int, seq []string) (x, y int) {
	c1 := lookup(index, seq, 0)
	c2 := c1
	if len(seq) > 1 {
		c2 = lookup(index, seq, 1)
	}
	if c1 <= c2 {
		return n - c2 - 1, c1
	}
	return n - c1 - 1, c2
}

func lookup(index map[string]int, seq []string, i int) int {
	if i >= len(seq) {
		return -1
	}
	if idx, ok := index[seq[i]]; ok {
		return idx
	}
	return -1
}

// Aggregate groups records into facets and cells. Facets and cells appear
// in the order their first record appears in records. pred is not guarded:
// a panic propagates to the caller.
func Aggregate(records *testcase.View, pred Predicate, facetKey FacetFunc, order *testcase.CallOrder) *Result {
	if facetKey == nil {
		facetKey = SingleFacet
	}
	if order == nil {
		order = testcase.DefaultOrder
	}

	calls := Axis(records, order)
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c] = i
	}

	res := &Result{Calls: calls}
	facets := make(map[string]*Facet)
	cells := make(map[*Facet]map[string]*Cell)

	for _, tc := range records.All() {
		label := testcase.FormatValue(facetKey(tc))
		facet, ok := facets[label]
		if !ok {
			facet = &Facet{Label: label, Calls: calls}
			facets[label] = facet
			cells[facet] = make(map[string]*Cell)
			res.Facets = append(res.Facets, facet)
		}

		seq := tc.Calls()
		cell, ok := cells[facet][seq]
		if !ok {
			x, y := position(index, len(calls), tc.CallNames())
			cell = &Cell{X: x, Y: y, Calls: seq}
			cells[facet][seq] = cell
			facet.Cells = append(facet.Cells, cell)
		}

		cell.TestCases = append(cell.TestCases, tc)
		cell.Total++
		if pred != nil && pred(tc) {
			cell.Matched++
		}
	}
	return res
}
