package heatmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/testcase"
)

func tc(calls, runid string, pathid, nshared int) *testcase.TestCase {
	r := testcase.New(map[string]any{
		testcase.FieldCalls:   calls,
		testcase.FieldPathID:  json.Number(jsonInt(pathid)),
		testcase.FieldTestNo:  json.Number("0"),
		testcase.FieldRunID:   runid,
		testcase.FieldNShared: json.Number(jsonInt(nshared)),
	})
	r.Rebuild()
	return r
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPosition_Symmetric(t *testing.T) {
	calls := []string{"open", "stat", "read"}

	x1, y1 := Position(calls, []string{"open", "read"})
	x2, y2 := Position(calls, []string{"read", "open"})
	assert.Equal(t, [2]int{x1, y1}, [2]int{x2, y2})
	assert.Equal(t, [2]int{0, 0}, [2]int{x1, y1})

	x, y := Position(calls, []string{"stat"})
	assert.Equal(t, [2]int{1, 1}, [2]int{x, y}, "single call maps to the diagonal")

	x, y = Position(calls, []string{"read"})
	assert.Equal(t, [2]int{0, 2}, [2]int{x, y})
}

func TestAggregate(t *testing.T) {
	records := testcase.NewView([]*testcase.TestCase{
		tc("open_read", "linux", 0, 1),
		tc("read_open", "linux", 1, 0),
		tc("stat", "linux", 2, 2),
		tc("open_stat", "sv6", 3, 0),
	})

	res := Aggregate(records, HasShared, FacetByField("runid"), nil)
	assert.Equal(t, []string{"open", "stat", "read"}, res.Calls)
	require.Len(t, res.Facets, 2)

	linux, ok := res.Facet("linux")
	require.True(t, ok)
	cells := linux.CellsAt(0, 0)
	require.Len(t, cells, 2, "written orders of a pair are separate cells at one coordinate")
	assert.Equal(t, "open_read", cells[0].Calls)
	assert.Equal(t, 1, cells[0].Matched)
	assert.Equal(t, 0, cells[1].Matched)

	stat, ok := linux.CellAt(1, 1)
	require.True(t, ok)
	assert.Equal(t, 1, stat.Total)
	assert.InDelta(t, 1.0, stat.Fraction(), 1e-9)

	sv6, _ := res.Facet("sv6")
	c, ok := sv6.CellAt(1, 0)
	require.True(t, ok)
	assert.Equal(t, "open_stat", c.Calls)
	assert.Equal(t, res.Calls, sv6.Calls, "facets share the axis")

	assert.True(t, linux.InGrid(1, 1))
	assert.False(t, linux.InGrid(2, 1))
	assert.False(t, linux.InGrid(-1, 0))
}

func TestAggregate_Empty(t *testing.T) {
	res := Aggregate(testcase.Empty(), nil, nil, nil)
	assert.Empty(t, res.Calls)
	assert.Empty(t, res.Facets)
}

func TestHasNonEmpty(t *testing.T) {
	r := testcase.New(map[string]any{"hits": []any{"a"}, "none": []any{}})
	assert.True(t, HasNonEmpty("hits")(r))
	assert.False(t, HasNonEmpty("none")(r))
	assert.False(t, HasNonEmpty("missing")(r))
	assert.True(t, HasNonEmpty("shared")(tc("stat", "r", 0, 1)))
}

func TestLayout(t *testing.T) {
	l := NewLayout(0).FitLabels([]string{"open", "memwrite"}, func(s string) float64 {
		return float64(len(s))
	})
	assert.Equal(t, 8.0, l.LabelWidth)

	ox, oy := l.Origin()
	assert.Equal(t, 16.0, ox)
	assert.Equal(t, 16.0, oy)

	for _, c := range []Coord{{0, 0}, {1, 0}, {0, 2}, {1, 1}} {
		px, py := l.CellOrigin(c)
		got, ok := l.CoordToCell(3, px+1, py+1)
		require.True(t, ok, "%v", c)
		assert.Equal(t, c, got)
	}

	_, ok := l.CoordToCell(3, ox-1, oy)
	assert.False(t, ok, "left of the grid")
	px, py := l.CellOrigin(Coord{2, 1})
	_, ok = l.CoordToCell(3, px, py)
	assert.False(t, ok, "past the hypotenuse")

	w, h := l.Size(3)
	assert.Equal(t, ox+3*CellWidth+Margin, w)
	assert.Equal(t, oy+3*CellHeight+Margin, h)

	assert.Equal(t, "read", ColumnLabel([]string{"open", "stat", "read"}, 0))
}

type recordingSurface struct {
	draws []DrawRequest
}

func (r *recordingSurface) Draw(req DrawRequest) {
	r.draws = append(r.draws, req)
}

func (r *recordingSurface) last() DrawRequest {
	return r.draws[len(r.draws)-1]
}

func newStage(t *testing.T, records *testcase.View, opts ...Option) (*mscan.Scope, *mscan.Cell[*testcase.View], *Stage) {
	t.Helper()
	scope := mscan.NewScope()
	input := mscan.NewCell(scope, records, mscan.WithName("records"))
	var s *Stage
	scope.Turn(func() { s = New(scope, input, opts...) })
	return scope, input, s
}

func output(scope *mscan.Scope, s *Stage) *testcase.View {
	var v *testcase.View
	scope.Turn(func() { v = s.Output().Peek() })
	return v
}

func TestStage_Selection(t *testing.T) {
	a := tc("open_read", "linux", 0, 1)
	b := tc("read_open", "linux", 1, 3)
	c := tc("open_read", "linux", 2, 0)
	d := tc("stat", "linux", 3, 1)
	records := testcase.NewView([]*testcase.TestCase{a, b, c, d})

	surface := &recordingSurface{}
	scope, _, s := newStage(t, records, WithSurface(surface))

	assert.Same(t, records, output(scope, s), "no selection passes the input through")
	require.Len(t, surface.draws, 1)
	assert.Nil(t, surface.last().Selected)

	s.Select("", 0, 0)
	narrowed := output(scope, s)
	assert.Equal(t, []*testcase.TestCase{a, b}, narrowed.Slice(), "matched records of every cell at the coordinate")
	require.NotNil(t, surface.last().Selected)
	assert.Equal(t, Coord{0, 0}, *surface.last().Selected)

	s.Select("", 0, 0)
	assert.Same(t, narrowed, output(scope, s), "reselecting the same cell keeps the view")

	s.Select("", 2, 2)
	assert.Same(t, records, output(scope, s), "outside the grid clears the selection")
	scope.Turn(func() { assert.False(t, s.Selection().Valid) })

	s.Select("", 1, 1)
	assert.Equal(t, []*testcase.TestCase{d}, output(scope, s).Slice())
	s.ClearSelection()
	assert.Same(t, records, output(scope, s))
}

func TestStage_SelectionSurvivesRefresh(t *testing.T) {
	a := tc("open_read", "linux", 0, 1)
	records := testcase.NewView([]*testcase.TestCase{a})
	scope, input, s := newStage(t, records, WithFacets(FacetByField("runid")))

	s.Select("linux", 0, 0)
	assert.Equal(t, []*testcase.TestCase{a}, output(scope, s).Slice())

	e := tc("open_read", "linux", 4, 2)
	scope.Turn(func() { input.Write(testcase.NewView([]*testcase.TestCase{a, e})) })
	scope.Turn(func() {
		sel := s.Selection()
		assert.True(t, sel.Valid)
		assert.Equal(t, "linux", sel.Facet)
	})
	assert.Equal(t, []*testcase.TestCase{a, e}, output(scope, s).Slice())

	other := testcase.NewView([]*testcase.TestCase{tc("stat", "sv6", 0, 0)})
	scope.Turn(func() { input.Write(other) })
	scope.Turn(func() { assert.False(t, s.Selection().Valid, "selection dropped with its facet") })
	assert.Same(t, other, output(scope, s))
}

func TestStage_PointerMapping(t *testing.T) {
	records := testcase.NewView([]*testcase.TestCase{
		tc("open_stat", "r", 0, 1),
		tc("stat", "r", 1, 0),
	})
	surface := &recordingSurface{}
	layout := NewLayout(10)
	scope, _, s := newStage(t, records,
		WithSurface(surface), WithLayout(layout), WithFacets(FacetByField("runid")))

	px, py := layout.CellOrigin(Coord{X: 0, Y: 0})
	s.HoverAt("r", px+1, py+1)
	assert.Equal(t, "r", surface.last().Facet.Label)
	require.NotNil(t, surface.last().Hover)
	assert.Equal(t, Coord{0, 0}, *surface.last().Hover)
	scope.Turn(func() { assert.False(t, s.Selection().Valid, "hover does not select") })

	s.SelectAt("r", px+1, py+1)
	scope.Turn(func() {
		sel := s.Selection()
		assert.True(t, sel.Valid)
		assert.Equal(t, Coord{0, 0}, sel.Coord)
	})
	assert.Equal(t, 1, output(scope, s).Len())

	s.SelectAt("r", 0, 0)
	scope.Turn(func() { assert.False(t, s.Selection().Valid) })

	s.HoverAt("r", 0, 0)
	assert.Nil(t, surface.last().Hover)
}

func TestStage_EmptyInput(t *testing.T) {
	surface := &recordingSurface{}
	scope, _, s := newStage(t, testcase.Empty(), WithSurface(surface))

	assert.Empty(t, surface.draws)
	s.Select("", 0, 0)
	assert.Equal(t, 0, output(scope, s).Len())
	scope.Turn(func() {
		assert.False(t, s.Selection().Valid)
		_, ok := s.CellAt("", 0, 0)
		assert.False(t, ok)
	})
}
