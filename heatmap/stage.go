package heatmap

import (
	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/testcase"
)

// Selection is the selected cell, if any.
type Selection struct {
	Valid bool
	Facet string
	Coord
}

// DrawRequest describes everything a surface needs to paint one facet.
type DrawRequest struct {
	Facet    *Facet
	Layout   Layout
	Hover    *Coord
	Selected *Coord
}

// Surface paints facets. Draw is called inside the turn that produced the
// request; implementations must not call back into the stage.
type Surface interface {
	Draw(req DrawRequest)
}

// Stage is the heatmap stage. Its output is its input when nothing is
// selected, or the matched records of the selected cell.
type Stage struct {
	scope    *mscan.Scope
	name     string
	input    *mscan.Cell[*testcase.View]
	output   *mscan.Cell[*testcase.View]
	pred     Predicate
	facetKey FacetFunc
	order    *testcase.CallOrder
	layout   Layout
	surface  Surface
	logger   *zap.Logger

	lastInput *testcase.View
	result    *Result
	selection Selection
	hover     Selection
}

// Option configures a Stage
type Option func(*Stage)

// WithPredicate sets the match predicate (default HasShared).
func WithPredicate(pred Predicate) Option {
	return func(s *Stage) {
		s.pred = pred
	}
}

// WithFacets sets the facet classifier (default SingleFacet).
func WithFacets(fn FacetFunc) Option {
	return func(s *Stage) {
		s.facetKey = fn
	}
}

// WithCallOrder sets the canonical operation order of the axis.
func WithCallOrder(order *testcase.CallOrder) Option {
	return func(s *Stage) {
		s.order = order
	}
}

// WithLayout sets the grid geometry used for pointer mapping.
func WithLayout(layout Layout) Option {
	return func(s *Stage) {
		s.layout = layout
	}
}

// WithSurface sets the surface receiving draw requests.
func WithSurface(surface Surface) Option {
	return func(s *Stage) {
		s.surface = surface
	}
}

// WithName sets the stage name.
func WithName(name string) Option {
	return func(s *Stage) {
		s.name = name
	}
}

// WithLogger sets the stage's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// New creates a heatmap stage reading input and refreshes it once. Call
// inside a turn.
func New(scope *mscan.Scope, input *mscan.Cell[*testcase.View], opts ...Option) *Stage {
	s := &Stage{
		scope:    scope,
		name:     "heatmap",
		input:    input,
		pred:     HasShared,
		facetKey: SingleFacet,
		order:    testcase.DefaultOrder,
		layout:   NewLayout(0),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pred == nil {
		s.pred = HasShared
	}
	s.output = mscan.NewCell[*testcase.View](scope, nil, mscan.WithName(s.name+".out"))
	scope.Refresh(s)
	return s
}

// Builder returns a pipeline step appending a heatmap stage.
func Builder(opts ...Option) mscan.StageBuilder[*testcase.View] {
	return func(scope *mscan.Scope, in *mscan.Cell[*testcase.View]) mscan.Stage[*testcase.View] {
		return New(scope, in, opts...)
	}
}

func (s *Stage) Name() string {
	return s.name
}

func (s *Stage) Output() *mscan.Cell[*testcase.View] {
	return s.output
}

func (s *Stage) Invalidate() {
	s.scope.Refresh(s)
}

// Refresh re-aggregates the input, carries the selection over to a facet
// with the same label, repaints and republishes the output.
func (s *Stage) Refresh() {
	input := s.input.Read(s)
	s.result = Aggregate(input, s.pred, s.facetKey, s.order)

	if s.selection.Valid {
		if _, ok := s.result.Facet(s.selection.Facet); !ok {
			s.logger.Debug("selection dropped", zap.String("facet", s.selection.Facet))
			s.selection = Selection{}
		}
	}
	if s.hover.Valid {
		if _, ok := s.result.Facet(s.hover.Facet); !ok {
			s.hover = Selection{}
		}
	}

	for _, f := range s.result.Facets {
		s.draw(f)
	}
	s.setOutput(input)
}

// Result returns the latest aggregation. Call inside a turn.
func (s *Stage) Result() *Result {
	return s.result
}

// Selection returns the current selection. Call inside a turn.
func (s *Stage) Selection() Selection {
	return s.selection
}

// Layout returns the grid geometry.
func (s *Stage) Layout() Layout {
	return s.layout
}

// CellAt returns the cell at (x, y) of the named facet. Call inside a turn.
func (s *Stage) CellAt(facet string, x, y int) (*Cell, bool) {
	if s.result == nil {
		return nil, false
	}
	f, ok := s.result.Facet(facet)
	if !ok {
		return nil, false
	}
	return f.CellAt(x, y)
}

// Select selects (x, y) of the named facet and republishes the output. A
// coordinate outside the facet's grid, or an unknown facet, clears the
// selection instead.
func (s *Stage) Select(facet string, x, y int) {
	s.scope.Turn(func() {
		s.selectLocked(facet, x, y)
	})
}

// SelectAt selects the cell under a surface position of the named facet.
func (s *Stage) SelectAt(facet string, px, py float64) {
	s.scope.Turn(func() {
		f, ok := s.result.Facet(facet)
		if !ok {
			s.selectLocked("", -1, -1)
			return
		}
		c, ok := s.layout.CoordToCell(len(f.Calls), px, py)
		if !ok {
			s.selectLocked("", -1, -1)
			return
		}
		s.selectLocked(facet, c.X, c.Y)
	})
}

// ClearSelection clears the selection and republishes the input.
func (s *Stage) ClearSelection() {
	s.scope.Turn(func() {
		s.selectLocked("", -1, -1)
	})
}

func (s *Stage) selectLocked(facet string, x, y int) {
	old := s.selection
	s.selection = Selection{}
	if f, ok := s.result.Facet(facet); ok && f.InGrid(x, y) {
		s.selection = Selection{Valid: true, Facet: facet, Coord: Coord{X: x, Y: y}}
	}

	s.redraw(s.selection.Facet)
	if old.Valid && old.Facet != s.selection.Facet {
		s.redraw(old.Facet)
	}
	s.setOutput(s.lastInput)
}

// Hover marks (x, y) of the named facet as hovered and repaints it.
func (s *Stage) Hover(facet string, x, y int) {
	s.scope.Turn(func() {
		old := s.hover
		s.hover = Selection{}
		if f, ok := s.result.Facet(facet); ok && f.InGrid(x, y) {
			s.hover = Selection{Valid: true, Facet: facet, Coord: Coord{X: x, Y: y}}
		}
		s.redraw(s.hover.Facet)
		if old.Valid && old.Facet != s.hover.Facet {
			s.redraw(old.Facet)
		}
	})
}

// HoverAt hovers the cell under a surface position of the named facet.
func (s *Stage) HoverAt(facet string, px, py float64) {
	x, y := -1, -1
	s.scope.Turn(func() {
		if f, ok := s.result.Facet(facet); ok {
			if c, ok := s.layout.CoordToCell(len(f.Calls), px, py); ok {
				x, y = c.X, c.Y
			}
		}
	})
	s.Hover(facet, x, y)
}

func (s *Stage) redraw(label string) {
	if f, ok := s.result.Facet(label); ok {
		s.draw(f)
	}
}

func (s *Stage) draw(f *Facet) {
	if s.surface == nil {
		return
	}
	req := DrawRequest{Facet: f, Layout: s.layout}
	if s.hover.Valid && s.hover.Facet == f.Label {
		c := s.hover.Coord
		req.Hover = &c
	}
	if s.selection.Valid && s.selection.Facet == f.Label {
		c := s.selection.Coord
		req.Selected = &c
	}
	s.surface.Draw(req)
}

// setOutput publishes input unchanged when nothing is selected, otherwise
// the matched records of every cell at the selected coordinate. Narrowing
// the same input to the same records keeps the previous output view.
func (s *Stage) setOutput(input *testcase.View) {
	prevInput := s.lastInput
	s.lastInput = input

	if !s.selection.Valid {
		s.output.Write(input)
		return
	}

	f, _ := s.result.Facet(s.selection.Facet)
	var matched []*testcase.TestCase
	for _, c := range f.CellsAt(s.selection.X, s.selection.Y) {
		for _, tc := range c.TestCases {
			if s.pred(tc) {
				matched = append(matched, tc)
			}
		}
	}
	out := testcase.NewView(matched)

	if prev := s.output.Peek(); prev != nil && prev != input && input == prevInput && prev.SameItems(out) {
		return
	}
	s.output.Write(out)
}
