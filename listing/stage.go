package listing

import (
	"encoding/json"

	"go.uber.org/zap"

	mscan "github.com/pumped-fn/mscan-go"
	"github.com/pumped-fn/mscan-go/testcase"
)

// DetailFunc renders the detail of an expanded record. Returning false
// falls back to the record's indented JSON.
type DetailFunc func(*testcase.TestCase) (string, bool)

// Consumer receives the table model after every render. Show is called
// inside the turn that produced the model; implementations must not call
// back into the stage.
type Consumer interface {
	Show(Model)
}

// Stage is the record-listing stage.
type Stage struct {
	scope    *mscan.Scope
	name     string
	input    *mscan.Cell[*testcase.View]
	output   *mscan.Cell[*testcase.View]
	detail   DetailFunc
	consumer Consumer
	logger   *zap.Logger

	initial   int
	increment int
	limit     int
	expanded  map[string]bool
	current   *testcase.View
	model     Model
}

// Option configures a Stage
type Option func(*Stage)

// WithDetail sets the detail renderer.
func WithDetail(fn DetailFunc) Option {
	return func(s *Stage) {
		s.detail = fn
	}
}

// WithConsumer sets the model consumer.
func WithConsumer(c Consumer) Option {
	return func(s *Stage) {
		s.consumer = c
	}
}

// WithPaging sets the first page size and the page increment.
func WithPaging(initial, increment int) Option {
	return func(s *Stage) {
		if initial > 0 {
			s.initial = initial
		}
		if increment > 0 {
			s.increment = increment
		}
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

// New creates a listing stage reading input and refreshes it once. Call
// inside a turn.
func New(scope *mscan.Scope, input *mscan.Cell[*testcase.View], opts ...Option) *Stage {
	s := &Stage{
		scope:     scope,
		name:      "listing",
		input:     input,
		logger:    zap.NewNop(),
		initial:   InitialLimit,
		increment: Increment,
		expanded:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limit = s.initial
	s.output = mscan.NewCell[*testcase.View](scope, nil, mscan.WithName(s.name+".out"))
	scope.Refresh(s)
	return s
}

// Builder returns a pipeline step appending a listing stage.
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

// Refresh re-renders the table from the input and passes the input on.
func (s *Stage) Refresh() {
	input := s.input.Read(s)
	s.render(input)
	s.output.Write(input)
}

// Model returns the latest table model. Call inside a turn.
func (s *Stage) Model() Model {
	return s.model
}

// Limit returns the number of rows shown.
func (s *Stage) Limit() int {
	return s.limit
}

// More extends the page: the first call shows one increment of rows, later
// calls add one increment more.
func (s *Stage) More() {
	s.scope.Turn(func() {
		if s.limit < s.increment {
			s.limit = 0
		}
		s.limit += s.increment
		s.render(s.current)
	})
}

// Toggle expands or collapses the record with the given id. Expansion
// state survives refreshes.
func (s *Stage) Toggle(id string) {
	s.scope.Turn(func() {
		if s.expanded[id] {
			delete(s.expanded, id)
		} else {
			s.expanded[id] = true
		}
		s.render(s.current)
	})
}

// IsExpanded reports whether the record with the given id is expanded.
func (s *Stage) IsExpanded(id string) bool {
	return s.expanded[id]
}

func (s *Stage) render(input *testcase.View) {
	s.current = input
	cols := Columns(input.Take(s.limit))

	m := Model{Columns: cols, Total: input.Len()}
	empty := testcase.New(nil)
	prev := empty
	for i, tc := range input.All() {
		if i == s.limit {
			m.More = input.Len() - i
			break
		}

		row := Row{ID: tc.ID(), Record: tc, Cells: make([]Cell, len(cols))}
		for j, col := range cols {
			pv, pok := prev.Get(col)
			cv, cok := tc.Get(col)
			if sameValue(pv, pok, cv, cok) {
				row.Cells[j] = Cell{Blank: true}
				continue
			}
			prev = empty
			row.Cells[j] = FormatCell(tc, col)
		}
		prev = tc

		if s.expanded[row.ID] {
			row.Expanded = true
			row.Detail = s.detailOf(tc)
		}
		m.Rows = append(m.Rows, row)
	}

	s.model = m
	if s.consumer != nil {
		s.consumer.Show(m)
	}
}

func (s *Stage) detailOf(tc *testcase.TestCase) string {
	if s.detail != nil {
		if text, ok := s.detail(tc); ok {
			return text
		}
	}
	data, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		s.logger.Warn("rendering detail", zap.String("id", tc.ID()), zap.Error(err))
		return testcase.NA
	}
	return string(data)
}
