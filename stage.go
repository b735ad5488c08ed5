package mscan

// Refresher recomputes a stage's output from its current input.
type Refresher interface {
	Refresh()
}

// Stage reads one upstream cell and owns exactly one output cell. Refresh
// re-reads the input (registering the stage as a reader), recomputes and
// writes the output. Writing an equal value is a no-op, so an unchanged
// result does not disturb downstream stages.
type Stage[T any] interface {
	Subscriber
	Refresher
	Name() string
	Output() *Cell[T]
}

// FuncStage derives its output from its input with a pure function.
type FuncStage[T comparable] struct {
	scope  *Scope
	name   string
	input  *Cell[T]
	output *Cell[T]
	fn     func(T) T
}

// NewFuncStage creates a stage computing fn(input) and refreshes it once.
func NewFuncStage[T comparable](s *Scope, name string, input *Cell[T], fn func(T) T) *FuncStage[T] {
	var zero T
	st := &FuncStage[T]{
		scope:  s,
		name:   name,
		input:  input,
		output: NewCell(s, zero, WithName(name+".out")),
		fn:     fn,
	}
	s.Refresh(st)
	return st
}

func (f *FuncStage[T]) Name() string {
	return f.name
}

func (f *FuncStage[T]) Output() *Cell[T] {
	return f.output
}

func (f *FuncStage[T]) Refresh() {
	f.output.Write(f.fn(f.input.Read(f)))
}

func (f *FuncStage[T]) Invalidate() {
	f.scope.Refresh(f)
}
