package mscan

// StageBuilder constructs a stage reading in.
type StageBuilder[T any] func(s *Scope, in *Cell[T]) Stage[T]

// Pipeline chains stages so that each stage's output cell is the next
// stage's input. Invalidation, not an explicit call graph, carries changes
// down the chain.
type Pipeline[T any] struct {
	scope   *Scope
	root    *Cell[T]
	current *Cell[T]
	stages  []Stage[T]
}

// NewPipeline starts a pipeline rooted at input.
func NewPipeline[T any](s *Scope, input *Cell[T]) *Pipeline[T] {
	return &Pipeline[T]{
		scope:   s,
		root:    input,
		current: input,
	}
}

// Then appends the stage built by build and makes its output the
// pipeline's current cell.
func (p *Pipeline[T]) Then(build StageBuilder[T]) *Pipeline[T] {
	st := build(p.scope, p.current)
	p.scope.graph.AddStage(st.Name(), p.current, st.Output())
	p.stages = append(p.stages, st)
	p.current = st.Output()
	return p
}

// Branch returns a new pipeline sharing this pipeline's current cell, so
// several stages can fan out from one upstream.
func (p *Pipeline[T]) Branch() *Pipeline[T] {
	return &Pipeline[T]{
		scope:   p.scope,
		root:    p.current,
		current: p.current,
	}
}

// Root returns the cell the pipeline started from.
func (p *Pipeline[T]) Root() *Cell[T] {
	return p.root
}

// Current returns the output cell of the last stage.
func (p *Pipeline[T]) Current() *Cell[T] {
	return p.current
}

// Stages returns the stages in chain order.
func (p *Pipeline[T]) Stages() []Stage[T] {
	out := make([]Stage[T], len(p.stages))
	copy(out, p.stages)
	return out
}
