package mscan

import "fmt"

// Subscriber is notified when a cell it read has changed.
type Subscriber interface {
	Invalidate()
}

// Named is implemented by subscribers and stages that carry a display name.
type Named interface {
	Name() string
}

// AnyCell is a type-erased view of a cell used for graph export.
type AnyCell interface {
	Name() string
	Subscribers() []Subscriber
}

type reader struct {
	sub     Subscriber
	version uint64
}

// Cell is a memoized value with push-based, once-per-change invalidation of
// the subscribers that read it. Readers must re-register by reading again
// after every change.
type Cell[T any] struct {
	scope   *Scope
	name    string
	value   T
	equal   func(a, b T) bool
	readers []reader
}

// CellOption is a modifier for cells
type CellOption func(*cellConfig)

type cellConfig struct {
	name string
}

// WithName names a cell for logs, metrics and the dependency graph.
func WithName(name string) CellOption {
	return func(c *cellConfig) {
		c.name = name
	}
}

// NewCell creates a cell whose writes are compared with ==.
func NewCell[T comparable](s *Scope, value T, opts ...CellOption) *Cell[T] {
	return NewCellFunc(s, value, func(a, b T) bool { return a == b }, opts...)
}

// NewCellFunc creates a cell whose writes are compared with equal.
func NewCellFunc[T any](s *Scope, value T, equal func(a, b T) bool, opts ...CellOption) *Cell[T] {
	cfg := cellConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Cell[T]{
		scope: s,
		name:  cfg.name,
		value: value,
		equal: equal,
	}
	if c.name == "" {
		c.name = fmt.Sprintf("cell_%p", c)
	}
	s.graph.addCell(c)
	return c
}

// Name returns the cell's name.
func (c *Cell[T]) Name() string {
	return c.name
}

// Read returns the current value and registers sub to be invalidated on
// the next change. A nil subscriber reads without registering.
func (c *Cell[T]) Read(sub Subscriber) T {
	if sub != nil {
		c.readers = append(c.readers, reader{sub: sub, version: c.scope.version(sub)})
	}
	return c.value
}

// Peek returns the current value without registering a reader.
func (c *Cell[T]) Peek() T {
	return c.value
}

// Write replaces the value. Writing an equal value is a no-op. Otherwise
// the reader set is cleared and each previous reader that has not been
// notified since it read is invalidated exactly once.
func (c *Cell[T]) Write(value T) {
	if c.equal(value, c.value) {
		return
	}

	readers := c.readers
	c.readers = nil

	op := &Operation{
		Kind:    OpWrite,
		Name:    c.name,
		Readers: len(readers),
	}
	_ = c.scope.Run(op, func() error {
		c.value = value
		return nil
	})

	for _, r := range readers {
		if c.scope.bump(r.sub, r.version) {
			r.sub.Invalidate()
		}
	}
}

// Subscribers returns the distinct subscribers currently registered.
func (c *Cell[T]) Subscribers() []Subscriber {
	seen := make(map[Subscriber]bool, len(c.readers))
	out := make([]Subscriber, 0, len(c.readers))
	for _, r := range c.readers {
		if seen[r.sub] {
			continue
		}
		seen[r.sub] = true
		out = append(out, r.sub)
	}
	return out
}

func nameOf(v any) string {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
