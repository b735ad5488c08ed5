package mscan

import "sync/atomic"

// Controller gives code outside the reactive graph turn-safe access to a
// cell.
type Controller[T any] struct {
	cell  *Cell[T]
	scope *Scope
}

// Accessor creates a controller for a cell
func Accessor[T any](s *Scope, cell *Cell[T]) *Controller[T] {
	return &Controller[T]{
		cell:  cell,
		scope: s,
	}
}

// Get returns the current value without registering a reader
func (c *Controller[T]) Get() T {
	var val T
	c.scope.Turn(func() {
		val = c.cell.Peek()
	})
	return val
}

// Update writes a new value and lets invalidation run to completion
func (c *Controller[T]) Update(newVal T) {
	c.scope.Turn(func() {
		c.cell.Write(newVal)
	})
}

// Set is an alias for Update
func (c *Controller[T]) Set(newVal T) {
	c.Update(newVal)
}

// Subscribe registers fn to run, inside the writing turn, after the next
// change of the cell. Like any reader it must subscribe again to hear about
// later changes.
func (c *Controller[T]) Subscribe(fn func(T)) {
	c.scope.Turn(func() {
		c.cell.Read(&callbackSubscriber[T]{cell: c.cell, fn: fn})
	})
}

type callbackSubscriber[T any] struct {
	cell *Cell[T]
	fn   func(T)
}

func (s *callbackSubscriber[T]) Invalidate() {
	s.cell.scope.forget(s)
	s.fn(s.cell.Peek())
}

func (s *callbackSubscriber[T]) Name() string {
	return "subscriber(" + s.cell.Name() + ")"
}

// Watch registers fn to run, inside the writing turn, after every change of
// the cell until stop is called. fn must not enter a turn.
func (c *Controller[T]) Watch(fn func(T)) (stop func()) {
	w := &watchSubscriber[T]{cell: c.cell, fn: fn}
	c.scope.Turn(func() {
		c.cell.Read(w)
	})
	return func() {
		w.stopped.Store(true)
	}
}

type watchSubscriber[T any] struct {
	cell    *Cell[T]
	fn      func(T)
	stopped atomic.Bool
}

func (s *watchSubscriber[T]) Invalidate() {
	if s.stopped.Load() {
		s.cell.scope.forget(s)
		return
	}
	s.fn(s.cell.Read(s))
}

func (s *watchSubscriber[T]) Name() string {
	return "watch(" + s.cell.Name() + ")"
}
