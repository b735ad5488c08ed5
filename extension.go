package mscan

import (
	"context"
	"time"
)

// Extension provides hooks into the reactive lifecycle
type Extension interface {
	// Name returns the extension's name
	Name() string

	// Order determines extension execution order (lower = earlier)
	Order() int

	// Init is called when the extension is registered to a scope
	Init(scope *Scope) error

	// Wrap intercepts operations (refresh, write, merge, load)
	Wrap(ctx context.Context, next func() error, op *Operation) error

	// OnError handles errors returned by wrapped operations
	OnError(err error, op *Operation, scope *Scope)

	// Dispose is called when the scope is disposed
	Dispose(scope *Scope) error
}

// BaseExtension provides default implementations for Extension methods
type BaseExtension struct {
	name string
}

// NewBaseExtension creates a new base extension with the given name
func NewBaseExtension(name string) BaseExtension {
	return BaseExtension{name: name}
}

func (e *BaseExtension) Name() string {
	return e.name
}

func (e *BaseExtension) Order() int {
	return 100
}

func (e *BaseExtension) Init(scope *Scope) error {
	return nil
}

func (e *BaseExtension) Wrap(ctx context.Context, next func() error, op *Operation) error {
	return next()
}

func (e *BaseExtension) OnError(err error, op *Operation, scope *Scope) {
}

func (e *BaseExtension) Dispose(scope *Scope) error {
	return nil
}

// Operation describes what operation is happening
type Operation struct {
	Kind    OperationKind
	Name    string
	Scope   *Scope
	Started time.Time

	// Readers is the number of registered readers a write found.
	Readers int
	// Records is the number of records a merge or load carried.
	Records int
}

// OperationKind represents the type of operation
type OperationKind string

const (
	// OpRefresh indicates a stage recompute
	OpRefresh OperationKind = "refresh"
	// OpWrite indicates an effective cell write
	OpWrite OperationKind = "write"
	// OpMerge indicates records merged into a dataset
	OpMerge OperationKind = "merge"
	// OpLoad indicates a source fetch and decode
	OpLoad OperationKind = "load"
)
