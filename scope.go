package mscan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scope owns the reactive state of one viewer session: the version each
// subscriber was last notified at, the turn lock serialising cascades, the
// registered extensions, and the stage graph used for debugging.
type Scope struct {
	turnMu     sync.Mutex
	mu         sync.RWMutex
	versions   map[Subscriber]uint64
	extensions []Extension
	graph      *Graph
	tags       map[string]any
	logger     *zap.Logger
}

// ScopeOption is a modifier for scopes
type ScopeOption func(*Scope)

// WithExtension returns an option that registers an extension to a scope
func WithExtension(ext Extension) ScopeOption {
	return func(s *Scope) {
		if err := s.UseExtension(ext); err != nil {
			panic(err)
		}
	}
}

// WithLogger sets the logger used for scope diagnostics.
func WithLogger(logger *zap.Logger) ScopeOption {
	return func(s *Scope) {
		s.logger = logger
	}
}

// NewScope creates a new scope with optional configuration
func NewScope(opts ...ScopeOption) *Scope {
	s := &Scope{
		versions:   make(map[Subscriber]uint64),
		extensions: []Extension{},
		graph:      NewGraph(),
		tags:       make(map[string]any),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Logger returns the scope's logger.
func (s *Scope) Logger() *zap.Logger {
	return s.logger
}

// Turn runs fn as one logical turn. Every read, write and refresh cascade
// triggered from outside the reactive graph (user input, load completion)
// must enter through Turn. Turn is not reentrant: code already running inside
// a turn (a stage refresh, an invalidation callback) must not call it.
func (s *Scope) Turn(fn func()) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	fn()
}

// version returns the version subscriber was last notified at.
func (s *Scope) version(sub Subscriber) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[sub]
}

// bump advances the subscriber's version if it still equals seen. It
// reports whether the subscriber should be invalidated.
func (s *Scope) bump(sub Subscriber, seen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[sub] != seen {
		return false
	}
	s.versions[sub] = seen + 1
	return true
}

// forget drops the version of a subscriber that will not read again.
func (s *Scope) forget(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, sub)
}

// Refresh runs stage.Refresh wrapped by the scope's extensions.
func (s *Scope) Refresh(stage Refresher) {
	op := &Operation{
		Kind:  OpRefresh,
		Name:  nameOf(stage),
		Scope: s,
	}
	if err := s.Run(op, func() error {
		stage.Refresh()
		return nil
	}); err != nil {
		s.logger.Warn("refresh failed", zap.String("stage", op.Name), zap.Error(err))
	}
}

// Run executes fn as operation op, wrapped by every registered extension
// (last registered wraps first). Errors are reported to each extension's
// OnError hook and returned.
func (s *Scope) Run(op *Operation, fn func() error) error {
	s.mu.RLock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	s.mu.RUnlock()

	if op.Scope == nil {
		op.Scope = s
	}
	op.Started = time.Now()

	next := fn
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		currentNext := next
		next = func() error {
			return ext.Wrap(context.Background(), currentNext, op)
		}
	}

	err := next()
	if err != nil {
		for _, ext := range exts {
			ext.OnError(err, op, s)
		}
	}
	return err
}

// UseExtension registers an extension to the scope
func (s *Scope) UseExtension(ext Extension) error {
	s.mu.Lock()
	s.extensions = append(s.extensions, ext)
	sort.SliceStable(s.extensions, func(i, j int) bool {
		return s.extensions[i].Order() < s.extensions[j].Order()
	})
	s.mu.Unlock()

	return ext.Init(s)
}

// GetTag retrieves a tag value by key
func (s *Scope) GetTag(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.tags[key]
	return val, ok
}

// SetTag stores a tag value by key
func (s *Scope) SetTag(key string, val any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = val
}

// Graph returns the scope's stage graph.
func (s *Scope) Graph() *Graph {
	return s.graph
}

// Dispose releases every extension registered to the scope
func (s *Scope) Dispose() error {
	s.mu.RLock()
	exts := make([]Extension, len(s.extensions))
	copy(exts, s.extensions)
	s.mu.RUnlock()

	for _, ext := range exts {
		if err := ext.Dispose(s); err != nil {
			return fmt.Errorf("disposing extension %s: %w", ext.Name(), err)
		}
	}

	return nil
}
