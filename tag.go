package mscan

// Tag is a type-safe key for metadata
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the tag value from a scope
func (t Tag[T]) Get(scope *Scope) (T, bool) {
	val, ok := scope.GetTag(t.key)
	if !ok {
		var zero T
		return zero, false
	}
	return val.(T), true
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(scope *Scope, defaultVal T) T {
	if val, ok := t.Get(scope); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value on a scope
func (t Tag[T]) Set(scope *Scope, val T) {
	scope.SetTag(t.key, val)
}

// SessionID tags a scope with the id of the viewer session owning it.
var SessionID = NewTag[string]("session.id")

// WithTag returns an option that stores a tag value on a scope
func WithTag[T any](tag Tag[T], val T) ScopeOption {
	return func(s *Scope) {
		tag.Set(s, val)
	}
}
