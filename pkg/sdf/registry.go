package sdf

import (
	"fmt"
	"sort"
	"sync"
)

// ReadFunc decodes the payload of one registered type. Composite shapes use
// reg to read their children.
type ReadFunc[T any] func(r *Reader, reg *Registry[T]) (T, error)

// Registry maps shape type names to readers. A type is identified on the
// wire by its ordinal in the sorted list of registered names, so peers that
// register the same set of types agree on every ordinal regardless of
// registration order.
type Registry[T any] struct {
	mu      sync.RWMutex
	readers map[string]ReadFunc[T]
	names   []string
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{readers: make(map[string]ReadFunc[T])}
}

// Register adds or replaces the reader for name.
func (g *Registry[T]) Register(name string, read ReadFunc[T]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.readers[name]; !ok {
		g.names = append(g.names, name)
		sort.Strings(g.names)
	}
	g.readers[name] = read
}

// Index returns the ordinal of name.
func (g *Registry[T]) Index(name string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i := sort.SearchStrings(g.names, name)
	if i < len(g.names) && g.names[i] == name {
		return i, true
	}
	return 0, false
}

// Names returns the registered names in ordinal order.
func (g *Registry[T]) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.names...)
}

// WriteType writes the ordinal of name.
func (g *Registry[T]) WriteType(w *Writer, name string) error {
	i, ok := g.Index(name)
	if !ok {
		return fmt.Errorf("%w: %q is not registered", ErrUnknownType, name)
	}
	w.Int32(int32(i))
	return w.Err()
}

// Read reads a type ordinal and dispatches to its reader.
func (g *Registry[T]) Read(r *Reader) (T, error) {
	var zero T
	i := r.Int32()
	if err := r.Err(); err != nil {
		return zero, err
	}
	g.mu.RLock()
	var read ReadFunc[T]
	if i >= 0 && int(i) < len(g.names) {
		read = g.readers[g.names[i]]
	}
	g.mu.RUnlock()
	if read == nil {
		return zero, fmt.Errorf("%w: ordinal %d", ErrUnknownType, i)
	}
	v, err := read(r, g)
	if err != nil {
		return zero, err
	}
	if err := r.Err(); err != nil {
		return zero, err
	}
	return v, nil
}
