package world

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
)

// Brush is one declarative edit. Bump Version whenever Shape, Resource or
// Operator changes so BrushSet can tell which chunks to rebuild.
type Brush[S any] struct {
	ID       string
	Version  int
	Shape    S
	Resource *sdf.Resource
	Operator sdf.Operator
}

func (b Brush[S]) modification() Modification[S] {
	return Modification[S]{Shape: b.Shape, Resource: b.Resource, Operator: b.Operator}
}

// BrushSet keeps a world in sync with a list of brushes, such as the output
// of an editor or a script that is re-evaluated on every change.
type BrushSet[K comparable, S any] struct {
	world *World[K, S]

	mu    sync.Mutex
	prev  map[string]Brush[S]
	order []string
}

// NewBrushSet returns a brush set driving w.
func NewBrushSet[K comparable, S any](w *World[K, S]) *BrushSet[K, S] {
	return &BrushSet[K, S]{world: w, prev: make(map[string]Brush[S])}
}

// Apply replaces the world's log with brushes, in order. Only chunks reached
// by added, removed or re-versioned brushes are rebuilt. It reports whether
// anything changed.
func (b *BrushSet[K, S]) Apply(ctx context.Context, brushes []Brush[S]) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make(map[string]Brush[S], len(brushes))
	order := make([]string, 0, len(brushes))
	mods := make([]Modification[S], 0, len(brushes))
	var changed []Modification[S]
	for _, br := range brushes {
		if _, dup := next[br.ID]; dup {
			return false, fmt.Errorf("world: duplicate brush id %q", br.ID)
		}
		next[br.ID] = br
		order = append(order, br.ID)
		mods = append(mods, br.modification())

		old, ok := b.prev[br.ID]
		if ok && old.Version == br.Version {
			continue
		}
		if ok {
			changed = append(changed, old.modification())
		}
		changed = append(changed, br.modification())
	}
	for id, old := range b.prev {
		if _, ok := next[id]; !ok {
			changed = append(changed, old.modification())
		}
	}
	if len(changed) == 0 && b.sameOrder(order) {
		return false, nil
	}
	if !b.sameOrder(order) {
		// Reordering changes the result of every chunk the brushes share.
		changed = nil
	}

	if err := b.world.SetModifications(ctx, mods, changed); err != nil {
		return false, err
	}
	b.prev = next
	b.order = order
	return true, nil
}

// sameOrder reports whether the surviving brushes keep their relative order.
func (b *BrushSet[K, S]) sameOrder(order []string) bool {
	var kept []string
	for _, id := range b.order {
		for _, o := range order {
			if o == id {
				kept = append(kept, id)
				break
			}
		}
	}
	i := 0
	for _, id := range order {
		if _, ok := b.prev[id]; !ok {
			continue
		}
		if i >= len(kept) || kept[i] != id {
			return false
		}
		i++
	}
	return true
}
