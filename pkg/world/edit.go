package world

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Add unions shape into the layer of res, creating chunks as needed.
func (w *World[K, S]) Add(ctx context.Context, shape S, res *sdf.Resource) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	return w.edit(ctx, Modification[S]{Shape: shape, Resource: res, Operator: sdf.Add})
}

// Subtract carves shape out of the layer of res. It never creates chunks.
func (w *World[K, S]) Subtract(ctx context.Context, shape S, res *sdf.Resource) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	return w.edit(ctx, Modification[S]{Shape: shape, Resource: res, Operator: sdf.Subtract})
}

// SubtractAll carves shape out of every existing layer.
func (w *World[K, S]) SubtractAll(ctx context.Context, shape S) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	for _, res := range w.Layers() {
		if err := w.edit(ctx, Modification[S]{Shape: shape, Resource: res, Operator: sdf.Subtract}); err != nil {
			return err
		}
	}
	return nil
}

// Apply appends one modification, whichever its operator.
func (w *World[K, S]) Apply(ctx context.Context, m Modification[S]) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	return w.edit(ctx, m)
}

func (w *World[K, S]) edit(ctx context.Context, m Modification[S]) error {
	if m.Resource == nil {
		return fmt.Errorf("world: %s: nil resource", m.Operator)
	}
	if !m.Operator.Valid() {
		return fmt.Errorf("world: invalid operator %d", m.Operator)
	}

	w.editMu.Lock()
	defer w.editMu.Unlock()

	if w.destroyed.Load() {
		return ErrDestroyed
	}
	gen := w.gen.Load()

	keys, err := w.dim.AffectedChunks(m.Shape, w.dim.Quality(m.Resource))
	if err != nil {
		return fmt.Errorf("world: %s: %w", m.Operator, err)
	}

	w.mu.Lock()
	w.mods = append(w.mods, m)
	w.mu.Unlock()

	create := m.Operator == sdf.Add
	var (
		g         errgroup.Group
		mu        sync.Mutex
		changed   []K
		createErr error
	)
	g.SetLimit(w.workers)
	for _, key := range keys {
		c, err := w.getOrCreateChunk(ctx, m.Resource, key, create)
		if err != nil {
			createErr = err
			break
		}
		if c == nil {
			continue
		}
		g.Go(func() error {
			var ok bool
			var err error
			if m.Operator == sdf.Add {
				ok, err = c.Add(ctx, m.Shape)
			} else {
				ok, err = c.Subtract(ctx, m.Shape)
			}
			if err != nil {
				w.log.Warn("chunk edit failed",
					zap.Stringer("op", m.Operator),
					zap.Stringer("resource", m.Resource),
					zap.Any("chunk", key),
					zap.Error(err))
				return err
			}
			if ok {
				mu.Lock()
				changed = append(changed, key)
				mu.Unlock()
			}
			return nil
		})
	}
	err = g.Wait()
	if createErr != nil {
		return createErr
	}

	if w.gen.Load() != gen {
		return ErrDestroyed
	}
	for _, key := range changed {
		w.enqueueUpdated(m.Resource, key)
		w.chunkUpdated(ctx, m.Resource, key)
	}
	if err != nil {
		return fmt.Errorf("world: %s: %w", m.Operator, err)
	}
	return nil
}

// appendUnresolved logs an entry whose resource is unknown here. It has no
// chunks to touch.
func (w *World[K, S]) appendUnresolved(m Modification[S]) error {
	w.editMu.Lock()
	defer w.editMu.Unlock()
	if w.destroyed.Load() {
		return ErrDestroyed
	}
	w.mu.Lock()
	w.mods = append(w.mods, m)
	w.mu.Unlock()
	return nil
}

// Clear destroys every chunk, empties the log and starts a new epoch.
func (w *World[K, S]) Clear(ctx context.Context) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	w.editMu.Lock()
	defer w.editMu.Unlock()
	if w.destroyed.Load() {
		return ErrDestroyed
	}
	w.mu.RLock()
	next := w.clearCount + 1
	w.mu.RUnlock()
	return w.resetLocked(ctx, next)
}

// resetLocked drops all state and sets the epoch. Callers hold editMu.
func (w *World[K, S]) resetLocked(ctx context.Context, clearCount int) error {
	w.mu.Lock()
	chunks := w.allChunksLocked()
	w.layers = make(map[*sdf.Resource]*layer[K, S])
	w.order = nil
	w.mods = nil
	w.clearCount = clearCount
	w.mu.Unlock()

	w.queueMu.Lock()
	w.updated = nil
	w.queueMu.Unlock()

	var errs []error
	for _, c := range chunks {
		if err := c.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetModifications replaces the whole log with mods and starts a new epoch.
// Only chunks reached by toRebuild are rebuilt; when toRebuild is nil, every
// chunk reached by the old or the new log is. Chunks that would be created
// only to stay empty are skipped.
func (w *World[K, S]) SetModifications(ctx context.Context, mods, toRebuild []Modification[S]) error {
	if err := w.checkAuthority(); err != nil {
		return err
	}
	w.editMu.Lock()
	defer w.editMu.Unlock()
	if w.destroyed.Load() {
		return ErrDestroyed
	}
	w.mu.RLock()
	next := w.clearCount + 1
	w.mu.RUnlock()
	return w.replaceLocked(ctx, mods, toRebuild, next)
}

func (w *World[K, S]) replaceLocked(ctx context.Context, mods, toRebuild []Modification[S], clearCount int) error {
	for _, m := range mods {
		if m.Resource == nil || !m.Operator.Valid() {
			return fmt.Errorf("world: invalid modification %v", m)
		}
	}

	w.mu.RLock()
	old := w.mods
	w.mu.RUnlock()

	affected := toRebuild
	if affected == nil {
		affected = append(append([]Modification[S](nil), old...), mods...)
	}

	seen := make(map[chunkRef[K]]struct{})
	var refs []chunkRef[K]
	for _, m := range affected {
		keys, err := w.dim.AffectedChunks(m.Shape, w.dim.Quality(m.Resource))
		if err != nil {
			return fmt.Errorf("world: set modifications: %w", err)
		}
		for _, key := range keys {
			ref := chunkRef[K]{res: m.Resource, key: key}
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}

	gen := w.gen.Load()
	w.mu.Lock()
	w.mods = append([]Modification[S](nil), mods...)
	w.clearCount = clearCount
	w.mu.Unlock()

	var (
		g       errgroup.Group
		mu      sync.Mutex
		rebuilt []chunkRef[K]
	)
	g.SetLimit(w.workers)
	for _, ref := range refs {
		g.Go(func() error {
			chunkMods := w.chunkModifications(mods, ref)
			c, err := w.getOrCreateChunk(ctx, ref.res, ref.key, len(chunkMods) > 0)
			if err != nil || c == nil {
				return err
			}
			if _, err := c.Rebuild(ctx, chunkMods); err != nil {
				w.log.Warn("chunk rebuild failed",
					zap.Stringer("resource", ref.res),
					zap.Any("chunk", ref.key),
					zap.Error(err))
				return err
			}
			mu.Lock()
			rebuilt = append(rebuilt, ref)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	if w.gen.Load() != gen {
		return ErrDestroyed
	}
	for _, ref := range rebuilt {
		w.enqueueUpdated(ref.res, ref.key)
		w.chunkUpdated(ctx, ref.res, ref.key)
	}
	if err != nil {
		return fmt.Errorf("world: set modifications: %w", err)
	}
	return nil
}

// chunkModifications filters mods down to those reaching one chunk. Leading
// subtractions are dropped since they carve from an empty chunk.
func (w *World[K, S]) chunkModifications(mods []Modification[S], ref chunkRef[K]) []sdf.ChunkModification[S] {
	q := w.dim.Quality(ref.res)
	var out []sdf.ChunkModification[S]
	for _, m := range mods {
		if m.Resource != ref.res || !w.dim.AffectsChunk(m.Shape, q, ref.key) {
			continue
		}
		if len(out) == 0 && m.Operator == sdf.Subtract {
			continue
		}
		out = append(out, sdf.ChunkModification[S]{Shape: m.Shape, Operator: m.Operator})
	}
	return out
}
