package world

import (
	"context"
	"errors"
	"sync"

	"github.com/chazu/sdfworld/pkg/sdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NeedsMeshUpdate reports whether a Tick has mesh work to do.
func (w *World[K, S]) NeedsMeshUpdate() bool {
	w.queueMu.Lock()
	queued := len(w.updated) > 0
	w.queueMu.Unlock()
	if queued {
		return true
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, l := range w.layers {
		if len(l.needsMesh) > 0 || l.res.ChangeCount() != l.lastChangeCount {
			return true
		}
	}
	return false
}

type meshJob[K comparable, S any] struct {
	res   *sdf.Resource
	key   K
	chunk Chunk[S]
}

// Tick runs one frame of mesh maintenance: chunks changed by edits since the
// last tick and every chunk of a resource whose ChangeCount moved are
// remeshed, then texture references of the remeshed chunks are rebound.
// Layers are remeshed one batch at a time, in creation order.
//
// Chunks commit their geometry through the host dispatcher, so Tick must not
// be called on the host's main thread while that thread waits for it.
func (w *World[K, S]) Tick(ctx context.Context) error {
	w.tickMu.Lock()
	defer w.tickMu.Unlock()
	if w.destroyed.Load() {
		return nil
	}

	w.queueMu.Lock()
	queue := w.updated
	w.updated = nil
	w.queueMu.Unlock()

	w.mu.Lock()
	for _, ref := range queue {
		l, ok := w.layers[ref.res]
		if !ok {
			continue
		}
		if _, ok := l.chunks[ref.key]; ok {
			l.needsMesh[ref.key] = struct{}{}
		}
	}
	var batches [][]meshJob[K, S]
	for _, res := range w.order {
		l := w.layers[res]
		if cc := res.ChangeCount(); cc != l.lastChangeCount {
			l.lastChangeCount = cc
			for key := range l.chunks {
				l.needsMesh[key] = struct{}{}
			}
		}
		var jobs []meshJob[K, S]
		for key := range l.needsMesh {
			if c, ok := l.chunks[key]; ok {
				jobs = append(jobs, meshJob[K, S]{res: res, key: key, chunk: c})
			}
		}
		clear(l.needsMesh)
		if len(jobs) > 0 {
			batches = append(batches, jobs)
		}
	}
	w.mu.Unlock()

	var errs []error
	for _, jobs := range batches {
		errs = append(errs, w.updateMeshes(ctx, jobs)...)
	}
	return errors.Join(errs...)
}

// updateMeshes remeshes one layer's chunks in parallel and waits for all of
// them.
func (w *World[K, S]) updateMeshes(ctx context.Context, jobs []meshJob[K, S]) []error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(w.workers)
	for _, job := range jobs {
		g.Go(func() error {
			err := job.chunk.UpdateMesh(ctx)
			if err == nil {
				err = w.bindReferences(ctx, job.res, job.key, job.chunk)
			}
			if err != nil && !errors.Is(err, ErrDestroyed) {
				w.log.Warn("chunk mesh update failed",
					zap.Stringer("resource", job.res),
					zap.Any("chunk", job.key),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// bindReferences binds every texture res references to chunk.
func (w *World[K, S]) bindReferences(ctx context.Context, res *sdf.Resource, key K, chunk Chunk[S]) error {
	var errs []error
	for _, ref := range res.ReferencedTextures {
		if ref.Source == nil {
			continue
		}
		src, _ := w.Chunk(ref.Source, key)
		if err := w.bindTexture(ctx, res, chunk, ref.TargetAttribute, ref.Source, src); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World[K, S]) bindTexture(ctx context.Context, target *sdf.Resource, chunk Chunk[S], attribute string, source *sdf.Resource, src Chunk[S]) error {
	srcQuality := w.dim.Quality(source)
	if src != nil && srcQuality.ChunkSize != w.dim.Quality(target).ChunkSize {
		w.log.Warn("texture source chunk size does not match",
			zap.Stringer("layer", target),
			zap.Stringer("source", source),
			zap.Float32("layerChunkSize", w.dim.Quality(target).ChunkSize),
			zap.Float32("sourceChunkSize", srcQuality.ChunkSize))
		return nil
	}
	return chunk.BindTexture(ctx, attribute, src, sdf.TextureParams(srcQuality))
}

// chunkUpdated rebinds the chunk at key of every other layer that references
// res as a texture source.
func (w *World[K, S]) chunkUpdated(ctx context.Context, res *sdf.Resource, key K) {
	src, _ := w.Chunk(res, key)

	type target struct {
		res   *sdf.Resource
		chunk Chunk[S]
		attr  string
	}
	var targets []target
	w.mu.RLock()
	for _, lr := range w.order {
		if lr == res {
			continue
		}
		for _, ref := range lr.ReferencedTextures {
			if ref.Source != res {
				continue
			}
			if c, ok := w.layers[lr].chunks[key]; ok {
				targets = append(targets, target{res: lr, chunk: c, attr: ref.TargetAttribute})
			}
		}
	}
	w.mu.RUnlock()

	for _, t := range targets {
		if err := w.bindTexture(ctx, t.res, t.chunk, t.attr, res, src); err != nil {
			w.log.Warn("texture rebind failed",
				zap.Stringer("layer", t.res),
				zap.Stringer("source", res),
				zap.Error(err))
		}
	}
}
