// Package world orchestrates chunked signed distance field volumes. A World
// owns one layer of chunks per resource, the ordered modification log that
// defines their contents, and the (ClearCount, ModificationCount) clock used
// to replicate that log to observers.
//
// Every mutating call is serialized through one edit lock per world, and each
// edit fans out to the affected chunks in parallel. Chunk buffers rely on that
// serialization and carry no lock of their own for writers, so any new entry
// point that writes chunks must go through World.edit.
package world

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

var (
	// ErrUnbounded is returned when a shape without bounds is used where the
	// affected chunks must be known.
	ErrUnbounded = errors.New("world: shape has no bounds")

	// ErrNotAuthority is returned when a proxy world is edited outside a
	// receiving scope.
	ErrNotAuthority = errors.New("world: only the authority may modify this world")

	// ErrDestroyed is returned by operations that resume after Destroy.
	ErrDestroyed = errors.New("world: destroyed")
)

// Chunk is one grid cell of one layer. Shapes passed to it are in world
// space; the chunk moves them into its own frame.
type Chunk[S any] interface {
	// Add unions shape into the chunk and reports whether any sample changed.
	Add(ctx context.Context, shape S) (bool, error)
	// Subtract carves shape out of the chunk.
	Subtract(ctx context.Context, shape S) (bool, error)
	// Rebuild resets the chunk to empty and replays mods in order.
	Rebuild(ctx context.Context, mods []sdf.ChunkModification[S]) (bool, error)
	// UpdateMesh regenerates render and collision geometry from the samples.
	UpdateMesh(ctx context.Context) error
	SetOpacity(ctx context.Context, opacity float32) error
	// BindTexture binds the encoded samples of source, a chunk of another
	// layer at the same key, to a material attribute with its sampling
	// params. A nil source binds the host's white texture.
	BindTexture(ctx context.Context, attribute string, source Chunk[S], params mgl32.Vec4) error
	Destroy(ctx context.Context) error
}

// Dimension adapts a concrete shape family and chunk type to the world.
type Dimension[K comparable, S any] interface {
	// Quality resolves the quality of a resource for this dimension.
	Quality(res *sdf.Resource) sdf.Quality
	// AffectedChunks lists the keys of every chunk within reach of shape.
	// Shapes without bounds fail with ErrUnbounded unless the dimension has
	// finite default bounds.
	AffectedChunks(shape S, q sdf.Quality) ([]K, error)
	// AffectsChunk reports whether shape reaches the chunk at key.
	AffectsChunk(shape S, q sdf.Quality, key K) bool
	NewChunk(key K, res *sdf.Resource, q sdf.Quality) Chunk[S]
	WriteShape(w *sdf.Writer, shape S) error
	ReadShape(r *sdf.Reader) (S, error)
}

// Modification is one entry of the modification log.
type Modification[S any] struct {
	Shape    S
	Resource *sdf.Resource
	Operator sdf.Operator
}

// Options configures a World.
type Options struct {
	Logger *zap.Logger
	// Library resolves resource ids of received modifications.
	Library *sdf.Library
	// Proxy worlds accept edits only inside a Receive scope.
	Proxy bool
	// Workers bounds per-edit chunk fan-out. Zero means GOMAXPROCS.
	Workers int
}

type layer[K comparable, S any] struct {
	res             *sdf.Resource
	quality         sdf.Quality
	chunks          map[K]Chunk[S]
	needsMesh       map[K]struct{}
	lastChangeCount int64
}

type chunkRef[K comparable] struct {
	res *sdf.Resource
	key K
}

// World owns the layers and modification log of one SDF volume set.
type World[K comparable, S any] struct {
	dim     Dimension[K, S]
	host    kernel.Host
	log     *zap.Logger
	lib     *sdf.Library
	proxy   bool
	workers int

	// editMu serializes every mutating operation.
	editMu sync.Mutex

	mu         sync.RWMutex
	layers     map[*sdf.Resource]*layer[K, S]
	order      []*sdf.Resource
	mods       []Modification[S]
	clearCount int
	opacity    float32

	queueMu sync.Mutex
	updated []chunkRef[K]

	tickMu    sync.Mutex
	receiving atomic.Int32
	gen       atomic.Uint64
	destroyed atomic.Bool
}

// New returns an empty world.
func New[K comparable, S any](dim Dimension[K, S], host kernel.Host, opts Options) *World[K, S] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &World[K, S]{
		dim:     dim,
		host:    host,
		log:     logger,
		lib:     opts.Library,
		proxy:   opts.Proxy,
		workers: workers,
		layers:  make(map[*sdf.Resource]*layer[K, S]),
		opacity: 1,
	}
}

// IsProxy reports whether this world mirrors a remote authority.
func (w *World[K, S]) IsProxy() bool {
	return w.proxy
}

// Receive opens a receiving scope in which a proxy world accepts edits.
// Call the returned function to close it.
func (w *World[K, S]) Receive() (release func()) {
	w.receiving.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { w.receiving.Add(-1) })
	}
}

func (w *World[K, S]) checkAuthority() error {
	if w.proxy && w.receiving.Load() == 0 {
		return ErrNotAuthority
	}
	return nil
}

// ClearCount is the epoch: it increases on every Clear.
func (w *World[K, S]) ClearCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.clearCount
}

// ModificationCount is the length of the modification log.
func (w *World[K, S]) ModificationCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.mods)
}

// Modifications returns a copy of the modification log.
func (w *World[K, S]) Modifications() []Modification[S] {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Modification[S](nil), w.mods...)
}

// Layers returns the resources that have a layer, in creation order.
func (w *World[K, S]) Layers() []*sdf.Resource {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*sdf.Resource(nil), w.order...)
}

// Chunk returns the chunk of res at key.
func (w *World[K, S]) Chunk(res *sdf.Resource, key K) (Chunk[S], bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	l, ok := w.layers[res]
	if !ok {
		return nil, false
	}
	c, ok := l.chunks[key]
	return c, ok
}

// Keys returns the keys of every chunk of res.
func (w *World[K, S]) Keys(res *sdf.Resource) []K {
	w.mu.RLock()
	defer w.mu.RUnlock()
	l, ok := w.layers[res]
	if !ok {
		return nil
	}
	keys := make([]K, 0, len(l.chunks))
	for k := range l.chunks {
		keys = append(keys, k)
	}
	return keys
}

// Quality returns the quality chunks of res are built with.
func (w *World[K, S]) Quality(res *sdf.Resource) sdf.Quality {
	return w.dim.Quality(res)
}

// Opacity returns the opacity forwarded to every chunk.
func (w *World[K, S]) Opacity() float32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.opacity
}

// SetOpacity clamps v to [0, 1] and forwards it to every chunk.
func (w *World[K, S]) SetOpacity(ctx context.Context, v float32) error {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	w.mu.Lock()
	w.opacity = v
	chunks := w.allChunksLocked()
	w.mu.Unlock()

	var errs []error
	for _, c := range chunks {
		if err := c.SetOpacity(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *World[K, S]) allChunksLocked() []Chunk[S] {
	var out []Chunk[S]
	for _, res := range w.order {
		for _, c := range w.layers[res].chunks {
			out = append(out, c)
		}
	}
	return out
}

// Destroy releases every chunk. It waits for an edit in flight to finish
// its sampling; that edit returns ErrDestroyed instead of publishing.
func (w *World[K, S]) Destroy(ctx context.Context) error {
	if w.destroyed.Swap(true) {
		return nil
	}
	w.gen.Add(1)

	// Wait out a running edit; it sees the new generation and stops.
	w.editMu.Lock()
	defer w.editMu.Unlock()

	w.mu.Lock()
	chunks := w.allChunksLocked()
	w.layers = make(map[*sdf.Resource]*layer[K, S])
	w.order = nil
	w.mu.Unlock()

	var errs []error
	for _, c := range chunks {
		if err := c.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsDestroyed reports whether Destroy was called.
func (w *World[K, S]) IsDestroyed() bool {
	return w.destroyed.Load()
}

func (w *World[K, S]) layerLocked(res *sdf.Resource) *layer[K, S] {
	l, ok := w.layers[res]
	if !ok {
		l = &layer[K, S]{
			res:             res,
			quality:         w.dim.Quality(res),
			chunks:          make(map[K]Chunk[S]),
			needsMesh:       make(map[K]struct{}),
			lastChangeCount: res.ChangeCount(),
		}
		w.layers[res] = l
		w.order = append(w.order, res)
	}
	return l
}

// getOrCreateChunk returns the chunk at key, creating it and its layer
// when create is set.
func (w *World[K, S]) getOrCreateChunk(ctx context.Context, res *sdf.Resource, key K, create bool) (Chunk[S], error) {
	w.mu.Lock()
	if l, ok := w.layers[res]; ok {
		if c, ok := l.chunks[key]; ok {
			w.mu.Unlock()
			return c, nil
		}
	}
	if !create {
		w.mu.Unlock()
		return nil, nil
	}
	l := w.layerLocked(res)
	c := w.dim.NewChunk(key, res, l.quality)
	l.chunks[key] = c
	opacity := w.opacity
	w.mu.Unlock()

	if opacity != 1 {
		if err := c.SetOpacity(ctx, opacity); err != nil {
			return nil, fmt.Errorf("world: init chunk opacity: %w", err)
		}
	}
	return c, nil
}

func (w *World[K, S]) enqueueUpdated(res *sdf.Resource, key K) {
	w.queueMu.Lock()
	w.updated = append(w.updated, chunkRef[K]{res: res, key: key})
	w.queueMu.Unlock()
}
