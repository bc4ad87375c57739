package sdf3d

import (
	"fmt"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// maxAffectedChunks caps the chunks one edit may touch.
const maxAffectedChunks = 1 << 16

// World is a volumetric world keyed by chunk coordinates.
type World = world.World[Key, Shape]

// Options configures NewWorld.
type Options struct {
	world.Options

	// Presets resolves resource quality levels. Nil means Presets3D.
	Presets *sdf.Presets
	// Registry serializes shapes. Nil means DefaultRegistry.
	Registry *Registry

	// Finite worlds only hold chunks inside [0, Size]. Shapes without
	// bounds are applied to that whole box.
	Finite bool
	Size   mgl32.Vec3
}

// Dimension binds volumetric shapes and chunks to the generic world.
type Dimension struct {
	presets *sdf.Presets
	reg     *Registry
	finite  bool
	size    mgl32.Vec3
	host    kernel.Host
	log     *zap.Logger
}

var _ world.Dimension[Key, Shape] = (*Dimension)(nil)

// NewDimension returns the dimension used by NewWorld.
func NewDimension(host kernel.Host, opts Options) *Dimension {
	d := &Dimension{
		presets: opts.Presets,
		reg:     opts.Registry,
		finite:  opts.Finite,
		size:    opts.Size,
		host:    host,
		log:     opts.Logger,
	}
	if d.presets == nil {
		d.presets = &sdf.Presets3D
	}
	if d.reg == nil {
		d.reg = DefaultRegistry()
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	return d
}

// NewWorld returns an empty volumetric world.
func NewWorld(host kernel.Host, opts Options) *World {
	return world.New[Key, Shape](NewDimension(host, opts), host, opts.Options)
}

func (d *Dimension) Quality(res *sdf.Resource) sdf.Quality {
	return res.Quality(d.presets)
}

// chunkRange returns the half-open range of chunk keys shape reaches.
func (d *Dimension) chunkRange(shape Shape, q sdf.Quality) (lo, hi Key, err error) {
	cs := q.ChunkSize
	b, ok := shape.Bounds()
	if !ok {
		if !d.finite {
			return lo, hi, world.ErrUnbounded
		}
		for i := 0; i < 3; i++ {
			hi[i] = int(math32.Ceil(d.size[i] / cs))
		}
		return lo, hi, nil
	}
	if b.Empty() {
		return lo, lo, nil
	}
	reach := q.MaxDistance + q.UnitSize()
	for i := 0; i < 3; i++ {
		lo[i] = int(math32.Floor((b.Min[i] - reach) / cs))
		hi[i] = int(math32.Ceil((b.Max[i] + reach) / cs))
		if d.finite {
			lo[i] = max(lo[i], 0)
			hi[i] = min(hi[i], int(math32.Ceil(d.size[i]/cs)))
		}
		if hi[i] < lo[i] {
			hi[i] = lo[i]
		}
	}
	return lo, hi, nil
}

func (d *Dimension) AffectedChunks(shape Shape, q sdf.Quality) ([]Key, error) {
	if shape == nil {
		return nil, fmt.Errorf("sdf3d: nil shape")
	}
	lo, hi, err := d.chunkRange(shape, q)
	if err != nil {
		return nil, err
	}
	n := (hi[0] - lo[0]) * (hi[1] - lo[1]) * (hi[2] - lo[2])
	if n > maxAffectedChunks {
		return nil, fmt.Errorf("sdf3d: %s touches %d chunks, limit %d", shape.TypeName(), n, maxAffectedChunks)
	}
	keys := make([]Key, 0, n)
	for z := lo[2]; z < hi[2]; z++ {
		for y := lo[1]; y < hi[1]; y++ {
			for x := lo[0]; x < hi[0]; x++ {
				keys = append(keys, Key{x, y, z})
			}
		}
	}
	return keys, nil
}

func (d *Dimension) AffectsChunk(shape Shape, q sdf.Quality, key Key) bool {
	lo, hi, err := d.chunkRange(shape, q)
	if err != nil {
		return false
	}
	for i := 0; i < 3; i++ {
		if key[i] < lo[i] || key[i] >= hi[i] {
			return false
		}
	}
	return true
}

func (d *Dimension) NewChunk(key Key, res *sdf.Resource, q sdf.Quality) world.Chunk[Shape] {
	return NewChunk(key, res, q, d.host, d.log)
}

func (d *Dimension) WriteShape(w *sdf.Writer, s Shape) error {
	return WriteShape(w, d.reg, s)
}

func (d *Dimension) ReadShape(r *sdf.Reader) (Shape, error) {
	return ReadShape(r, d.reg)
}
