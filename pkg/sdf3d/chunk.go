package sdf3d

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

type State = world.State

const (
	StateActive    = world.StateActive
	StateDisabled  = world.StateDisabled
	StateDestroyed = world.StateDestroyed
)

type textureBinding struct {
	source world.Chunk[Shape]
	params mgl32.Vec4
}

// Chunk is one cell of a volumetric layer. It owns an Array and the host
// objects built from it. Host objects are only touched through the host
// dispatcher.
type Chunk struct {
	key    Key
	res    *sdf.Resource
	q      sdf.Quality
	origin mgl32.Vec3
	host   kernel.Host
	log    *zap.Logger
	name   string
	array  *Array

	mu        sync.Mutex
	render    kernel.RenderObject
	collider  kernel.Collider
	opacity   float32
	enabled   bool
	bindings  map[string]textureBinding
	destroyed bool
	scratch   []byte

	texMu   sync.Mutex
	texture kernel.Texture
}

// NewChunk returns an empty chunk of res at key.
func NewChunk(key Key, res *sdf.Resource, q sdf.Quality, host kernel.Host, log *zap.Logger) *Chunk {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chunk{
		key:      key,
		res:      res,
		q:        q,
		origin:   key.Origin(q.ChunkSize),
		host:     host,
		log:      log,
		name:     fmt.Sprintf("%s %v", res.Name, key),
		array:    NewArray(q),
		opacity:  1,
		enabled:  true,
		bindings: make(map[string]textureBinding),
	}
}

// Key returns the chunk's grid key.
func (c *Chunk) Key() Key { return c.key }

// Resource returns the layer's resource.
func (c *Chunk) Resource() *sdf.Resource { return c.res }

// Quality returns the chunk's quality.
func (c *Chunk) Quality() sdf.Quality { return c.q }

// Origin is the world position of the chunk's minimum corner.
func (c *Chunk) Origin() mgl32.Vec3 { return c.origin }

// Array exposes the chunk's samples.
func (c *Chunk) Array() *Array { return c.array }

// Bounds is the world-space box the chunk covers.
func (c *Chunk) Bounds() BBox {
	s := c.q.ChunkSize
	return BBox{Min: c.origin, Max: c.origin.Add(mgl32.Vec3{s, s, s})}
}

// State reports whether the chunk is live, hidden or destroyed.
func (c *Chunk) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.destroyed:
		return StateDestroyed
	case !c.enabled:
		return StateDisabled
	}
	return StateActive
}

func (c *Chunk) local(s Shape) Shape {
	return Translate(s, c.origin.Mul(-1))
}

func (c *Chunk) Add(ctx context.Context, s Shape) (bool, error) {
	return c.array.Add(ctx, c.local(s))
}

func (c *Chunk) Subtract(ctx context.Context, s Shape) (bool, error) {
	return c.array.Subtract(ctx, c.local(s))
}

func (c *Chunk) Rebuild(ctx context.Context, mods []sdf.ChunkModification[Shape]) (bool, error) {
	local := make([]sdf.ChunkModification[Shape], len(mods))
	for i, m := range mods {
		local[i] = sdf.ChunkModification[Shape]{Shape: c.local(m.Shape), Operator: m.Operator}
	}
	return c.array.Rebuild(ctx, local)
}

// Clear fills the chunk with solid or empty samples without going through
// the modification log.
func (c *Chunk) Clear(solid bool) {
	c.array.Clear(solid)
}

// UpdateMesh runs marching cubes over the front samples and hands the render
// and collision meshes to the host.
func (c *Chunk) UpdateMesh(ctx context.Context) error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return world.ErrDestroyed
	}
	c.scratch = c.array.CopyFront(c.scratch)
	samples := c.scratch
	c.mu.Unlock()

	wantRender := c.host.Renderer != nil && c.res.HasRenderMesh()
	wantCollision := c.host.Physics != nil && c.res.HasCollision()

	var (
		mesh      *kernel.Mesh
		positions []float32
		indices   []uint32
	)
	if wantRender || wantCollision {
		mw := AcquireMeshWriter()
		defer mw.Release()
		if err := mw.Write(ctx, samples, c.q); err != nil {
			return fmt.Errorf("sdf3d: mesh %s: %w", c.name, err)
		}
		if !mw.IsEmpty() {
			if wantRender {
				mesh = mw.Mesh()
				mesh.Name = c.name
				mesh.Material = c.res.Material
			}
			if wantCollision {
				positions, indices = mw.CollisionMesh()
			}
		}
	}

	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return world.ErrDestroyed
		}
		c.commitRender(wantRender, mesh)
		c.commitCollision(wantCollision, positions, indices)
		return nil
	})
}

func (c *Chunk) commitRender(want bool, mesh *kernel.Mesh) {
	if !want {
		if c.render != nil {
			c.render.Destroy()
			c.render = nil
		}
		return
	}
	if mesh == nil {
		if c.render != nil {
			c.render.SetMesh(nil, c.res.Material)
		}
		return
	}
	if c.render == nil {
		c.render = c.host.Renderer.NewObject(c.name, c.origin)
		c.applyOpacity()
		for attr, b := range c.bindings {
			c.applyBinding(attr, b)
		}
	}
	c.render.SetMesh(mesh, c.res.Material)
	c.log.Debug("chunk meshed",
		zap.String("chunk", c.name),
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()))
}

func (c *Chunk) commitCollision(want bool, positions []float32, indices []uint32) {
	if !want || len(indices) == 0 {
		if c.collider != nil {
			c.collider.Destroy()
			c.collider = nil
		}
		return
	}
	if c.collider == nil {
		c.collider = c.host.Physics.NewCollider(c.name, c.origin)
	}
	c.collider.SetMesh(positions, indices, c.res.Tags())
	c.collider.SetEnabled(c.enabled)
}

// applyOpacity pushes opacity and enabled state to the render object.
// Callers hold mu on the main thread.
func (c *Chunk) applyOpacity() {
	if c.render == nil {
		return
	}
	c.render.SetAlpha(c.opacity)
	c.render.SetEnabled(c.enabled && c.opacity > 0)
	c.render.SetShadows(c.opacity >= 1)
}

func (c *Chunk) applyBinding(attr string, b textureBinding) {
	if c.render == nil {
		return
	}
	var tex kernel.Texture
	if src, ok := b.source.(*Chunk); ok && src != nil {
		tex = src.Texture()
	}
	if tex == nil && c.host.Textures != nil {
		tex = c.host.Textures.White()
	}
	c.render.SetTexture(attr, tex, b.params)
}

// SetOpacity fades the render object. Fully transparent chunks are hidden
// and only opaque chunks cast shadows.
func (c *Chunk) SetOpacity(ctx context.Context, v float32) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.opacity = v
		c.applyOpacity()
		return nil
	})
}

// Opacity returns the last opacity set.
func (c *Chunk) Opacity() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opacity
}

// SetEnabled shows or hides the chunk's render object and collider.
func (c *Chunk) SetEnabled(ctx context.Context, enabled bool) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return world.ErrDestroyed
		}
		c.enabled = enabled
		c.applyOpacity()
		if c.collider != nil {
			c.collider.SetEnabled(enabled)
		}
		return nil
	})
}

// Texture returns the chunk's sample texture, creating it or uploading
// changed samples first. Call it on the host's main thread. It returns nil
// when the host has no texture store.
func (c *Chunk) Texture() kernel.Texture {
	if c.host.Textures == nil {
		return nil
	}
	c.texMu.Lock()
	defer c.texMu.Unlock()
	if c.texture == nil {
		c.texture = c.host.Textures.NewTexture(c.name)
		c.array.textureDirty.Store(true)
	}
	c.array.UploadTexture(c.texture)
	return c.texture
}

func (c *Chunk) BindTexture(ctx context.Context, attribute string, source world.Chunk[Shape], params mgl32.Vec4) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return world.ErrDestroyed
		}
		b := textureBinding{source: source, params: params}
		c.bindings[attribute] = b
		c.applyBinding(attribute, b)
		return nil
	})
}

// WorldMesh extracts the chunk's surface in world space, independent of any
// host renderer. It returns nil when the chunk holds no surface.
func (c *Chunk) WorldMesh(ctx context.Context) (*kernel.Mesh, error) {
	samples := c.array.CopyFront(nil)
	mw := AcquireMeshWriter()
	defer mw.Release()
	if err := mw.Write(ctx, samples, c.q); err != nil {
		return nil, err
	}
	if mw.IsEmpty() {
		return nil, nil
	}
	m := mw.Mesh()
	m.Name = c.name
	m.Material = c.res.Material
	m.Translate(c.origin)
	return m, nil
}

// Destroy releases the chunk's host objects and samples.
func (c *Chunk) Destroy(ctx context.Context) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		if c.destroyed {
			c.mu.Unlock()
			return nil
		}
		c.destroyed = true
		if c.render != nil {
			c.render.Destroy()
			c.render = nil
		}
		if c.collider != nil {
			c.collider.Destroy()
			c.collider = nil
		}
		clear(c.bindings)
		c.mu.Unlock()

		c.texMu.Lock()
		if c.texture != nil {
			c.texture.Destroy()
			c.texture = nil
		}
		c.texMu.Unlock()
		c.array.Destroy()
		return nil
	})
}
