package sdf2d

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/world"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

type textureBinding struct {
	source world.Chunk[Shape]
	params mgl32.Vec4
}

// FaceMaterial returns the material of one face of a planar resource. A
// face without its own material falls back to Material.
func FaceMaterial(res *sdf.Resource, f Face) string {
	var m string
	switch f {
	case FaceFront:
		m = res.FrontMaterial
	case FaceBack:
		m = res.BackMaterial
	case FaceCut:
		m = res.CutMaterial
	}
	if m == "" {
		m = res.Material
	}
	return m
}

// Chunk is one cell of a planar layer. Faces that share a material are
// merged into one render object.
type Chunk struct {
	key    Key
	res    *sdf.Resource
	q      sdf.Quality
	origin mgl32.Vec2
	host   kernel.Host
	log    *zap.Logger
	name   string
	array  *Array

	mu        sync.Mutex
	render    map[string]kernel.RenderObject
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
		render:   make(map[string]kernel.RenderObject),
		opacity:  1,
		enabled:  true,
		bindings: make(map[string]textureBinding),
	}
}

func (c *Chunk) Key() Key                { return c.key }
func (c *Chunk) Resource() *sdf.Resource { return c.res }
func (c *Chunk) Quality() sdf.Quality    { return c.q }
func (c *Chunk) Origin() mgl32.Vec2      { return c.origin }
func (c *Chunk) Array() *Array           { return c.array }

// Bounds is the world-space square the chunk covers.
func (c *Chunk) Bounds() BBox {
	s := c.q.ChunkSize
	return BBox{Min: c.origin, Max: c.origin.Add(mgl32.Vec2{s, s})}
}

func (c *Chunk) position() mgl32.Vec3 {
	return mgl32.Vec3{c.origin[0], c.origin[1], 0}
}

// State reports whether the chunk is live, hidden or destroyed.
func (c *Chunk) State() world.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.destroyed:
		return world.StateDestroyed
	case !c.enabled:
		return world.StateDisabled
	}
	return world.StateActive
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

// Clear fills the chunk without going through the modification log.
func (c *Chunk) Clear(solid bool) {
	c.array.Clear(solid)
}

// materialMeshes merges the faces of w by material, in face order.
func (c *Chunk) materialMeshes(w *MeshWriter) (map[string]*kernel.Mesh, []string) {
	meshes := make(map[string]*kernel.Mesh)
	var order []string
	for _, f := range Faces {
		mat := FaceMaterial(c.res, f)
		if mat == "" || w.Face(f).IsEmpty() {
			continue
		}
		m := w.Mesh(f)
		if prev, ok := meshes[mat]; ok {
			prev.Append(m)
			continue
		}
		m.Name = c.name + " " + mat
		m.Material = mat
		meshes[mat] = m
		order = append(order, mat)
	}
	return meshes, order
}

// UpdateMesh extrudes the front samples and hands the meshes to the host.
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
		meshes    map[string]*kernel.Mesh
		order     []string
		positions []float32
		indices   []uint32
	)
	if wantRender || wantCollision {
		mw := AcquireMeshWriter()
		defer mw.Release()
		if err := mw.Write(ctx, samples, c.q, ExtrusionOf(c.res)); err != nil {
			return fmt.Errorf("sdf2d: mesh %s: %w", c.name, err)
		}
		if wantRender {
			meshes, order = c.materialMeshes(mw)
		}
		if wantCollision && !mw.IsEmpty() {
			positions, indices = mw.CollisionMesh()
		}
	}

	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return world.ErrDestroyed
		}
		c.commitRender(meshes, order)
		c.commitCollision(wantCollision, positions, indices)
		return nil
	})
}

// commitRender creates, updates and drops render objects so there is one per
// material in meshes.
func (c *Chunk) commitRender(meshes map[string]*kernel.Mesh, order []string) {
	for mat, obj := range c.render {
		if _, ok := meshes[mat]; !ok {
			obj.Destroy()
			delete(c.render, mat)
		}
	}
	for _, mat := range order {
		mesh := meshes[mat]
		obj, ok := c.render[mat]
		if !ok {
			obj = c.host.Renderer.NewObject(mesh.Name, c.position())
			c.render[mat] = obj
			c.applyOpacity(obj)
			for attr, b := range c.bindings {
				c.applyBinding(obj, attr, b)
			}
		}
		obj.SetMesh(mesh, mat)
		c.log.Debug("chunk meshed",
			zap.String("chunk", c.name),
			zap.String("material", mat),
			zap.Int("vertices", mesh.VertexCount()),
			zap.Int("triangles", mesh.TriangleCount()))
	}
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
		c.collider = c.host.Physics.NewCollider(c.name, c.position())
	}
	c.collider.SetMesh(positions, indices, c.res.Tags())
	c.collider.SetEnabled(c.enabled)
}

func (c *Chunk) applyOpacity(obj kernel.RenderObject) {
	obj.SetAlpha(c.opacity)
	obj.SetEnabled(c.enabled && c.opacity > 0)
	obj.SetShadows(c.opacity >= 1)
}

func (c *Chunk) applyBinding(obj kernel.RenderObject, attr string, b textureBinding) {
	var tex kernel.Texture
	if src, ok := b.source.(*Chunk); ok && src != nil {
		tex = src.Texture()
	}
	if tex == nil && c.host.Textures != nil {
		tex = c.host.Textures.White()
	}
	obj.SetTexture(attr, tex, b.params)
}

// materials returns the render object keys in a stable order.
func (c *Chunk) materials() []string {
	out := make([]string, 0, len(c.render))
	for mat := range c.render {
		out = append(out, mat)
	}
	sort.Strings(out)
	return out
}

func (c *Chunk) SetOpacity(ctx context.Context, v float32) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.opacity = v
		for _, mat := range c.materials() {
			c.applyOpacity(c.render[mat])
		}
		return nil
	})
}

func (c *Chunk) Opacity() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opacity
}

// SetEnabled shows or hides the chunk's render objects and collider.
func (c *Chunk) SetEnabled(ctx context.Context, enabled bool) error {
	return kernel.OnMain(ctx, c.host.Dispatcher, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.destroyed {
			return world.ErrDestroyed
		}
		c.enabled = enabled
		for _, mat := range c.materials() {
			c.applyOpacity(c.render[mat])
		}
		if c.collider != nil {
			c.collider.SetEnabled(enabled)
		}
		return nil
	})
}

// Texture returns the chunk's sample texture, uploading changed samples
// first. Call it on the host's main thread.
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
		for _, mat := range c.materials() {
			c.applyBinding(c.render[mat], attribute, b)
		}
		return nil
	})
}

// WorldMesh extrudes the chunk in world space, all faces merged. It returns
// nil when the chunk holds no solid.
func (c *Chunk) WorldMesh(ctx context.Context) (*kernel.Mesh, error) {
	samples := c.array.CopyFront(nil)
	mw := AcquireMeshWriter()
	defer mw.Release()
	if err := mw.Write(ctx, samples, c.q, ExtrusionOf(c.res)); err != nil {
		return nil, err
	}
	if mw.IsEmpty() {
		return nil, nil
	}
	m := mw.Mesh(FaceFront)
	m.Append(mw.Mesh(FaceBack))
	m.Append(mw.Mesh(FaceCut))
	m.Name = c.name
	m.Material = FaceMaterial(c.res, FaceFront)
	m.Translate(c.position())
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
		for mat, obj := range c.render {
			obj.Destroy()
			delete(c.render, mat)
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
