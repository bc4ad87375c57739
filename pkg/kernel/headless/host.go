package headless

import (
	"sync"
	"sync/atomic"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/go-gl/mathgl/mgl32"
)

// Host bundles a loop with in-memory stores. A nil Loop disables the thread
// checks and runs dispatched work inline.
type Host struct {
	Loop     *Loop
	Renderer *Renderer
	Textures *Textures
	Physics  *Physics

	violations atomic.Int64
}

// New returns a host whose stores check calls against loop.
func New(loop *Loop) *Host {
	h := &Host{Loop: loop}
	h.Renderer = &Renderer{host: h}
	h.Textures = &Textures{host: h}
	h.Textures.white = &Texture{host: h, name: "white"}
	h.Physics = &Physics{host: h}
	return h
}

// Kernel returns the collaborators in the form a world takes.
func (h *Host) Kernel() kernel.Host {
	k := kernel.Host{Renderer: h.Renderer, Textures: h.Textures, Physics: h.Physics}
	if h.Loop != nil {
		k.Dispatcher = h.Loop
	}
	return k
}

// Violations counts store calls made off the loop.
func (h *Host) Violations() int64 {
	return h.violations.Load()
}

func (h *Host) check() {
	if h.Loop != nil && !h.Loop.IsMainThread() {
		h.violations.Add(1)
	}
}

// Renderer records render objects.
type Renderer struct {
	host *Host

	mu      sync.Mutex
	objects []*Object
}

func (r *Renderer) NewObject(name string, position mgl32.Vec3) kernel.RenderObject {
	r.host.check()
	o := &Object{host: r.host, state: ObjectState{Name: name, Position: position, Enabled: true, Alpha: 1, Shadows: true}}
	r.mu.Lock()
	r.objects = append(r.objects, o)
	r.mu.Unlock()
	return o
}

// Objects returns every object created, destroyed ones included.
func (r *Renderer) Objects() []*Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Object(nil), r.objects...)
}

// Live returns the objects not yet destroyed.
func (r *Renderer) Live() []*Object {
	var out []*Object
	for _, o := range r.Objects() {
		if !o.State().Destroyed {
			out = append(out, o)
		}
	}
	return out
}

// BoundTexture is one SetTexture call.
type BoundTexture struct {
	Texture kernel.Texture
	Params  mgl32.Vec4
}

// ObjectState is a copy of everything set on an Object.
type ObjectState struct {
	Name      string
	Position  mgl32.Vec3
	Mesh      *kernel.Mesh
	Material  string
	Enabled   bool
	Alpha     float32
	Shadows   bool
	Textures  map[string]BoundTexture
	MeshCount int
	Destroyed bool
}

// Object is a recorded render object.
type Object struct {
	host *Host

	mu    sync.Mutex
	state ObjectState
}

func (o *Object) State() ObjectState {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state
	s.Textures = make(map[string]BoundTexture, len(o.state.Textures))
	for k, v := range o.state.Textures {
		s.Textures[k] = v
	}
	return s
}

func (o *Object) SetMesh(m *kernel.Mesh, material string) {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Mesh = m
	o.state.Material = material
	o.state.MeshCount++
}

func (o *Object) SetEnabled(enabled bool) {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Enabled = enabled
}

func (o *Object) SetAlpha(alpha float32) {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Alpha = alpha
}

func (o *Object) SetShadows(cast bool) {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Shadows = cast
}

func (o *Object) SetTexture(attribute string, tex kernel.Texture, params mgl32.Vec4) {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Textures == nil {
		o.state.Textures = make(map[string]BoundTexture)
	}
	o.state.Textures[attribute] = BoundTexture{Texture: tex, Params: params}
}

func (o *Object) Destroy() {
	o.host.check()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Destroyed = true
}

// Textures records textures.
type Textures struct {
	host  *Host
	white *Texture

	mu       sync.Mutex
	textures []*Texture
}

func (s *Textures) NewTexture(name string) kernel.Texture {
	s.host.check()
	t := &Texture{host: s.host, name: name}
	s.mu.Lock()
	s.textures = append(s.textures, t)
	s.mu.Unlock()
	return t
}

func (s *Textures) White() kernel.Texture {
	return s.white
}

// All returns every texture created, the white texture excluded.
func (s *Textures) All() []*Texture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Texture(nil), s.textures...)
}

// Texture is a recorded texture.
type Texture struct {
	host *Host
	name string

	mu        sync.Mutex
	size      int
	dims      int
	data      []byte
	uploads   int
	destroyed bool
}

func (t *Texture) Name() string { return t.name }

func (t *Texture) Upload(size, dims int, data []byte) {
	t.host.check()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.size = size
	t.dims = dims
	t.data = append(t.data[:0], data...)
	t.uploads++
}

func (t *Texture) Destroy() {
	t.host.check()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}

// Data returns the last upload.
func (t *Texture) Data() (size, dims int, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size, t.dims, append([]byte(nil), t.data...)
}

// Uploads counts Upload calls.
func (t *Texture) Uploads() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.uploads
}

func (t *Texture) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// Physics records colliders.
type Physics struct {
	host *Host

	mu        sync.Mutex
	colliders []*Collider
}

func (p *Physics) NewCollider(name string, position mgl32.Vec3) kernel.Collider {
	p.host.check()
	c := &Collider{host: p.host, state: ColliderState{Name: name, Position: position, Enabled: true}}
	p.mu.Lock()
	p.colliders = append(p.colliders, c)
	p.mu.Unlock()
	return c
}

// Colliders returns every collider created.
func (p *Physics) Colliders() []*Collider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Collider(nil), p.colliders...)
}

// Live returns the colliders not yet destroyed.
func (p *Physics) Live() []*Collider {
	var out []*Collider
	for _, c := range p.Colliders() {
		if !c.State().Destroyed {
			out = append(out, c)
		}
	}
	return out
}

// ColliderState is a copy of everything set on a Collider.
type ColliderState struct {
	Name      string
	Position  mgl32.Vec3
	Positions []float32
	Indices   []uint32
	Tags      []string
	Enabled   bool
	Destroyed bool
}

// Collider is a recorded collision shape.
type Collider struct {
	host *Host

	mu    sync.Mutex
	state ColliderState
}

func (c *Collider) State() ColliderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Collider) SetMesh(positions []float32, indices []uint32, tags []string) {
	c.host.check()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Positions = positions
	c.state.Indices = indices
	c.state.Tags = tags
}

func (c *Collider) SetEnabled(enabled bool) {
	c.host.check()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Enabled = enabled
}

func (c *Collider) Destroy() {
	c.host.check()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Destroyed = true
}
