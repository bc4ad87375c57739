package sdf

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ResourceID identifies a resource on the wire. Peers must build their
// libraries from the same configuration so ids agree.
type ResourceID int32

// DefaultCollisionTags is the tag set of a new resource.
const DefaultCollisionTags = "solid"

// TextureReference binds the encoded samples of another resource's chunks
// to a shader attribute of this resource's material.
type TextureReference struct {
	TargetAttribute string
	Source          *Resource
}

// Resource configures one layer of a world: quality, materials, collision
// and texture references. It is shared read-only by every chunk of the layer.
// Changing fields of a live resource must be followed by MarkChanged so the
// chunks that use it remesh on the next tick.
type Resource struct {
	ID   ResourceID
	Name string

	// Material is the render material of volumetric layers. Empty means the
	// layer produces no render mesh.
	Material string

	// IsTextureSourceOnly layers keep samples for other layers to reference
	// and never build meshes or collision.
	IsTextureSourceOnly bool

	// CollisionTags is a space separated tag list. Blank disables collision.
	CollisionTags string

	QualityLevel QualityLevel
	Custom       Quality

	ReferencedTextures []TextureReference

	// Extruded planar layers only.
	Depth         float32
	Offset        float32
	TexCoordSize  float32
	FrontMaterial string
	BackMaterial  string
	CutMaterial   string

	changeCount atomic.Int64
}

// NewResource returns a resource with default collision tags, medium quality
// and the default planar extrusion.
func NewResource(name string) *Resource {
	return &Resource{
		Name:          name,
		CollisionTags: DefaultCollisionTags,
		QualityLevel:  QualityMedium,
		Custom:        Presets3D[QualityMedium],
		Depth:         64,
		TexCoordSize:  256,
	}
}

// Quality resolves the resource's quality against a preset table.
func (r *Resource) Quality(p *Presets) Quality {
	return p.Resolve(r.QualityLevel, r.Custom)
}

// Tags splits CollisionTags on whitespace.
func (r *Resource) Tags() []string {
	return strings.Fields(r.CollisionTags)
}

// HasCollision reports whether chunks of this resource need a collision mesh.
func (r *Resource) HasCollision() bool {
	return !r.IsTextureSourceOnly && len(r.Tags()) > 0
}

// HasRenderMesh reports whether chunks of this resource need a render mesh.
func (r *Resource) HasRenderMesh() bool {
	if r.IsTextureSourceOnly {
		return false
	}
	return r.Material != "" || r.FrontMaterial != "" || r.BackMaterial != "" || r.CutMaterial != ""
}

// ChangeCount increases whenever the resource is edited in place.
func (r *Resource) ChangeCount() int64 {
	return r.changeCount.Load()
}

// MarkChanged publishes an in-place edit.
func (r *Resource) MarkChanged() {
	r.changeCount.Add(1)
}

func (r *Resource) String() string {
	if r == nil {
		return "<nil resource>"
	}
	return fmt.Sprintf("%s#%d", r.Name, r.ID)
}

// Library resolves resources by id and name.
type Library struct {
	mu     sync.RWMutex
	byID   map[ResourceID]*Resource
	byName map[string]*Resource
	next   ResourceID
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{
		byID:   make(map[ResourceID]*Resource),
		byName: make(map[string]*Resource),
		next:   1,
	}
}

// Add registers r. A zero ID is assigned the next free id.
func (l *Library) Add(r *Resource) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.Name == "" {
		return fmt.Errorf("sdf: resource has no name")
	}
	if _, ok := l.byName[r.Name]; ok {
		return fmt.Errorf("sdf: duplicate resource name %q", r.Name)
	}
	if r.ID == 0 {
		for l.byID[l.next] != nil {
			l.next++
		}
		r.ID = l.next
		l.next++
	} else if _, ok := l.byID[r.ID]; ok {
		return fmt.Errorf("sdf: duplicate resource id %d", r.ID)
	}
	l.byID[r.ID] = r
	l.byName[r.Name] = r
	return nil
}

// Get returns the resource with the given id.
func (l *Library) Get(id ResourceID) (*Resource, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byID[id]
	return r, ok
}

// ByName returns the resource with the given name.
func (l *Library) ByName(name string) (*Resource, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byName[name]
	return r, ok
}

// All returns every resource ordered by id.
func (l *Library) All() []*Resource {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Resource, 0, len(l.byID))
	for _, r := range l.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
