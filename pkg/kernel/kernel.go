// Package kernel defines the collaborators the SDF world consumes from its
// host: a main-thread dispatcher and the render, texture and physics stores
// whose objects must only be touched on that thread. It also defines the
// flat Mesh buffer exchanged with them.
package kernel

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
)

// Dispatcher marshals work onto the host's main thread.
type Dispatcher interface {
	// Do runs fn on the main thread and waits for it to return.
	Do(ctx context.Context, fn func() error) error
	// IsMainThread reports whether the caller runs on the main thread.
	IsMainThread() bool
}

// RenderObject is an opaque renderable owned by one chunk.
type RenderObject interface {
	// SetMesh replaces the geometry; a nil mesh hides the object.
	SetMesh(m *Mesh, material string)
	SetEnabled(enabled bool)
	SetAlpha(alpha float32)
	SetShadows(cast bool)
	// SetTexture binds tex to a material attribute with its sampling params.
	SetTexture(attribute string, tex Texture, params mgl32.Vec4)
	Destroy()
}

// Renderer creates render objects.
type Renderer interface {
	NewObject(name string, position mgl32.Vec3) RenderObject
}

// Texture is an opaque GPU texture.
type Texture interface {
	// Upload replaces the texels: size^dims single-channel bytes.
	Upload(size, dims int, data []byte)
	Destroy()
}

// Textures creates textures.
type Textures interface {
	NewTexture(name string) Texture
	// White is the shared texture bound when a referenced chunk is missing.
	White() Texture
}

// Collider is an opaque static collision shape.
type Collider interface {
	// SetMesh replaces the triangle soup; nil positions remove the shape.
	SetMesh(positions []float32, indices []uint32, tags []string)
	SetEnabled(enabled bool)
	Destroy()
}

// Physics creates colliders.
type Physics interface {
	NewCollider(name string, position mgl32.Vec3) Collider
}

// Host bundles the collaborators handed to a world.
type Host struct {
	Dispatcher Dispatcher
	Renderer   Renderer
	Textures   Textures
	Physics    Physics
}

// OnMain runs fn through d, or inline when the host has no dispatcher.
func OnMain(ctx context.Context, d Dispatcher, fn func() error) error {
	if d == nil {
		return fn()
	}
	if d.IsMainThread() {
		return fn()
	}
	return d.Do(ctx, fn)
}
