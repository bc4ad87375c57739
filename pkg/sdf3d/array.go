package sdf3d

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Array holds the encoded samples of one chunk: ArraySize^3 bytes indexed
// x + (y + z*ArraySize)*ArraySize, where sample Margin lies on the chunk's
// minimum corner.
//
// Edits write the back buffer and copy it over the front buffer when a
// byte changed. Readers only see the front buffer. Edits to one array must
// not run concurrently; the world serializes them.
type Array struct {
	q    sdf.Quality
	size int
	unit float32
	inv  float32

	back []byte

	mu    sync.RWMutex
	front []byte

	textureDirty atomic.Bool
}

// NewArray returns an empty array: every sample encodes MaxDistance.
func NewArray(q sdf.Quality) *Array {
	size := q.ArraySize()
	n := size * size * size
	a := &Array{
		q:     q,
		size:  size,
		unit:  q.UnitSize(),
		inv:   q.InvUnitSize(),
		back:  make([]byte, n),
		front: make([]byte, n),
	}
	a.Clear(false)
	return a
}

// Quality returns the array's quality.
func (a *Array) Quality() sdf.Quality {
	return a.q
}

// Size is the number of samples along each axis.
func (a *Array) Size() int {
	return a.size
}

// Clear fills the array with fully solid or fully empty samples.
func (a *Array) Clear(solid bool) {
	fill := byte(255)
	if solid {
		fill = 0
	}
	for i := range a.back {
		a.back[i] = fill
	}
	a.swap()
}

func (a *Array) swap() {
	a.mu.Lock()
	copy(a.front, a.back)
	a.mu.Unlock()
	a.textureDirty.Store(true)
}

// backBuffer returns the back buffer, or nil after Destroy. Only the single
// editor writes through it.
func (a *Array) backBuffer() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.back
}

func (a *Array) revert() {
	a.mu.RLock()
	copy(a.back, a.front)
	a.mu.RUnlock()
}

// Sample returns the front sample at array coordinates (margin included).
func (a *Array) Sample(x, y, z int) byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.front[x+(y+z*a.size)*a.size]
}

// CopyFront copies the front buffer into dst, growing it if needed.
func (a *Array) CopyFront(dst []byte) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if cap(dst) < len(a.front) {
		dst = make([]byte, len(a.front))
	}
	dst = dst[:len(a.front)]
	copy(dst, a.front)
	return dst
}

// TextureDirty reports whether the front buffer changed since the last
// UploadTexture.
func (a *Array) TextureDirty() bool {
	return a.textureDirty.Load()
}

// UploadTexture uploads the front buffer to tex if it changed. Call it on
// the host's main thread.
func (a *Array) UploadTexture(tex kernel.Texture) {
	if tex == nil || !a.textureDirty.Swap(false) {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	tex.Upload(a.size, 3, a.front)
}

// TextureParams returns the shader parameters for sampling this array.
func (a *Array) TextureParams() mgl32.Vec4 {
	return sdf.TextureParams(a.q)
}

// Destroy drops the buffers.
func (a *Array) Destroy() {
	a.mu.Lock()
	a.front = nil
	a.back = nil
	a.mu.Unlock()
}

// sampleRange returns the block of samples that shape can change and the
// transform from that block's cells to chunk-local positions.
func (a *Array) sampleRange(shape Shape) (lo [3]int, size Size3, xf Transform) {
	b, ok := shape.Bounds()
	if !ok {
		origin := -float32(sdf.Margin) * a.unit
		return lo, Size3{a.size, a.size, a.size}, NewGridTransform(mgl32.Vec3{origin, origin, origin}, a.unit)
	}
	var hi [3]int
	var origin mgl32.Vec3
	for i := 0; i < 3; i++ {
		lo[i] = max(0, int(math32.Ceil((b.Min[i]-a.q.MaxDistance)*a.inv))+sdf.Margin)
		hi[i] = min(a.size, int(math32.Ceil((b.Max[i]+a.q.MaxDistance)*a.inv))+sdf.Margin)
		if hi[i] < lo[i] {
			hi[i] = lo[i]
		}
		origin[i] = float32(lo[i]-sdf.Margin) * a.unit
	}
	return lo, Size3{hi[0] - lo[0], hi[1] - lo[1], hi[2] - lo[2]}, NewGridTransform(origin, a.unit)
}

// Add unions a chunk-local shape into the array and reports whether any
// sample changed.
func (a *Array) Add(ctx context.Context, shape Shape) (bool, error) {
	return a.edit(ctx, shape, sdf.Add)
}

// Subtract carves a chunk-local shape out of the array.
func (a *Array) Subtract(ctx context.Context, shape Shape) (bool, error) {
	return a.edit(ctx, shape, sdf.Subtract)
}

func (a *Array) edit(ctx context.Context, shape Shape, op sdf.Operator) (bool, error) {
	changed, err := a.apply(ctx, shape, op)
	if err != nil {
		a.revert()
		return false, err
	}
	if changed {
		a.swap()
	}
	return changed, nil
}

// Rebuild resets the array to empty and replays mods in order.
func (a *Array) Rebuild(ctx context.Context, mods []sdf.ChunkModification[Shape]) (bool, error) {
	back := a.backBuffer()
	if back == nil {
		return false, fmt.Errorf("sdf3d: array destroyed")
	}
	for i := range back {
		back[i] = 255
	}
	for _, m := range mods {
		if _, err := a.apply(ctx, m.Shape, m.Operator); err != nil {
			a.revert()
			return false, err
		}
	}
	a.mu.RLock()
	changed := !bytes.Equal(back, a.front)
	a.mu.RUnlock()
	if changed {
		a.swap()
	}
	return changed, nil
}

// apply samples shape and folds it into the back buffer.
func (a *Array) apply(ctx context.Context, shape Shape, op sdf.Operator) (bool, error) {
	if shape == nil {
		return false, fmt.Errorf("sdf3d: %s nil shape", op)
	}
	back := a.backBuffer()
	if back == nil {
		return false, fmt.Errorf("sdf3d: array destroyed")
	}
	lo, size, xf := a.sampleRange(shape)
	n := size.Len()
	if n == 0 {
		return false, nil
	}
	buf := sdf.GetFloats(n)
	defer sdf.PutFloats(buf)
	samples := *buf
	if err := shape.Sample(ctx, xf, samples, size); err != nil {
		return false, fmt.Errorf("sdf3d: sample %s: %w", shape.TypeName(), err)
	}

	maxDist := a.q.MaxDistance
	changed := false
	src := 0
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			dst := lo[0] + (lo[1]+y+(lo[2]+z)*a.size)*a.size
			for x := 0; x < size.X; x, src, dst = x+1, src+1, dst+1 {
				d := samples[src]
				if d >= maxDist {
					continue
				}
				enc := sdf.Encode(d, maxDist)
				old := back[dst]
				v := old
				if op == sdf.Add {
					v = min(old, enc)
				} else {
					v = max(old, 255-enc)
				}
				if v != old {
					back[dst] = v
					changed = true
				}
			}
		}
	}
	return changed, nil
}
