package sdf2d

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

// Array holds the encoded samples of one planar chunk: ArraySize^2 bytes
// indexed x + y*ArraySize, with sample Margin on the chunk's minimum corner.
// It double buffers like its volumetric counterpart: edits write the back
// buffer and readers only see the front.
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

// NewArray returns an empty array.
func NewArray(q sdf.Quality) *Array {
	size := q.ArraySize()
	a := &Array{
		q:     q,
		size:  size,
		unit:  q.UnitSize(),
		inv:   q.InvUnitSize(),
		back:  make([]byte, size*size),
		front: make([]byte, size*size),
	}
	a.Clear(false)
	return a
}

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
func (a *Array) Sample(x, y int) byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.front[x+y*a.size]
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

func (a *Array) TextureDirty() bool {
	return a.textureDirty.Load()
}

// UploadTexture uploads the front buffer to tex as a two dimensional
// texture if it changed. Call it on the host's main thread.
func (a *Array) UploadTexture(tex kernel.Texture) {
	if tex == nil || !a.textureDirty.Swap(false) {
		return
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	tex.Upload(a.size, 2, a.front)
}

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

func (a *Array) sampleRange(shape Shape) (lo [2]int, size Size2, xf Transform) {
	b, ok := shape.Bounds()
	if !ok {
		origin := -float32(sdf.Margin) * a.unit
		return lo, Size2{a.size, a.size}, NewGridTransform(mgl32.Vec2{origin, origin}, a.unit)
	}
	var hi [2]int
	var origin mgl32.Vec2
	for i := 0; i < 2; i++ {
		lo[i] = max(0, int(math32.Ceil((b.Min[i]-a.q.MaxDistance)*a.inv))+sdf.Margin)
		hi[i] = min(a.size, int(math32.Ceil((b.Max[i]+a.q.MaxDistance)*a.inv))+sdf.Margin)
		if hi[i] < lo[i] {
			hi[i] = lo[i]
		}
		origin[i] = float32(lo[i]-sdf.Margin) * a.unit
	}
	return lo, Size2{hi[0] - lo[0], hi[1] - lo[1]}, NewGridTransform(origin, a.unit)
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
		return false, fmt.Errorf("sdf2d: array destroyed")
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

func (a *Array) apply(ctx context.Context, shape Shape, op sdf.Operator) (bool, error) {
	if shape == nil {
		return false, fmt.Errorf("sdf2d: %s nil shape", op)
	}
	back := a.backBuffer()
	if back == nil {
		return false, fmt.Errorf("sdf2d: array destroyed")
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
		return false, fmt.Errorf("sdf2d: sample %s: %w", shape.TypeName(), err)
	}

	maxDist := a.q.MaxDistance
	changed := false
	src := 0
	for y := 0; y < size.Y; y++ {
		dst := lo[0] + (lo[1]+y)*a.size
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
	return changed, nil
}
