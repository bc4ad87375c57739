package sdf3d

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BBox is an axis-aligned box.
type BBox struct {
	Min, Max mgl32.Vec3
}

// NewBBox returns the box spanning two corners in any order.
func NewBBox(a, b mgl32.Vec3) BBox {
	return BBox{Min: minVec(a, b), Max: maxVec(a, b)}
}

// BBoxAround returns the cube of half extent r centered on c.
func BBoxAround(c mgl32.Vec3, r float32) BBox {
	e := mgl32.Vec3{r, r, r}
	return BBox{Min: c.Sub(e), Max: c.Add(e)}
}

// Size returns Max - Min.
func (b BBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint.
func (b BBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Empty reports whether the box has no volume on some axis.
func (b BBox) Empty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

// Contains reports whether p lies inside or on the box.
func (b BBox) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether the closed boxes share any point.
func (b BBox) Overlaps(o BBox) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] < o.Min[i] || o.Max[i] < b.Min[i] {
			return false
		}
	}
	return true
}

// Translate offsets the box.
func (b BBox) Translate(d mgl32.Vec3) BBox {
	return BBox{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Expand grows the box by m on every side.
func (b BBox) Expand(m float32) BBox {
	e := mgl32.Vec3{m, m, m}
	return BBox{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Union returns the smallest box holding both.
func (b BBox) Union(o BBox) BBox {
	return BBox{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)}
}

// Intersect returns the overlap. It may be Empty.
func (b BBox) Intersect(o BBox) BBox {
	return BBox{Min: maxVec(b.Min, o.Min), Max: minVec(b.Max, o.Max)}
}

// Transform returns the box enclosing the eight corners of b mapped by xf.
func (b BBox) Transform(xf Transform) BBox {
	out := BBox{Min: xf.PointToWorld(b.Min)}
	out.Max = out.Min
	for i := 1; i < 8; i++ {
		c := b.Min
		if i&1 != 0 {
			c[0] = b.Max[0]
		}
		if i&2 != 0 {
			c[1] = b.Max[1]
		}
		if i&4 != 0 {
			c[2] = b.Max[2]
		}
		p := xf.PointToWorld(c)
		out.Min = minVec(out.Min, p)
		out.Max = maxVec(out.Max, p)
	}
	return out
}

func (b BBox) String() string {
	return fmt.Sprintf("[%v, %v]", b.Min, b.Max)
}

// Size3 is the extent of a sample grid in cells. Grids are laid out X
// fastest: index = x + (y + z*Y)*X.
type Size3 struct {
	X, Y, Z int
}

// Len is the number of cells.
func (s Size3) Len() int {
	return s.X * s.Y * s.Z
}

// Index returns the flat index of cell (x, y, z).
func (s Size3) Index(x, y, z int) int {
	return x + (y+z*s.Y)*s.X
}

// Key addresses a chunk of a 3D layer.
type Key [3]int

// Origin returns the world position of the chunk's minimum corner.
func (k Key) Origin(chunkSize float32) mgl32.Vec3 {
	return mgl32.Vec3{float32(k[0]) * chunkSize, float32(k[1]) * chunkSize, float32(k[2]) * chunkSize}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %d, %d)", k[0], k[1], k[2])
}

func minVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Min(a[0], b[0]), math32.Min(a[1], b[1]), math32.Min(a[2], b[2])}
}

func maxVec(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Max(a[0], b[0]), math32.Max(a[1], b[1]), math32.Max(a[2], b[2])}
}
