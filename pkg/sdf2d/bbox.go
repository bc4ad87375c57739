package sdf2d

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// BBox is an axis-aligned rectangle.
type BBox struct {
	Min, Max mgl32.Vec2
}

// NewBBox returns the rectangle spanning two corners in any order.
func NewBBox(a, b mgl32.Vec2) BBox {
	return BBox{Min: minVec(a, b), Max: maxVec(a, b)}
}

// BBoxAround returns the square of half extent r centered on c.
func BBoxAround(c mgl32.Vec2, r float32) BBox {
	e := mgl32.Vec2{r, r}
	return BBox{Min: c.Sub(e), Max: c.Add(e)}
}

func (b BBox) Size() mgl32.Vec2 {
	return b.Max.Sub(b.Min)
}

func (b BBox) Center() mgl32.Vec2 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Empty reports whether the rectangle has no area on some axis.
func (b BBox) Empty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1]
}

func (b BBox) Contains(p mgl32.Vec2) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] && p[1] >= b.Min[1] && p[1] <= b.Max[1]
}

func (b BBox) Translate(d mgl32.Vec2) BBox {
	return BBox{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b BBox) Expand(m float32) BBox {
	e := mgl32.Vec2{m, m}
	return BBox{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

func (b BBox) Union(o BBox) BBox {
	return BBox{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)}
}

func (b BBox) Intersect(o BBox) BBox {
	return BBox{Min: maxVec(b.Min, o.Min), Max: minVec(b.Max, o.Max)}
}

// Transform returns the rectangle enclosing the four corners of b mapped by
// xf.
func (b BBox) Transform(xf Transform) BBox {
	out := BBox{Min: xf.PointToWorld(b.Min)}
	out.Max = out.Min
	for _, c := range [3]mgl32.Vec2{{b.Max[0], b.Min[1]}, {b.Min[0], b.Max[1]}, b.Max} {
		p := xf.PointToWorld(c)
		out.Min = minVec(out.Min, p)
		out.Max = maxVec(out.Max, p)
	}
	return out
}

func (b BBox) String() string {
	return fmt.Sprintf("[%v, %v]", b.Min, b.Max)
}

// Size2 is the extent of a sample grid in cells, laid out X fastest.
type Size2 struct {
	X, Y int
}

func (s Size2) Len() int {
	return s.X * s.Y
}

func (s Size2) Index(x, y int) int {
	return x + y*s.X
}

// Key addresses a chunk of a planar layer.
type Key [2]int

// Origin returns the world position of the chunk's minimum corner.
func (k Key) Origin(chunkSize float32) mgl32.Vec2 {
	return mgl32.Vec2{float32(k[0]) * chunkSize, float32(k[1]) * chunkSize}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d, %d)", k[0], k[1])
}

func minVec(a, b mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{math32.Min(a[0], b[0]), math32.Min(a[1], b[1])}
}

func maxVec(a, b mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{math32.Max(a[0], b[0]), math32.Max(a[1], b[1])}
}
