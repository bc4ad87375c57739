package sdf2d

import (
	"context"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	typeRect   = "Rect"
	typeCircle = "Circle"
	typeLine   = "Line"
)

// Rect is an axis-aligned rectangle with optionally rounded corners.
type Rect struct {
	Min, Max     mgl32.Vec2
	CornerRadius float32
}

// NewRect returns the rectangle spanning two corners in any order.
func NewRect(a, b mgl32.Vec2, cornerRadius float32) Rect {
	bb := NewBBox(a, b)
	return Rect{Min: bb.Min, Max: bb.Max, CornerRadius: cornerRadius}
}

func (s Rect) Bounds() (BBox, bool) {
	return BBox{Min: s.Min, Max: s.Max}, true
}

func (s Rect) Distance(p mgl32.Vec2) float32 {
	r := s.CornerRadius
	dx := math32.Max(s.Min[0]+r-p[0], p[0]-s.Max[0]+r)
	dy := math32.Max(s.Min[1]+r-p[1], p[1]-s.Max[1]+r)
	if dx <= 0 && dy <= 0 {
		return math32.Max(dx, dy) - r
	}
	dx, dy = math32.Max(dx, 0), math32.Max(dy, 0)
	return math32.Sqrt(dx*dx+dy*dy) - r
}

func (s Rect) Sample(ctx context.Context, xf Transform, out []float32, size Size2) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Rect) TypeName() string { return typeRect }

func (s Rect) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec2(s.Min)
	w.Vec2(s.Max)
	w.Float32(s.CornerRadius)
	return w.Err()
}

func readRect(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Rect{Min: r.Vec2(), Max: r.Vec2(), CornerRadius: r.Float32()}
	return s, r.Err()
}

// Circle is a disc.
type Circle struct {
	Center mgl32.Vec2
	Radius float32
}

func (s Circle) Bounds() (BBox, bool) {
	return BBoxAround(s.Center, s.Radius), true
}

func (s Circle) Distance(p mgl32.Vec2) float32 {
	return p.Sub(s.Center).Len() - s.Radius
}

func (s Circle) Sample(ctx context.Context, xf Transform, out []float32, size Size2) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Circle) TypeName() string { return typeCircle }

func (s Circle) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec2(s.Center)
	w.Float32(s.Radius)
	return w.Err()
}

func readCircle(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Circle{Center: r.Vec2(), Radius: r.Float32()}
	return s, r.Err()
}

// Line is a segment from A to B with round caps; Radius is half its width.
type Line struct {
	A, B   mgl32.Vec2
	Radius float32
}

func (s Line) Bounds() (BBox, bool) {
	return NewBBox(s.A, s.B).Expand(s.Radius), true
}

func (s Line) Distance(p mgl32.Vec2) float32 {
	ab := s.B.Sub(s.A)
	lenSq := ab.Dot(ab)
	closest := s.A
	if lenSq > 1e-12 {
		t := math32.Max(0, math32.Min(1, p.Sub(s.A).Dot(ab)/lenSq))
		closest = s.A.Add(ab.Mul(t))
	}
	return p.Sub(closest).Len() - s.Radius
}

func (s Line) Sample(ctx context.Context, xf Transform, out []float32, size Size2) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Line) TypeName() string { return typeLine }

func (s Line) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec2(s.A)
	w.Vec2(s.B)
	w.Float32(s.Radius)
	return w.Err()
}

func readLine(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Line{A: r.Vec2(), B: r.Vec2(), Radius: r.Float32()}
	return s, r.Err()
}
