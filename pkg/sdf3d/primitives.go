package sdf3d

import (
	"context"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	typeBox     = "Box"
	typeSphere  = "Sphere"
	typeCapsule = "Capsule"
)

// Box is an axis-aligned box with optionally rounded edges.
type Box struct {
	Min, Max     mgl32.Vec3
	CornerRadius float32
}

// NewBox returns the box spanning two corners in any order.
func NewBox(a, b mgl32.Vec3, cornerRadius float32) Box {
	bb := NewBBox(a, b)
	return Box{Min: bb.Min, Max: bb.Max, CornerRadius: cornerRadius}
}

func (s Box) Bounds() (BBox, bool) {
	return BBox{Min: s.Min, Max: s.Max}, true
}

func (s Box) Distance(p mgl32.Vec3) float32 {
	r := s.CornerRadius
	var d mgl32.Vec3
	inside := true
	for i := 0; i < 3; i++ {
		d[i] = math32.Max(s.Min[i]+r-p[i], p[i]-s.Max[i]+r)
		if d[i] > 0 {
			inside = false
		}
	}
	if inside {
		return math32.Max(d[0], math32.Max(d[1], d[2])) - r
	}
	out := mgl32.Vec3{math32.Max(d[0], 0), math32.Max(d[1], 0), math32.Max(d[2], 0)}
	return out.Len() - r
}

func (s Box) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Box) TypeName() string { return typeBox }

func (s Box) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec3(s.Min)
	w.Vec3(s.Max)
	w.Float32(s.CornerRadius)
	return w.Err()
}

func readBox(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Box{Min: r.Vec3(), Max: r.Vec3(), CornerRadius: r.Float32()}
	return s, r.Err()
}

// Sphere is a ball.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

func (s Sphere) Bounds() (BBox, bool) {
	return BBoxAround(s.Center, s.Radius), true
}

func (s Sphere) Distance(p mgl32.Vec3) float32 {
	return p.Sub(s.Center).Len() - s.Radius
}

func (s Sphere) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Sphere) TypeName() string { return typeSphere }

func (s Sphere) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec3(s.Center)
	w.Float32(s.Radius)
	return w.Err()
}

func readSphere(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Sphere{Center: r.Vec3(), Radius: r.Float32()}
	return s, r.Err()
}

// Capsule is the set of points within Radius of the segment AB.
type Capsule struct {
	A, B   mgl32.Vec3
	Radius float32
}

func (s Capsule) Bounds() (BBox, bool) {
	return NewBBox(s.A, s.B).Expand(s.Radius), true
}

func (s Capsule) Distance(p mgl32.Vec3) float32 {
	ab := s.B.Sub(s.A)
	lenSq := ab.Dot(ab)
	closest := s.A
	if lenSq > 1e-12 {
		t := p.Sub(s.A).Dot(ab) / lenSq
		t = math32.Max(0, math32.Min(1, t))
		closest = s.A.Add(ab.Mul(t))
	}
	return p.Sub(closest).Len() - s.Radius
}

func (s Capsule) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return sampleEach(ctx, xf, out, size, s.Distance)
}

func (Capsule) TypeName() string { return typeCapsule }

func (s Capsule) WriteRaw(w *sdf.Writer, _ *Registry) error {
	w.Vec3(s.A)
	w.Vec3(s.B)
	w.Float32(s.Radius)
	return w.Err()
}

func readCapsule(r *sdf.Reader, _ *Registry) (Shape, error) {
	s := Capsule{A: r.Vec3(), B: r.Vec3(), Radius: r.Float32()}
	return s, r.Err()
}
