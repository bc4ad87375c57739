package sdf3d

import (
	"context"
	"fmt"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	typeTranslated  = "Translated"
	typeTransformed = "Transformed"
	typeExpanded    = "Expanded"
	typeIntersected = "Intersected"
	typeBiased      = "Biased"
)

// Translated moves a shape by Offset.
type Translated struct {
	Shape  Shape
	Offset mgl32.Vec3
}

// Translate returns s moved by offset.
func Translate(s Shape, offset mgl32.Vec3) Translated {
	return Translated{Shape: s, Offset: offset}
}

func (s Translated) Bounds() (BBox, bool) {
	b, ok := s.Shape.Bounds()
	if !ok {
		return BBox{}, false
	}
	return b.Translate(s.Offset), true
}

func (s Translated) Distance(p mgl32.Vec3) float32 {
	return s.Shape.Distance(p.Sub(s.Offset))
}

func (s Translated) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return s.Shape.Sample(ctx, NewTransform(s.Offset).ToLocal(xf), out, size)
}

func (Translated) TypeName() string { return typeTranslated }

func (s Translated) WriteRaw(w *sdf.Writer, reg *Registry) error {
	if err := WriteShape(w, reg, s.Shape); err != nil {
		return err
	}
	w.Vec3(s.Offset)
	return w.Err()
}

func readTranslated(r *sdf.Reader, reg *Registry) (Shape, error) {
	inner, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	s := Translated{Shape: inner, Offset: r.Vec3()}
	return s, r.Err()
}

// Transformed scales, rotates and moves a shape. Distances are scaled with
// the shape so the field stays a true distance.
type Transformed struct {
	Shape     Shape
	Transform Transform
}

// TransformShape returns s placed by xf. A zero scale is treated as 1.
func TransformShape(s Shape, xf Transform) Transformed {
	if xf.Scale == 0 {
		xf.Scale = 1
	}
	if xf.Rotation == (mgl32.Quat{}) {
		xf.Rotation = mgl32.QuatIdent()
	}
	return Transformed{Shape: s, Transform: xf}
}

func (s Transformed) Bounds() (BBox, bool) {
	b, ok := s.Shape.Bounds()
	if !ok {
		return BBox{}, false
	}
	return b.Transform(s.Transform), true
}

func (s Transformed) Distance(p mgl32.Vec3) float32 {
	return s.Shape.Distance(s.Transform.PointToLocal(p)) * s.Transform.Scale
}

func (s Transformed) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	if err := s.Shape.Sample(ctx, s.Transform.ToLocal(xf), out, size); err != nil {
		return err
	}
	if scale := s.Transform.Scale; scale != 1 {
		n := size.Len()
		for i := 0; i < n; i++ {
			out[i] *= scale
		}
	}
	return nil
}

func (Transformed) TypeName() string { return typeTransformed }

func (s Transformed) WriteRaw(w *sdf.Writer, reg *Registry) error {
	if err := WriteShape(w, reg, s.Shape); err != nil {
		return err
	}
	w.Vec3(s.Transform.Position)
	w.Quat(s.Transform.Rotation)
	w.Float32(s.Transform.Scale)
	return w.Err()
}

func readTransformed(r *sdf.Reader, reg *Registry) (Shape, error) {
	inner, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	xf := Transform{Position: r.Vec3(), Rotation: r.Quat(), Scale: r.Float32()}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !(xf.Scale > 0) {
		return nil, fmt.Errorf("sdf3d: transformed shape with scale %g", xf.Scale)
	}
	return Transformed{Shape: inner, Transform: xf}, nil
}

// Expanded grows a shape's surface outwards by Margin.
type Expanded struct {
	Shape  Shape
	Margin float32
}

// Expand returns s grown by margin.
func Expand(s Shape, margin float32) Expanded {
	return Expanded{Shape: s, Margin: margin}
}

func (s Expanded) Bounds() (BBox, bool) {
	b, ok := s.Shape.Bounds()
	if !ok {
		return BBox{}, false
	}
	return b.Expand(math32.Max(s.Margin, 0)), true
}

func (s Expanded) Distance(p mgl32.Vec3) float32 {
	return s.Shape.Distance(p) - s.Margin
}

func (s Expanded) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	if err := s.Shape.Sample(ctx, xf, out, size); err != nil {
		return err
	}
	n := size.Len()
	for i := 0; i < n; i++ {
		out[i] -= s.Margin
	}
	return nil
}

func (Expanded) TypeName() string { return typeExpanded }

func (s Expanded) WriteRaw(w *sdf.Writer, reg *Registry) error {
	if err := WriteShape(w, reg, s.Shape); err != nil {
		return err
	}
	w.Float32(s.Margin)
	return w.Err()
}

func readExpanded(r *sdf.Reader, reg *Registry) (Shape, error) {
	inner, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	s := Expanded{Shape: inner, Margin: r.Float32()}
	return s, r.Err()
}

// Intersected is the region inside both shapes.
type Intersected struct {
	A, B Shape
}

// Intersect returns the intersection of a and b.
func Intersect(a, b Shape) Intersected {
	return Intersected{A: a, B: b}
}

func (s Intersected) Bounds() (BBox, bool) {
	ba, okA := s.A.Bounds()
	bb, okB := s.B.Bounds()
	switch {
	case okA && okB:
		return ba.Intersect(bb), true
	case okA:
		return ba, true
	case okB:
		return bb, true
	}
	return BBox{}, false
}

func (s Intersected) Distance(p mgl32.Vec3) float32 {
	return math32.Max(s.A.Distance(p), s.B.Distance(p))
}

func (s Intersected) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	return samplePair(ctx, s.A, s.B, xf, out, size, math32.Max)
}

func (Intersected) TypeName() string { return typeIntersected }

func (s Intersected) WriteRaw(w *sdf.Writer, reg *Registry) error {
	if err := WriteShape(w, reg, s.A); err != nil {
		return err
	}
	return WriteShape(w, reg, s.B)
}

func readIntersected(r *sdf.Reader, reg *Registry) (Shape, error) {
	a, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	b, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	return Intersected{A: a, B: b}, nil
}

// Biased perturbs a shape by adding another field, typically noise, scaled
// by Scale. The bounds stay those of Shape.
type Biased struct {
	Shape Shape
	Bias  Shape
	Scale float32
}

// Bias returns s offset by bias*scale.
func Bias(s, bias Shape, scale float32) Biased {
	return Biased{Shape: s, Bias: bias, Scale: scale}
}

func (s Biased) Bounds() (BBox, bool) {
	return s.Shape.Bounds()
}

func (s Biased) Distance(p mgl32.Vec3) float32 {
	return s.Shape.Distance(p) + s.Bias.Distance(p)*s.Scale
}

func (s Biased) Sample(ctx context.Context, xf Transform, out []float32, size Size3) error {
	if s.Scale == 0 {
		return s.Shape.Sample(ctx, xf, out, size)
	}
	scale := s.Scale
	return samplePair(ctx, s.Shape, s.Bias, xf, out, size, func(d, b float32) float32 {
		return d + b*scale
	})
}

func (Biased) TypeName() string { return typeBiased }

func (s Biased) WriteRaw(w *sdf.Writer, reg *Registry) error {
	if err := WriteShape(w, reg, s.Shape); err != nil {
		return err
	}
	if err := WriteShape(w, reg, s.Bias); err != nil {
		return err
	}
	w.Float32(s.Scale)
	return w.Err()
}

func readBiased(r *sdf.Reader, reg *Registry) (Shape, error) {
	inner, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	bias, err := reg.Read(r)
	if err != nil {
		return nil, err
	}
	s := Biased{Shape: inner, Bias: bias, Scale: r.Float32()}
	return s, r.Err()
}
