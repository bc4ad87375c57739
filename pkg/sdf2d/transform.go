package sdf2d

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Rotation is a planar rotation stored as its cosine and sine.
type Rotation struct {
	Cos, Sin float32
}

// NoRotation is the identity rotation.
var NoRotation = Rotation{Cos: 1}

// NewRotation returns the counter-clockwise rotation by radians.
func NewRotation(radians float32) Rotation {
	s, c := math32.Sincos(radians)
	return Rotation{Cos: c, Sin: s}
}

// Radians returns the rotation angle in (-pi, pi].
func (r Rotation) Radians() float32 {
	return math32.Atan2(r.Sin, r.Cos)
}

// Rotate applies the rotation to v.
func (r Rotation) Rotate(v mgl32.Vec2) mgl32.Vec2 {
	return mgl32.Vec2{r.Cos*v[0] - r.Sin*v[1], r.Sin*v[0] + r.Cos*v[1]}
}

// Inverse returns the opposite rotation.
func (r Rotation) Inverse() Rotation {
	return Rotation{Cos: r.Cos, Sin: -r.Sin}
}

// Mul returns the rotation equal to applying o and then r.
func (r Rotation) Mul(o Rotation) Rotation {
	return Rotation{Cos: r.Cos*o.Cos - r.Sin*o.Sin, Sin: r.Sin*o.Cos + r.Cos*o.Sin}
}

// Normalize rescales the pair onto the unit circle. The zero value becomes
// NoRotation.
func (r Rotation) Normalize() Rotation {
	l := math32.Sqrt(r.Cos*r.Cos + r.Sin*r.Sin)
	if l == 0 {
		return NoRotation
	}
	return Rotation{Cos: r.Cos / l, Sin: r.Sin / l}
}

// Transform is a planar similarity transform: uniform scale, then rotation,
// then translation.
type Transform struct {
	Position mgl32.Vec2
	Rotation Rotation
	Scale    float32
}

// Identity is the transform that changes nothing.
func Identity() Transform {
	return Transform{Rotation: NoRotation, Scale: 1}
}

// NewTransform returns a pure translation.
func NewTransform(position mgl32.Vec2) Transform {
	return Transform{Position: position, Rotation: NoRotation, Scale: 1}
}

// NewGridTransform maps integer grid coordinates to points spaced unit apart
// starting at origin.
func NewGridTransform(origin mgl32.Vec2, unit float32) Transform {
	return Transform{Position: origin, Rotation: NoRotation, Scale: unit}
}

func (t Transform) PointToWorld(p mgl32.Vec2) mgl32.Vec2 {
	return t.Position.Add(t.Rotation.Rotate(p.Mul(t.Scale)))
}

func (t Transform) PointToLocal(p mgl32.Vec2) mgl32.Vec2 {
	return t.Rotation.Inverse().Rotate(p.Sub(t.Position)).Mul(1 / t.Scale)
}

// ToLocal returns the transform equal to applying xf and then the inverse
// of t.
func (t Transform) ToLocal(xf Transform) Transform {
	return Transform{
		Position: t.PointToLocal(xf.Position),
		Rotation: t.Rotation.Inverse().Mul(xf.Rotation),
		Scale:    xf.Scale / t.Scale,
	}
}

// Mul returns the transform equal to applying o and then t.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Position: t.PointToWorld(o.Position),
		Rotation: t.Rotation.Mul(o.Rotation),
		Scale:    t.Scale * o.Scale,
	}
}

// ApproxEqual compares with a small tolerance.
func (t Transform) ApproxEqual(o Transform) bool {
	const eps = 1e-4
	return math32.Abs(t.Position[0]-o.Position[0]) <= eps &&
		math32.Abs(t.Position[1]-o.Position[1]) <= eps &&
		math32.Abs(t.Rotation.Cos-o.Rotation.Cos) <= eps &&
		math32.Abs(t.Rotation.Sin-o.Rotation.Sin) <= eps &&
		math32.Abs(t.Scale-o.Scale) <= eps
}
