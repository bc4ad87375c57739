package sdf3d

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a similarity transform: uniform scale, then rotation, then
// translation.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
}

// Identity is the transform that changes nothing.
func Identity() Transform {
	return Transform{Rotation: mgl32.QuatIdent(), Scale: 1}
}

// NewTransform returns a pure translation.
func NewTransform(position mgl32.Vec3) Transform {
	return Transform{Position: position, Rotation: mgl32.QuatIdent(), Scale: 1}
}

// NewGridTransform maps integer grid coordinates to points spaced unit apart
// starting at origin.
func NewGridTransform(origin mgl32.Vec3, unit float32) Transform {
	return Transform{Position: origin, Rotation: mgl32.QuatIdent(), Scale: unit}
}

// PointToWorld maps a local point into the parent frame.
func (t Transform) PointToWorld(p mgl32.Vec3) mgl32.Vec3 {
	return t.Position.Add(t.Rotation.Rotate(p.Mul(t.Scale)))
}

// PointToLocal is the inverse of PointToWorld.
func (t Transform) PointToLocal(p mgl32.Vec3) mgl32.Vec3 {
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

// Up is the local +Z axis in the parent frame.
func (t Transform) Up() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 0, 1})
}

// IsUpright reports whether the local Z axis is parallel to the parent's.
func (t Transform) IsUpright() bool {
	return t.Up().Dot(mgl32.Vec3{0, 0, 1}) >= 0.9999
}

// ApproxEqual compares with a small tolerance.
func (t Transform) ApproxEqual(o Transform) bool {
	const eps = 1e-4
	d := t.Position.Sub(o.Position)
	return math32.Abs(d[0]) <= eps && math32.Abs(d[1]) <= eps && math32.Abs(d[2]) <= eps &&
		t.Rotation.OrientationEqualThreshold(o.Rotation, eps) &&
		math32.Abs(t.Scale-o.Scale) <= eps
}
