// Package sdfx bridges sdf3d shapes to and from the github.com/deadsy/sdfx
// CAD library so volumes can be meshed exactly, outside the chunk grid and
// its quantized samples.
package sdfx

import (
	"context"
	"errors"
	"fmt"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	"github.com/chewxy/math32"
	"github.com/deadsy/sdfx/render"
	dsdf "github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl32"
)

var _ sdf3d.Shape = External{}

// DefaultMeshCells is the marching cubes resolution along the longest axis.
const DefaultMeshCells = 200

// ErrUnbounded is returned when a shape without bounds is handed to sdfx,
// which needs a finite box to mesh.
var ErrUnbounded = errors.New("sdfx: shape is unbounded")

// Solid accumulates additions and subtractions of sdf3d shapes as an sdfx
// CSG tree. The zero value is empty.
type Solid struct {
	s     dsdf.SDF3
	edits int
}

// Add unions shape into the solid. Shape must be bounded.
func (s *Solid) Add(shape sdf3d.Shape) error {
	d, err := FromShape(shape)
	if err != nil {
		return err
	}
	if s.s == nil {
		s.s = d
	} else {
		s.s = dsdf.Union3D(s.s, d)
	}
	s.edits++
	return nil
}

// Subtract carves shape out of the solid. Unbounded shapes are accepted
// since the result keeps the solid's bounds. Subtracting from an empty
// solid does nothing.
func (s *Solid) Subtract(shape sdf3d.Shape) error {
	if s.s == nil {
		return nil
	}
	d, err := FromShape(shape)
	if errors.Is(err, ErrUnbounded) {
		d, err = shapeSDF{s: shape, bb: s.s.BoundingBox()}, nil
	}
	if err != nil {
		return err
	}
	s.s = dsdf.Difference3D(s.s, d)
	s.edits++
	return nil
}

// Empty reports whether nothing was added.
func (s *Solid) Empty() bool { return s.s == nil }

// Edits returns the number of additions and subtractions folded in.
func (s *Solid) Edits() int { return s.edits }

// Bounds returns the box sdfx meshes within.
func (s *Solid) Bounds() (sdf3d.BBox, bool) {
	if s.s == nil {
		return sdf3d.BBox{}, false
	}
	bb := s.s.BoundingBox()
	return sdf3d.NewBBox(vec32(bb.Min), vec32(bb.Max)), true
}

// Distance evaluates the solid at p. An empty solid is infinitely far.
func (s *Solid) Distance(p mgl32.Vec3) float32 {
	if s.s == nil {
		return math32.MaxFloat32
	}
	return float32(s.s.Evaluate(vec(p)))
}

// Mesh runs marching cubes over the solid with cells divisions along its
// longest axis. cells <= 0 means DefaultMeshCells. An empty solid has no
// mesh.
func (s *Solid) Mesh(cells int) *kernel.Mesh {
	if s.s == nil {
		return nil
	}
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return mesh(s.s, cells)
}

func mesh(s dsdf.SDF3, cells int) *kernel.Mesh {
	renderer := render.NewMarchingCubesUniform(cells)
	triangles := render.ToTriangles(s, renderer)

	numVerts := len(triangles) * 3
	m := &kernel.Mesh{
		Vertices: make([]float32, 0, numVerts*3),
		Normals:  make([]float32, 0, numVerts*3),
		Indices:  make([]uint32, 0, numVerts),
	}
	for i, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			m.Vertices = append(m.Vertices, float32(v.X), float32(v.Y), float32(v.Z))
			m.Normals = append(m.Normals, float32(n.X), float32(n.Y), float32(n.Z))
			m.Indices = append(m.Indices, uint32(i*3+j))
		}
	}
	return m
}

// shapeSDF evaluates an sdf3d shape for sdfx.
type shapeSDF struct {
	s  sdf3d.Shape
	bb dsdf.Box3
}

func (d shapeSDF) Evaluate(p v3.Vec) float64 {
	return float64(d.s.Distance(mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}))
}

func (d shapeSDF) BoundingBox() dsdf.Box3 { return d.bb }

// FromShape adapts s to sdfx. Unbounded shapes return ErrUnbounded.
func FromShape(s sdf3d.Shape) (dsdf.SDF3, error) {
	if s == nil {
		return nil, fmt.Errorf("sdfx: nil shape")
	}
	if e, ok := s.(External); ok {
		return e.SDF, nil
	}
	b, ok := s.Bounds()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnbounded, s.TypeName())
	}
	return shapeSDF{s: s, bb: dsdf.Box3{Min: vec(b.Min), Max: vec(b.Max)}}, nil
}

// External is an sdfx solid used as an sdf3d shape. It can be edited into
// local worlds but has no wire form, so it cannot be replicated.
type External struct {
	SDF dsdf.SDF3
}

// ToShape adapts an sdfx solid to sdf3d.
func ToShape(s dsdf.SDF3) External { return External{SDF: s} }

func (e External) Bounds() (sdf3d.BBox, bool) {
	bb := e.SDF.BoundingBox()
	return sdf3d.NewBBox(vec32(bb.Min), vec32(bb.Max)), true
}

func (e External) Distance(p mgl32.Vec3) float32 {
	return float32(e.SDF.Evaluate(vec(p)))
}

func (e External) Sample(ctx context.Context, xf sdf3d.Transform, out []float32, size sdf3d.Size3) error {
	return sdf3d.SampleFunc(ctx, xf, out, size, e.Distance)
}

func (e External) TypeName() string { return "sdfx.External" }

func (e External) WriteRaw(*sdf.Writer, *sdf3d.Registry) error {
	return fmt.Errorf("sdfx: external shapes cannot be serialized")
}

// Reference meshes a bounded shape directly with marching cubes.
func Reference(s sdf3d.Shape, cells int) (*kernel.Mesh, error) {
	d, err := FromShape(s)
	if err != nil {
		return nil, err
	}
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	return mesh(d, cells), nil
}

func vec(v mgl32.Vec3) v3.Vec {
	return v3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

func vec32(v v3.Vec) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
