package sdfx

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chazu/sdfworld/pkg/sdf3d"
	dsdf "github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl32"
)

const testCells = 48

func TestSolidFoldsEdits(t *testing.T) {
	var s Solid
	if !s.Empty() || s.Mesh(testCells) != nil {
		t.Fatal("zero Solid is not empty")
	}
	if err := s.Subtract(sdf3d.Sphere{Radius: 10}); err != nil || s.Edits() != 0 {
		t.Errorf("Subtract on empty solid = %v, %d edits", err, s.Edits())
	}

	a := sdf3d.NewBox(mgl32.Vec3{-25, -25, -25}, mgl32.Vec3{25, 25, 25}, 0)
	b := sdf3d.NewBox(mgl32.Vec3{5, -25, -25}, mgl32.Vec3{55, 25, 25}, 0)
	if err := s.Add(a); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(b); err != nil {
		t.Fatal(err)
	}
	bore := sdf3d.Capsule{A: mgl32.Vec3{0, 0, -60}, B: mgl32.Vec3{0, 0, 60}, Radius: 10}
	if err := s.Subtract(bore); err != nil {
		t.Fatal(err)
	}
	if s.Edits() != 3 {
		t.Errorf("Edits() = %d, want 3", s.Edits())
	}

	tests := []struct {
		name   string
		p      mgl32.Vec3
		inside bool
	}{
		{"first box", mgl32.Vec3{-20, 20, 0}, true},
		{"second box", mgl32.Vec3{50, 0, 0}, true},
		{"overlap", mgl32.Vec3{15, 0, 0}, true},
		{"bored out", mgl32.Vec3{0, 0, 0}, false},
		{"past both", mgl32.Vec3{60, 0, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := s.Distance(tt.p); (d < 0) != tt.inside {
				t.Errorf("Distance(%v) = %g, inside = %v", tt.p, d, tt.inside)
			}
		})
	}

	bb, ok := s.Bounds()
	if !ok || math.Abs(float64(bb.Min[0]+25)) > 0.5 || math.Abs(float64(bb.Max[0]-55)) > 0.5 {
		t.Errorf("Bounds() = %v, %v", bb, ok)
	}
	m := s.Mesh(testCells)
	if m == nil || m.IsEmpty() || len(m.Indices) != m.TriangleCount()*3 || len(m.Vertices) != len(m.Normals) {
		t.Fatal("bad mesh")
	}
}

func TestSolidSubtractUnbounded(t *testing.T) {
	var s Solid
	if err := s.Add(sdf3d.Sphere{Radius: 20}); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Bounds()
	// At zero frequency the noise is solid everywhere.
	if err := s.Subtract(sdf3d.NewNoise(1, 0)); err != nil {
		t.Fatalf("Subtract(noise) = %v", err)
	}
	if d := s.Distance(mgl32.Vec3{}); d <= 0 {
		t.Errorf("center still inside after subtracting everything: %g", d)
	}
	if after, _ := s.Bounds(); after != before {
		t.Errorf("bounds changed: %v -> %v", before, after)
	}
	if err := s.Add(sdf3d.NewNoise(1, 0)); !errors.Is(err, ErrUnbounded) {
		t.Errorf("Add(noise) = %v, want ErrUnbounded", err)
	}
}

func TestFromShapeMatchesDistance(t *testing.T) {
	shapes := []sdf3d.Shape{
		sdf3d.Sphere{Center: mgl32.Vec3{10, 0, -5}, Radius: 20},
		sdf3d.NewBox(mgl32.Vec3{-10, -10, -10}, mgl32.Vec3{30, 10, 5}, 2),
		sdf3d.Capsule{A: mgl32.Vec3{0, 0, 0}, B: mgl32.Vec3{40, 10, 0}, Radius: 6},
	}
	points := []v3.Vec{{X: 0, Y: 0, Z: 0}, {X: 25, Y: 3, Z: -2}, {X: -40, Y: 12, Z: 9}}
	for _, s := range shapes {
		t.Run(s.TypeName(), func(t *testing.T) {
			d, err := FromShape(s)
			if err != nil {
				t.Fatal(err)
			}
			for _, p := range points {
				want := s.Distance(mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)})
				if got := d.Evaluate(p); math.Abs(got-float64(want)) > 1e-4 {
					t.Errorf("Evaluate(%v) = %g, want %g", p, got, want)
				}
			}
		})
	}

	if _, err := FromShape(sdf3d.NewNoise(1, 0.1)); !errors.Is(err, ErrUnbounded) {
		t.Errorf("FromShape(noise) = %v, want ErrUnbounded", err)
	}
}

func TestReference(t *testing.T) {
	m, err := Reference(sdf3d.Sphere{Center: mgl32.Vec3{100, 0, 0}, Radius: 50}, testCells)
	if err != nil {
		t.Fatal(err)
	}
	lo, hi, ok := m.Bounds()
	if !ok {
		t.Fatal("empty reference mesh")
	}
	for i, want := range [3][2]float32{{50, 150}, {-50, 50}, {-50, 50}} {
		if math.Abs(float64(lo[i]-want[0])) > 3 || math.Abs(float64(hi[i]-want[1])) > 3 {
			t.Errorf("axis %d spans %g..%g, want %g..%g", i, lo[i], hi[i], want[0], want[1])
		}
	}
}

func TestExternalShapeEditsArrays(t *testing.T) {
	ball, err := dsdf.Sphere3D(50)
	if err != nil {
		t.Fatal(err)
	}
	ext := ToShape(dsdf.Transform3D(ball, dsdf.Translate3d(v3.Vec{X: 128, Y: 128, Z: 128})))

	q := sdf.Presets3D[sdf.QualityMedium]
	got := sdf3d.NewArray(q)
	want := sdf3d.NewArray(q)
	ctx := context.Background()
	if _, err := got.Add(ctx, ext); err != nil {
		t.Fatal(err)
	}
	if _, err := want.Add(ctx, sdf3d.Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 50}); err != nil {
		t.Fatal(err)
	}
	a, b := got.CopyFront(nil), want.CopyFront(nil)
	for i := range a {
		if d := int(a[i]) - int(b[i]); d < -1 || d > 1 {
			t.Fatalf("sample %d = %d, want %d", i, a[i], b[i])
		}
	}

	var buf bytes.Buffer
	if err := sdf3d.WriteShape(sdf.NewWriter(&buf), sdf3d.DefaultRegistry(), ext); err == nil {
		t.Error("external shape serialized")
	}
}
