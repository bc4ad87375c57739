package sdf3d

import (
	"context"
	"testing"

	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func sphereSamples(t *testing.T, q sdf.Quality, s Shape) []byte {
	t.Helper()
	a := NewArray(q)
	if _, err := a.Add(context.Background(), s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return a.CopyFront(nil)
}

// edgeUses counts the triangles sharing each undirected edge.
func edgeUses(indices []uint32) map[[2]uint32]int {
	uses := make(map[[2]uint32]int)
	for i := 0; i+2 < len(indices); i += 3 {
		for j := 0; j < 3; j++ {
			a, b := indices[i+j], indices[i+(j+1)%3]
			if a > b {
				a, b = b, a
			}
			uses[[2]uint32{a, b}]++
		}
	}
	return uses
}

func TestMeshWriterEmptyArray(t *testing.T) {
	w := NewMeshWriter()
	if err := w.Write(context.Background(), NewArray(mediumQuality).CopyFront(nil), mediumQuality); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !w.IsEmpty() {
		t.Errorf("empty array produced %d indices", len(w.Indices))
	}
}

func TestMeshWriterRejectsWrongLength(t *testing.T) {
	w := NewMeshWriter()
	if err := w.Write(context.Background(), make([]byte, 10), mediumQuality); err == nil {
		t.Error("Write accepted a short sample buffer")
	}
}

func TestMeshWriterSphereIsClosed(t *testing.T) {
	center := mgl32.Vec3{128, 128, 128}
	samples := sphereSamples(t, mediumQuality, Sphere{Center: center, Radius: 50})

	w := NewMeshWriter()
	if err := w.Write(context.Background(), samples, mediumQuality); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if w.IsEmpty() {
		t.Fatal("sphere produced an empty mesh")
	}

	positions, indices := w.CollisionMesh()
	for edge, n := range edgeUses(indices) {
		if n != 2 {
			t.Fatalf("edge %v used by %d triangles, want 2", edge, n)
		}
	}

	unit := mediumQuality.UnitSize()
	for i := 0; i+2 < len(positions); i += 3 {
		p := mgl32.Vec3{positions[i], positions[i+1], positions[i+2]}
		if d := p.Sub(center).Len(); math32.Abs(d-50) > unit {
			t.Fatalf("vertex %v is %g from the center, want 50 +- %g", p, d, unit)
		}
	}
}

func TestMeshWriterNormalsPointOutwards(t *testing.T) {
	center := mgl32.Vec3{128, 128, 128}
	w := NewMeshWriter()
	if err := w.Write(context.Background(), sphereSamples(t, mediumQuality, Sphere{Center: center, Radius: 60}), mediumQuality); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for _, v := range w.Vertices {
		out := v.Position.Sub(center).Normalize()
		if v.Normal.Dot(out) < 0.8 {
			t.Fatalf("normal %v at %v does not point outwards", v.Normal, v.Position)
		}
		if l := v.Normal.Len(); math32.Abs(l-1) > 1e-3 {
			t.Fatalf("normal length %g", l)
		}
		if hand := v.Tangent[3]; hand != 1 && hand != -1 {
			t.Fatalf("tangent handedness %g", hand)
		}
		if math32.Abs(v.Tangent.Vec3().Dot(v.Normal)) > 1e-3 {
			t.Fatalf("tangent %v not perpendicular to normal %v", v.Tangent, v.Normal)
		}
	}
}

func TestMeshWriterWindingFacesOut(t *testing.T) {
	center := mgl32.Vec3{128, 128, 128}
	w := NewMeshWriter()
	if err := w.Write(context.Background(), sphereSamples(t, mediumQuality, Sphere{Center: center, Radius: 60}), mediumQuality); err != nil {
		t.Fatalf("Write: %v", err)
	}
	outward := 0
	tris := len(w.Indices) / 3
	for i := 0; i+2 < len(w.Indices); i += 3 {
		a := w.Vertices[w.Indices[i]].Position
		b := w.Vertices[w.Indices[i+1]].Position
		c := w.Vertices[w.Indices[i+2]].Position
		n := b.Sub(a).Cross(c.Sub(a))
		mid := a.Add(b).Add(c).Mul(1.0 / 3)
		if n.Dot(mid.Sub(center)) > 0 {
			outward++
		}
	}
	if outward != 0 && outward != tris {
		t.Errorf("%d of %d triangles face outwards, want a consistent winding", outward, tris)
	}
}

func TestMeshWriterIsDeterministic(t *testing.T) {
	samples := sphereSamples(t, mediumQuality, Capsule{A: mgl32.Vec3{40, 60, 80}, B: mgl32.Vec3{200, 180, 150}, Radius: 35})
	a, b := NewMeshWriter(), NewMeshWriter()
	ctx := context.Background()
	if err := a.Write(ctx, samples, mediumQuality); err != nil {
		t.Fatal(err)
	}
	if err := b.Write(ctx, samples, mediumQuality); err != nil {
		t.Fatal(err)
	}
	if len(a.Vertices) != len(b.Vertices) || len(a.Indices) != len(b.Indices) {
		t.Fatalf("sizes differ: %d/%d vs %d/%d", len(a.Vertices), len(a.Indices), len(b.Vertices), len(b.Indices))
	}
	for i := range a.Vertices {
		if a.Vertices[i] != b.Vertices[i] {
			t.Fatalf("vertex %d differs", i)
		}
	}
	for i := range a.Indices {
		if a.Indices[i] != b.Indices[i] {
			t.Fatalf("index %d differs", i)
		}
	}
}

func TestMeshFlatBuffers(t *testing.T) {
	w := NewMeshWriter()
	if err := w.Write(context.Background(), sphereSamples(t, mediumQuality, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 40}), mediumQuality); err != nil {
		t.Fatal(err)
	}
	m := w.Mesh()
	n := len(w.Vertices)
	if m.VertexCount() != n || len(m.Normals) != 3*n || len(m.Tangents) != 4*n || len(m.TexCoords) != 2*n {
		t.Errorf("buffer sizes %d/%d/%d/%d for %d vertices", len(m.Vertices), len(m.Normals), len(m.Tangents), len(m.TexCoords), n)
	}
	if m.TriangleCount() != len(w.Indices)/3 {
		t.Errorf("TriangleCount = %d", m.TriangleCount())
	}
	positions, indices := w.CollisionMesh()
	if len(positions) > len(m.Vertices) || len(indices) != len(m.Indices) {
		t.Errorf("collision mesh %d positions, %d indices", len(positions)/3, len(indices))
	}
}

func TestMeshWriterPoolReuse(t *testing.T) {
	w := AcquireMeshWriter()
	if err := w.Write(context.Background(), sphereSamples(t, mediumQuality, Sphere{Center: mgl32.Vec3{128, 128, 128}, Radius: 40}), mediumQuality); err != nil {
		t.Fatal(err)
	}
	w.Release()

	again := AcquireMeshWriter()
	defer again.Release()
	if !again.IsEmpty() || len(again.Vertices) != 0 {
		t.Error("pooled writer was not reset")
	}
}
