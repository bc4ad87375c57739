package sdf3d

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chazu/sdfworld/pkg/kernel"
	"github.com/chazu/sdfworld/pkg/sdf"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

// edgeKey names the cube edge starting at grid point (X, Y, Z) and running
// along Axis. Neighbouring cubes name a shared edge identically.
type edgeKey struct {
	X, Y, Z int32
	Axis    uint8
}

// edgeOffsets normalizes the twelve edges of a cube, in triangleTable order,
// to an offset from the cube's minimum corner plus an axis. Corner i sits at
// (i&1, i>>1&1, i>>2&1).
var edgeOffsets = [12]struct {
	dx, dy, dz int32
	axis       uint8
}{
	{0, 0, 0, 0}, // 0-1
	{0, 0, 0, 1}, // 0-2
	{0, 0, 0, 2}, // 0-4
	{1, 0, 0, 1}, // 1-3
	{1, 0, 0, 2}, // 1-5
	{0, 1, 0, 0}, // 2-3
	{0, 1, 0, 2}, // 2-6
	{1, 1, 0, 2}, // 3-7
	{0, 0, 1, 0}, // 4-5
	{0, 0, 1, 1}, // 4-6
	{1, 0, 1, 1}, // 5-7
	{0, 1, 1, 0}, // 6-7
}

// uvPlane is the texture projection plane of a triangle, picked from the
// dominant axis of its face normal.
type uvPlane uint8

const (
	planeNegX uvPlane = iota
	planePosX
	planeNegY
	planePosY
	planeNegZ
	planePosZ
)

var planeBases = [6]struct{ u, v mgl32.Vec3 }{
	planeNegX: {mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	planePosX: {mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	planeNegY: {mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	planePosY: {mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	planeNegZ: {mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	planePosZ: {mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

type vertexID struct {
	edge  edgeKey
	plane uvPlane
}

type triangle [3]edgeKey

// Vertex is one welded output vertex. Position is chunk-local.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Tangent  mgl32.Vec4
	TexCoord mgl32.Vec2
}

// MeshWriter extracts the zero isosurface of an array with marching cubes.
// Triangles are found one Z slice per worker and welded on the calling
// goroutine, so vertex order is deterministic.
type MeshWriter struct {
	samples []byte
	size    int
	res     int

	slices    [][]triangle
	vertexMap map[vertexID]uint32

	Vertices  []Vertex
	Positions []mgl32.Vec3
	Indices   []uint32
	edges     []edgeKey
}

// NewMeshWriter returns an empty writer. Prefer AcquireMeshWriter.
func NewMeshWriter() *MeshWriter {
	return &MeshWriter{vertexMap: make(map[vertexID]uint32)}
}

// Reset empties the writer, keeping its buffers.
func (w *MeshWriter) Reset() {
	for i := range w.slices {
		w.slices[i] = w.slices[i][:0]
	}
	clear(w.vertexMap)
	w.Vertices = w.Vertices[:0]
	w.Positions = w.Positions[:0]
	w.Indices = w.Indices[:0]
	w.edges = w.edges[:0]
}

// IsEmpty reports whether the last Write produced no triangles.
func (w *MeshWriter) IsEmpty() bool {
	return len(w.Indices) == 0
}

// Write replaces the writer's contents with the surface of samples, an
// array of quality q as returned by Array.CopyFront.
func (w *MeshWriter) Write(ctx context.Context, samples []byte, q sdf.Quality) error {
	size := q.ArraySize()
	if len(samples) != size*size*size {
		return fmt.Errorf("sdf3d: mesh writer got %d samples, want %d", len(samples), size*size*size)
	}
	w.Reset()
	w.samples = samples
	w.size = size
	w.res = q.ChunkResolution
	defer func() { w.samples = nil }()

	if cap(w.slices) < w.res {
		w.slices = append(w.slices[:cap(w.slices)], make([][]triangle, w.res-cap(w.slices))...)
	}
	w.slices = w.slices[:w.res]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for z := 0; z < w.res; z++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w.slices[z] = w.writeSlice(w.slices[z][:0], int32(z))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	unit := q.UnitSize()
	for _, slice := range w.slices {
		for _, tri := range slice {
			p0, p1, p2 := w.edgePosition(tri[0]), w.edgePosition(tri[1]), w.edgePosition(tri[2])
			plane := planeOf(p1.Sub(p0).Cross(p2.Sub(p0)))
			w.Indices = append(w.Indices,
				w.addVertex(tri[0], plane, p0, unit),
				w.addVertex(tri[1], plane, p1, unit),
				w.addVertex(tri[2], plane, p2, unit))
		}
	}
	return nil
}

// at reads the sample at grid point (x, y, z), where (0, 0, 0) is the
// chunk's minimum corner.
func (w *MeshWriter) at(x, y, z int32) float32 {
	const m = sdf.Margin
	return float32(w.samples[int(x+m)+(int(y+m)+int(z+m)*w.size)*w.size])
}

func (w *MeshWriter) writeSlice(out []triangle, z int32) []triangle {
	res := int32(w.res)
	for y := int32(0); y < res; y++ {
		for x := int32(0); x < res; x++ {
			var cfg uint8
			for i := int32(0); i < 8; i++ {
				if w.at(x+i&1, y+i>>1&1, z+i>>2&1) < 128 {
					cfg |= 1 << i
				}
			}
			edges := triangleTable[cfg]
			for i := 0; i+2 < len(edges); i += 3 {
				out = append(out, triangle{
					cubeEdge(x, y, z, edges[i]),
					cubeEdge(x, y, z, edges[i+1]),
					cubeEdge(x, y, z, edges[i+2]),
				})
			}
		}
	}
	return out
}

func cubeEdge(x, y, z int32, e uint8) edgeKey {
	o := edgeOffsets[e]
	return edgeKey{X: x + o.dx, Y: y + o.dy, Z: z + o.dz, Axis: o.axis}
}

// edgePosition interpolates the zero crossing along an edge, in grid units.
func (w *MeshWriter) edgePosition(k edgeKey) mgl32.Vec3 {
	p := mgl32.Vec3{float32(k.X), float32(k.Y), float32(k.Z)}
	a := w.at(k.X, k.Y, k.Z) - 127.5
	var b float32
	switch k.Axis {
	case 0:
		b = w.at(k.X+1, k.Y, k.Z) - 127.5
	case 1:
		b = w.at(k.X, k.Y+1, k.Z) - 127.5
	default:
		b = w.at(k.X, k.Y, k.Z+1) - 127.5
	}
	p[k.Axis] += a / (a - b)
	return p
}

// lerpAt samples the grid at a point with at most one fractional
// coordinate, on axis.
func (w *MeshWriter) lerpAt(p mgl32.Vec3, axis uint8) float32 {
	f := math32.Floor(p[axis])
	t := p[axis] - f
	i0 := [3]int32{int32(p[0]), int32(p[1]), int32(p[2])}
	i0[axis] = int32(f)
	a := w.at(i0[0], i0[1], i0[2])
	if t == 0 {
		return a
	}
	i0[axis]++
	b := w.at(i0[0], i0[1], i0[2])
	return a + (b-a)*t
}

func planeOf(n mgl32.Vec3) uvPlane {
	ax, ay, az := math32.Abs(n[0]), math32.Abs(n[1]), math32.Abs(n[2])
	switch {
	case ax >= ay && ax >= az:
		if n[0] > 0 {
			return planePosX
		}
		return planeNegX
	case ay >= az:
		if n[1] > 0 {
			return planePosY
		}
		return planeNegY
	}
	if n[2] > 0 {
		return planePosZ
	}
	return planeNegZ
}

func (w *MeshWriter) addVertex(k edgeKey, plane uvPlane, pos mgl32.Vec3, unit float32) uint32 {
	id := vertexID{edge: k, plane: plane}
	if i, ok := w.vertexMap[id]; ok {
		return i
	}

	var grad mgl32.Vec3
	for a := uint8(0); a < 3; a++ {
		step := mgl32.Vec3{}
		step[a] = 1
		grad[a] = w.lerpAt(pos.Add(step), k.Axis) - w.lerpAt(pos.Sub(step), k.Axis)
	}
	normal := mgl32.Vec3{0, 0, 1}
	if l := grad.Len(); l > 0 {
		normal = grad.Mul(1 / l)
	}

	basis := planeBases[plane]
	tangent := basis.v.Cross(normal)
	binormal := tangent.Cross(normal)
	handedness := float32(1)
	if basis.v.Dot(binormal) < 0 {
		handedness = -1
	}

	scaled := pos.Mul(unit)
	i := uint32(len(w.Vertices))
	w.Vertices = append(w.Vertices, Vertex{
		Position: scaled,
		Normal:   normal,
		Tangent:  tangent.Vec4(handedness),
		TexCoord: mgl32.Vec2{basis.u.Dot(pos), basis.v.Dot(pos)},
	})
	w.Positions = append(w.Positions, scaled)
	w.edges = append(w.edges, k)
	w.vertexMap[id] = i
	return i
}

// Mesh returns the render mesh as flat buffers. Positions are chunk-local.
func (w *MeshWriter) Mesh() *kernel.Mesh {
	m := &kernel.Mesh{
		Vertices:  make([]float32, 0, 3*len(w.Vertices)),
		Normals:   make([]float32, 0, 3*len(w.Vertices)),
		Tangents:  make([]float32, 0, 4*len(w.Vertices)),
		TexCoords: make([]float32, 0, 2*len(w.Vertices)),
		Indices:   append([]uint32(nil), w.Indices...),
	}
	for _, v := range w.Vertices {
		m.Vertices = append(m.Vertices, v.Position[:]...)
		m.Normals = append(m.Normals, v.Normal[:]...)
		m.Tangents = append(m.Tangents, v.Tangent[:]...)
		m.TexCoords = append(m.TexCoords, v.TexCoord[:]...)
	}
	return m
}

// CollisionMesh returns positions and indices only. Vertices split across
// texture planes are merged back so the collision surface is closed.
func (w *MeshWriter) CollisionMesh() (positions []float32, indices []uint32) {
	canon := make(map[edgeKey]uint32, len(w.edges))
	remap := make([]uint32, len(w.edges))
	for i, k := range w.edges {
		n, ok := canon[k]
		if !ok {
			n = uint32(len(canon))
			canon[k] = n
			positions = append(positions, w.Positions[i][:]...)
		}
		remap[i] = n
	}
	indices = make([]uint32, len(w.Indices))
	for i, v := range w.Indices {
		indices[i] = remap[v]
	}
	return positions, indices
}
