package sdf2d

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

// DefaultMaxSmoothAngle is the largest angle, in degrees, between two cut
// face segments that still share a smoothed normal.
const DefaultMaxSmoothAngle = 180

// Extrusion shapes the faces built from a layer's contour. Front faces sit
// at Offset + Depth/2 facing +Z, back faces at Offset - Depth/2 facing -Z,
// and cut faces join the two along the contour.
type Extrusion struct {
	Depth          float32
	Offset         float32
	TexCoordSize   float32
	MaxSmoothAngle float32
}

// ExtrusionOf reads the extrusion of a planar resource.
func ExtrusionOf(res *sdf.Resource) Extrusion {
	return Extrusion{
		Depth:          res.Depth,
		Offset:         res.Offset,
		TexCoordSize:   res.TexCoordSize,
		MaxSmoothAngle: DefaultMaxSmoothAngle,
	}
}

func (e Extrusion) uvScale() float32 {
	if e.TexCoordSize == 0 {
		return 0
	}
	return 1 / e.TexCoordSize
}

// Face selects one of the three meshes of an extruded contour.
type Face int

const (
	FaceFront Face = iota
	FaceBack
	FaceCut
)

func (f Face) String() string {
	switch f {
	case FaceFront:
		return "front"
	case FaceBack:
		return "back"
	case FaceCut:
		return "cut"
	}
	return fmt.Sprintf("Face(%d)", int(f))
}

// Faces lists every face in output order.
var Faces = [...]Face{FaceFront, FaceBack, FaceCut}

const (
	pointCorner uint8 = iota
	pointEdgeX
	pointEdgeY
)

// pointKey names a grid corner or the zero crossing on the grid edge that
// starts at (X, Y). Neighbouring cells name shared points identically.
type pointKey struct {
	X, Y int32
	Kind uint8
}

func (k pointKey) isEdge() bool {
	return k.Kind != pointCorner
}

// cellPolygon is the solid part of one cell, counter-clockwise.
type cellPolygon struct {
	n   uint8
	pts [6]pointKey
}

type segment struct {
	from, to pointKey
	normal   mgl32.Vec2
}

type cutKey struct {
	p   pointKey
	seg int32
}

type colKey struct {
	p    pointKey
	back bool
}

// Vertex is one output vertex. Position is chunk-local.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Tangent  mgl32.Vec4
	TexCoord mgl32.Vec2
}

// FaceMesh is the welded geometry of one face.
type FaceMesh struct {
	Vertices []Vertex
	Indices  []uint32
}

func (m *FaceMesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

func (m *FaceMesh) reset() {
	m.Vertices = m.Vertices[:0]
	m.Indices = m.Indices[:0]
}

// Mesh converts the face to flat buffers.
func (m *FaceMesh) Mesh() *kernel.Mesh {
	out := &kernel.Mesh{
		Vertices:  make([]float32, 0, 3*len(m.Vertices)),
		Normals:   make([]float32, 0, 3*len(m.Vertices)),
		Tangents:  make([]float32, 0, 4*len(m.Vertices)),
		TexCoords: make([]float32, 0, 2*len(m.Vertices)),
		Indices:   append([]uint32(nil), m.Indices...),
	}
	for _, v := range m.Vertices {
		out.Vertices = append(out.Vertices, v.Position[:]...)
		out.Normals = append(out.Normals, v.Normal[:]...)
		out.Tangents = append(out.Tangents, v.Tangent[:]...)
		out.TexCoords = append(out.TexCoords, v.TexCoord[:]...)
	}
	return out
}

// MeshWriter traces the zero contour of a planar array with marching
// squares and extrudes it. Cells are classified one row per worker and
// welded on the calling goroutine, so output order is deterministic.
type MeshWriter struct {
	samples []byte
	size    int
	res     int
	unit    float32

	rows [][]cellPolygon

	faces    [len(Faces)]FaceMesh
	segments []segment
	incoming map[pointKey]int32
	outgoing map[pointKey]int32

	frontMap map[pointKey]uint32
	backMap  map[pointKey]uint32
	cutMap   map[cutKey]uint32

	colMap       map[colKey]uint32
	colPositions []float32
	colIndices   []uint32
}

// NewMeshWriter returns an empty writer. Prefer AcquireMeshWriter.
func NewMeshWriter() *MeshWriter {
	return &MeshWriter{
		incoming: make(map[pointKey]int32),
		outgoing: make(map[pointKey]int32),
		frontMap: make(map[pointKey]uint32),
		backMap:  make(map[pointKey]uint32),
		cutMap:   make(map[cutKey]uint32),
		colMap:   make(map[colKey]uint32),
	}
}

// Reset empties the writer, keeping its buffers.
func (w *MeshWriter) Reset() {
	for i := range w.rows {
		w.rows[i] = w.rows[i][:0]
	}
	for i := range w.faces {
		w.faces[i].reset()
	}
	w.segments = w.segments[:0]
	clear(w.incoming)
	clear(w.outgoing)
	clear(w.frontMap)
	clear(w.backMap)
	clear(w.cutMap)
	clear(w.colMap)
	w.colPositions = w.colPositions[:0]
	w.colIndices = w.colIndices[:0]
}

// IsEmpty reports whether the last Write found no solid cells.
func (w *MeshWriter) IsEmpty() bool {
	return w.faces[FaceFront].IsEmpty() && w.faces[FaceCut].IsEmpty()
}

// Face returns the geometry of one face.
func (w *MeshWriter) Face(f Face) *FaceMesh {
	return &w.faces[f]
}

// Mesh returns one face as flat buffers.
func (w *MeshWriter) Mesh(f Face) *kernel.Mesh {
	return w.faces[f].Mesh()
}

// CollisionMesh returns the closed extruded solid, welded by grid point.
func (w *MeshWriter) CollisionMesh() (positions []float32, indices []uint32) {
	return append([]float32(nil), w.colPositions...), append([]uint32(nil), w.colIndices...)
}

// Write replaces the writer's contents with the extruded contour of
// samples, an array of quality q as returned by Array.CopyFront.
func (w *MeshWriter) Write(ctx context.Context, samples []byte, q sdf.Quality, ex Extrusion) error {
	size := q.ArraySize()
	if len(samples) != size*size {
		return fmt.Errorf("sdf2d: mesh writer got %d samples, want %d", len(samples), size*size)
	}
	w.Reset()
	w.samples = samples
	w.size = size
	w.res = q.ChunkResolution
	w.unit = q.UnitSize()
	defer func() { w.samples = nil }()

	if cap(w.rows) < w.res {
		w.rows = append(w.rows[:cap(w.rows)], make([][]cellPolygon, w.res-cap(w.rows))...)
	}
	w.rows = w.rows[:w.res]

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < w.res; y++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			w.rows[y] = w.writeRow(w.rows[y][:0], int32(y))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	front := ex.Offset + ex.Depth/2
	back := ex.Offset - ex.Depth/2
	for _, row := range w.rows {
		for i := range row {
			w.addPolygon(&row[i], front, back, ex)
		}
	}
	w.addCutFaces(front, back, ex)
	return nil
}

// at reads the sample at grid point (x, y), where (0, 0) is the chunk's
// minimum corner.
func (w *MeshWriter) at(x, y int32) float32 {
	const m = sdf.Margin
	return float32(w.samples[int(x+m)+int(y+m)*w.size])
}

// writeRow classifies every cell of row y. Corners are named A (0, 0),
// B (1, 0), C (0, 1) and D (1, 1); a sample below 128 is solid.
func (w *MeshWriter) writeRow(out []cellPolygon, y int32) []cellPolygon {
	res := int32(w.res)
	for x := int32(0); x < res; x++ {
		a, b := w.at(x, y), w.at(x+1, y)
		c, d := w.at(x, y+1), w.at(x+1, y+1)
		inA, inB, inC, inD := a < 128, b < 128, c < 128, d < 128
		if !inA && !inB && !inC && !inD {
			continue
		}

		// Counter-clockwise walk around the cell.
		walk := [8]struct {
			key    pointKey
			inside bool
		}{
			{pointKey{x, y, pointCorner}, inA},
			{pointKey{x, y, pointEdgeX}, inA != inB},
			{pointKey{x + 1, y, pointCorner}, inB},
			{pointKey{x + 1, y, pointEdgeY}, inB != inD},
			{pointKey{x + 1, y + 1, pointCorner}, inD},
			{pointKey{x, y + 1, pointEdgeX}, inC != inD},
			{pointKey{x, y + 1, pointCorner}, inC},
			{pointKey{x, y, pointEdgeY}, inA != inC},
		}

		saddleAD := inA && inD && !inB && !inC
		saddleBC := inB && inC && !inA && !inD
		if (saddleAD || saddleBC) && (a+b+c+d)/4 >= 127.5 {
			// Separate corners: one triangle around each solid corner.
			first := 0
			if saddleBC {
				first = 2
			}
			for _, corner := range [2]int{first, first + 4} {
				var p cellPolygon
				for j := 0; j < 3; j++ {
					p.pts[j] = walk[(corner+j+7)%8].key
				}
				p.n = 3
				out = append(out, p)
			}
			continue
		}

		var p cellPolygon
		for _, v := range walk {
			if v.inside {
				p.pts[p.n] = v.key
				p.n++
			}
		}
		out = append(out, p)
	}
	return out
}

// pointPosition returns a point in grid units, interpolating edge crossings.
func (w *MeshWriter) pointPosition(k pointKey) mgl32.Vec2 {
	p := mgl32.Vec2{float32(k.X), float32(k.Y)}
	switch k.Kind {
	case pointEdgeX:
		a, b := w.at(k.X, k.Y)-127.5, w.at(k.X+1, k.Y)-127.5
		p[0] += a / (a - b)
	case pointEdgeY:
		a, b := w.at(k.X, k.Y)-127.5, w.at(k.X, k.Y+1)-127.5
		p[1] += a / (a - b)
	}
	return p
}

func (w *MeshWriter) addPolygon(p *cellPolygon, front, back float32, ex Extrusion) {
	n := int(p.n)
	var fi, bi, cf, cb [6]uint32
	for j := 0; j < n; j++ {
		k := p.pts[j]
		fi[j] = w.faceVertex(FaceFront, w.frontMap, k, front, ex)
		bi[j] = w.faceVertex(FaceBack, w.backMap, k, back, ex)
		cf[j] = w.collisionVertex(k, false, front)
		cb[j] = w.collisionVertex(k, true, back)
	}
	fm, bm := &w.faces[FaceFront], &w.faces[FaceBack]
	for j := 1; j+1 < n; j++ {
		fm.Indices = append(fm.Indices, fi[0], fi[j], fi[j+1])
		bm.Indices = append(bm.Indices, bi[0], bi[j+1], bi[j])
		w.colIndices = append(w.colIndices, cf[0], cf[j], cf[j+1], cb[0], cb[j+1], cb[j])
	}

	for j := 0; j < n; j++ {
		from, to := p.pts[j], p.pts[(j+1)%n]
		if !from.isEdge() || !to.isEdge() {
			continue
		}
		d := w.pointPosition(to).Sub(w.pointPosition(from))
		normal := mgl32.Vec2{d[1], -d[0]}
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		i := int32(len(w.segments))
		w.segments = append(w.segments, segment{from: from, to: to, normal: normal})
		w.outgoing[from] = i
		w.incoming[to] = i
		fromF, toF := w.collisionVertex(from, false, front), w.collisionVertex(to, false, front)
		fromB, toB := w.collisionVertex(from, true, back), w.collisionVertex(to, true, back)
		w.colIndices = append(w.colIndices, fromF, fromB, toF, fromB, toB, toF)
	}
}

func (w *MeshWriter) faceVertex(f Face, m map[pointKey]uint32, k pointKey, z float32, ex Extrusion) uint32 {
	if i, ok := m[k]; ok {
		return i
	}
	p := w.pointPosition(k).Mul(w.unit)
	normal := mgl32.Vec3{0, 0, 1}
	tangent := mgl32.Vec4{1, 0, 0, 1}
	if f == FaceBack {
		normal[2] = -1
		tangent[3] = -1
	}
	fm := &w.faces[f]
	i := uint32(len(fm.Vertices))
	fm.Vertices = append(fm.Vertices, Vertex{
		Position: mgl32.Vec3{p[0], p[1], z},
		Normal:   normal,
		Tangent:  tangent,
		TexCoord: p.Mul(ex.uvScale()),
	})
	m[k] = i
	return i
}

func (w *MeshWriter) collisionVertex(k pointKey, back bool, z float32) uint32 {
	ck := colKey{p: k, back: back}
	if i, ok := w.colMap[ck]; ok {
		return i
	}
	p := w.pointPosition(k).Mul(w.unit)
	i := uint32(len(w.colPositions) / 3)
	w.colPositions = append(w.colPositions, p[0], p[1], z)
	w.colMap[ck] = i
	return i
}

// cutV picks the texture V of a cut vertex from the axis its face runs
// along.
func cutV(p, normal mgl32.Vec2) float32 {
	if math32.Abs(normal[1]) > math32.Abs(normal[0]) {
		return p[0]
	}
	return p[1]
}

// addCutFaces joins front and back along every contour segment. Where two
// segments meet at less than MaxSmoothAngle with matching texture V they
// share a vertex pair with the averaged normal.
func (w *MeshWriter) addCutFaces(front, back float32, ex Extrusion) {
	minDot := math32.Cos(ex.MaxSmoothAngle * math32.Pi / 180)
	uvScale := ex.uvScale()
	cut := &w.faces[FaceCut]

	pair := func(k pointKey, seg int32) uint32 {
		in, hasIn := w.incoming[k]
		out, hasOut := w.outgoing[k]
		p := w.pointPosition(k).Mul(w.unit)
		normal := w.segments[seg].normal
		key := cutKey{p: k, seg: seg}
		if hasIn && hasOut {
			nIn, nOut := w.segments[in].normal, w.segments[out].normal
			if nIn.Dot(nOut) >= minDot && math32.Abs(cutV(p, nIn)-cutV(p, nOut))*uvScale <= 0.001 {
				key.seg = -1
				if sum := nIn.Add(nOut); sum.Len() > 0 {
					normal = sum.Normalize()
				}
			}
		}
		if i, ok := w.cutMap[key]; ok {
			return i
		}
		n3 := mgl32.Vec3{normal[0], normal[1], 0}
		v := cutV(p, normal) * uvScale
		i := uint32(len(cut.Vertices))
		cut.Vertices = append(cut.Vertices,
			Vertex{Position: mgl32.Vec3{p[0], p[1], front}, Normal: n3, Tangent: mgl32.Vec4{0, 0, -1, 1}, TexCoord: mgl32.Vec2{0, v}},
			Vertex{Position: mgl32.Vec3{p[0], p[1], back}, Normal: n3, Tangent: mgl32.Vec4{0, 0, -1, 1}, TexCoord: mgl32.Vec2{(front - back) * uvScale, v}},
		)
		w.cutMap[key] = i
		return i
	}

	for s := range w.segments {
		seg := int32(s)
		a := pair(w.segments[s].from, seg)
		b := pair(w.segments[s].to, seg)
		cut.Indices = append(cut.Indices, a, a+1, b, a+1, b+1, b)
	}
}
