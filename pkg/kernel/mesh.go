package kernel

import "github.com/go-gl/mathgl/mgl32"

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, tangents 4 (xyz plus handedness),
// texcoords 2, and indices has 3 uint32s per triangle.
// Tangents and TexCoords may be empty for meshes without a UV layout.
type Mesh struct {
	Vertices  []float32 `json:"vertices"`
	Normals   []float32 `json:"normals"`
	Tangents  []float32 `json:"tangents,omitempty"`
	TexCoords []float32 `json:"texCoords,omitempty"`
	Indices   []uint32  `json:"indices"`
	Name      string    `json:"name"`
	Material  string    `json:"material,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Indices) == 0
}

// Translate offsets every vertex in place.
func (m *Mesh) Translate(offset mgl32.Vec3) {
	for i := 0; i+2 < len(m.Vertices); i += 3 {
		m.Vertices[i] += offset[0]
		m.Vertices[i+1] += offset[1]
		m.Vertices[i+2] += offset[2]
	}
}

// Clone returns a deep copy.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		Vertices:  append([]float32(nil), m.Vertices...),
		Normals:   append([]float32(nil), m.Normals...),
		Tangents:  append([]float32(nil), m.Tangents...),
		TexCoords: append([]float32(nil), m.TexCoords...),
		Indices:   append([]uint32(nil), m.Indices...),
		Name:      m.Name,
		Material:  m.Material,
	}
}

// Bounds returns the axis-aligned box around all vertices, or ok=false for
// a mesh without vertices.
func (m *Mesh) Bounds() (min, max mgl32.Vec3, ok bool) {
	if len(m.Vertices) < 3 {
		return min, max, false
	}
	min = mgl32.Vec3{m.Vertices[0], m.Vertices[1], m.Vertices[2]}
	max = min
	for i := 3; i+2 < len(m.Vertices); i += 3 {
		for a := 0; a < 3; a++ {
			v := m.Vertices[i+a]
			if v < min[a] {
				min[a] = v
			}
			if v > max[a] {
				max[a] = v
			}
		}
	}
	return min, max, true
}

// Append adds the geometry of o to m, offsetting its indices.
func (m *Mesh) Append(o *Mesh) {
	if o == nil {
		return
	}
	base := uint32(m.VertexCount())
	m.Vertices = append(m.Vertices, o.Vertices...)
	m.Normals = append(m.Normals, o.Normals...)
	m.Tangents = append(m.Tangents, o.Tangents...)
	m.TexCoords = append(m.TexCoords, o.TexCoords...)
	for _, i := range o.Indices {
		m.Indices = append(m.Indices, base+i)
	}
}
