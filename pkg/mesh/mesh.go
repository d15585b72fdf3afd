// Package mesh defines the indexed triangle mesh consumed by the
// reconstruction pipeline, together with the edge and adjacency queries the
// partitioner and curve network builder run against it.
package mesh

import (
	"errors"
	"fmt"

	"github.com/chazu/brepfit/pkg/geom"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrEmptyMesh is returned for a mesh without faces.
	ErrEmptyMesh = errors.New("mesh: no faces")
	// ErrBadIndex is returned when a face references a missing vertex.
	ErrBadIndex = errors.New("mesh: face index out of range")
)

// Mesh is an indexed triangle soup. Both arrays are flat: Vertices holds 3
// floats per vertex, Faces holds 3 vertex indices per triangle.
type Mesh struct {
	Vertices []float64 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Faces    []int     `json:"faces"`    // [i0,i1,i2, ...]
	Name     string    `json:"name,omitempty"`
}

// New builds a mesh and validates it.
func New(vertices []float64, faces []int) (*Mesh, error) {
	m := &Mesh{Vertices: vertices, Faces: faces}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks array shapes and index ranges.
func (m *Mesh) Validate() error {
	if len(m.Faces) == 0 {
		return ErrEmptyMesh
	}
	if len(m.Vertices)%3 != 0 {
		return fmt.Errorf("mesh: vertex array length %d is not a multiple of 3", len(m.Vertices))
	}
	if len(m.Faces)%3 != 0 {
		return fmt.Errorf("mesh: face array length %d is not a multiple of 3", len(m.Faces))
	}
	n := m.VertexCount()
	for i, v := range m.Faces {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: face %d references vertex %d of %d", ErrBadIndex, i/3, v, n)
		}
	}
	return nil
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	return len(m.Faces) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Faces) == 0
}

// Vertex returns vertex i.
func (m *Mesh) Vertex(i int) r3.Vec {
	return r3.Vec{X: m.Vertices[3*i], Y: m.Vertices[3*i+1], Z: m.Vertices[3*i+2]}
}

// Face returns the vertex indices of face f.
func (m *Mesh) Face(f int) [3]int {
	return [3]int{m.Faces[3*f], m.Faces[3*f+1], m.Faces[3*f+2]}
}

// FaceVertices returns the corner positions of face f.
func (m *Mesh) FaceVertices(f int) [3]r3.Vec {
	t := m.Face(f)
	return [3]r3.Vec{m.Vertex(t[0]), m.Vertex(t[1]), m.Vertex(t[2])}
}

func (m *Mesh) faceCross(f int) r3.Vec {
	p := m.FaceVertices(f)
	return r3.Cross(r3.Sub(p[1], p[0]), r3.Sub(p[2], p[0]))
}

// FaceNormal returns the unit normal of face f following its winding. A
// zero-area face has the zero normal.
func (m *Mesh) FaceNormal(f int) r3.Vec {
	c := m.faceCross(f)
	l := r3.Norm(c)
	if l == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/l, c)
}

// FaceArea returns the area of face f.
func (m *Mesh) FaceArea(f int) float64 {
	return r3.Norm(m.faceCross(f)) / 2
}

// FaceCentroid returns the centroid of face f.
func (m *Mesh) FaceCentroid(f int) r3.Vec {
	p := m.FaceVertices(f)
	return r3.Scale(1.0/3, r3.Add(p[0], r3.Add(p[1], p[2])))
}

// FaceEdges returns the three canonical edges of face f.
func (m *Mesh) FaceEdges(f int) [3]Edge {
	t := m.Face(f)
	return [3]Edge{MakeEdge(t[0], t[1]), MakeEdge(t[1], t[2]), MakeEdge(t[2], t[0])}
}

// FaceSetVertices returns the sorted unique vertex indices used by faces.
func (m *Mesh) FaceSetVertices(faces []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range faces {
		for _, v := range m.Face(f) {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sortInts(out)
	return out
}

// FacePlane fits a plane through the unique vertices of faces.
func (m *Mesh) FacePlane(faces []int) geom.Plane {
	idx := m.FaceSetVertices(faces)
	pts := make([]r3.Vec, len(idx))
	for i, v := range idx {
		pts[i] = m.Vertex(v)
	}
	return geom.FitPlane(pts)
}

// Bounds returns the bounding box of all vertices.
func (m *Mesh) Bounds() r3.Box {
	pts := make([]r3.Vec, m.VertexCount())
	for i := range pts {
		pts[i] = m.Vertex(i)
	}
	return geom.Bounds(pts)
}
