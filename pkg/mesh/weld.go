package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FromTriangles builds an indexed mesh from a triangle soup, merging corners
// closer than tol. Triangles that collapse after welding are dropped.
func FromTriangles(tris [][3]r3.Vec, tol float64) *Mesh {
	w := newWelder(tol)
	m := &Mesh{}
	for _, t := range tris {
		a, b, c := w.index(t[0]), w.index(t[1]), w.index(t[2])
		if a == b || b == c || c == a {
			continue
		}
		m.Faces = append(m.Faces, a, b, c)
	}
	m.Vertices = w.vertices
	m.compact()
	return m
}

// compact drops vertices no face references and renumbers the rest in
// order of first use.
func (m *Mesh) compact() {
	used := make([]int, m.VertexCount())
	for i := range used {
		used[i] = -1
	}
	var verts []float64
	for i, v := range m.Faces {
		if used[v] < 0 {
			used[v] = len(verts) / 3
			verts = append(verts, m.Vertices[3*v:3*v+3]...)
		}
		m.Faces[i] = used[v]
	}
	m.Vertices = verts
}

// Weld returns a copy of m with coincident vertices merged.
func (m *Mesh) Weld(tol float64) *Mesh {
	tris := make([][3]r3.Vec, m.FaceCount())
	for f := range tris {
		tris[f] = m.FaceVertices(f)
	}
	out := FromTriangles(tris, tol)
	out.Name = m.Name
	return out
}

type cell struct{ x, y, z int64 }

// welder snaps points to a grid of size tol and merges points that land in
// the same or an adjacent cell and are within tol of each other.
type welder struct {
	tol      float64
	cells    map[cell][]int
	vertices []float64
}

func newWelder(tol float64) *welder {
	if tol <= 0 {
		tol = 1e-9
	}
	return &welder{tol: tol, cells: make(map[cell][]int)}
}

func (w *welder) key(p r3.Vec) cell {
	return cell{
		x: int64(math.Floor(p.X / w.tol)),
		y: int64(math.Floor(p.Y / w.tol)),
		z: int64(math.Floor(p.Z / w.tol)),
	}
}

func (w *welder) index(p r3.Vec) int {
	k := w.key(p)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range w.cells[cell{k.x + dx, k.y + dy, k.z + dz}] {
					q := r3.Vec{X: w.vertices[3*i], Y: w.vertices[3*i+1], Z: w.vertices[3*i+2]}
					if r3.Norm(r3.Sub(p, q)) <= w.tol {
						return i
					}
				}
			}
		}
	}
	i := len(w.vertices) / 3
	w.vertices = append(w.vertices, p.X, p.Y, p.Z)
	w.cells[k] = append(w.cells[k], i)
	return i
}
