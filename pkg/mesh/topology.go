package mesh

import (
	"sort"
)

// Edge is an undirected mesh edge. A is always the smaller vertex index so
// the value can be used directly as a map key.
type Edge struct {
	A, B int
}

// MakeEdge returns the canonical edge between a and b.
func MakeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// Other returns the endpoint of e that is not v.
func (e Edge) Other(v int) int {
	if e.A == v {
		return e.B
	}
	return e.A
}

// Less orders edges lexicographically.
func (e Edge) Less(o Edge) bool {
	if e.A != o.A {
		return e.A < o.A
	}
	return e.B < o.B
}

// Topology caches the adjacency queries derived from a mesh. It is
// regenerated on demand and never stored with the mesh.
type Topology struct {
	// EdgeFaces maps each edge to the faces using it, in face order.
	EdgeFaces map[Edge][]int
	// VertexFaces lists the faces incident to each vertex, in face order.
	VertexFaces [][]int
	// Neighbors lists the edge-adjacent faces of each face, sorted.
	Neighbors [][]int
}

// BuildTopology computes edge, vertex and face adjacency for m.
func (m *Mesh) BuildTopology() *Topology {
	nf := m.FaceCount()
	t := &Topology{
		EdgeFaces:   make(map[Edge][]int, nf*3/2),
		VertexFaces: make([][]int, m.VertexCount()),
		Neighbors:   make([][]int, nf),
	}
	for f := 0; f < nf; f++ {
		for _, e := range m.FaceEdges(f) {
			t.EdgeFaces[e] = append(t.EdgeFaces[e], f)
		}
		for _, v := range m.Face(f) {
			vf := t.VertexFaces[v]
			if len(vf) == 0 || vf[len(vf)-1] != f {
				t.VertexFaces[v] = append(vf, f)
			}
		}
	}
	for f := 0; f < nf; f++ {
		var nb []int
		for _, e := range m.FaceEdges(f) {
			for _, g := range t.EdgeFaces[e] {
				if g != f {
					nb = append(nb, g)
				}
			}
		}
		sortInts(nb)
		t.Neighbors[f] = uniqSorted(nb)
	}
	return t
}

// SortedEdges returns every edge of the mesh in canonical order.
func (t *Topology) SortedEdges() []Edge {
	edges := make([]Edge, 0, len(t.EdgeFaces))
	for e := range t.EdgeFaces {
		edges = append(edges, e)
	}
	SortEdges(edges)
	return edges
}

// IsBorder reports whether e is used by exactly one face.
func (t *Topology) IsBorder(e Edge) bool {
	return len(t.EdgeFaces[e]) == 1
}

// SortEdges sorts edges in canonical order.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool { return edges[i].Less(edges[j]) })
}

func sortInts(s []int) {
	sort.Ints(s)
}

func uniqSorted(s []int) []int {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
