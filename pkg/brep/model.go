// Package brep holds the boundary representation produced by the
// reconstruction pipeline: vertices, edges with 3-D curves, trims with
// parameter-space curves, loops, faces and the surfaces they own.
//
// Entities are addressed by dense integer IDs in creation order. Appends
// are serialized by the model's mutex so independent patches can be
// processed concurrently.
package brep

import (
	"fmt"
	"sync"

	"github.com/chazu/brepfit/pkg/nurbs"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

type (
	VertexID  int
	CurveID   int
	EdgeID    int
	TrimID    int
	LoopID    int
	FaceID    int
	SurfaceID int
)

// None marks an unset reference.
const None = -1

// Vertex is a topological vertex. MeshVertex is the mesh vertex it was
// created from, or None.
type Vertex struct {
	ID         VertexID
	Pos        r3.Vec
	MeshVertex int
}

// Curve is a 3-D edge curve.
type Curve struct {
	ID    CurveID
	Curve *nurbs.Curve
}

// Edge is a topological edge running from Start to End along Curve.
// Patches names the two patches it separates; the second is None for a
// mesh border.
type Edge struct {
	ID      EdgeID
	Curve   CurveID
	Start   VertexID
	End     VertexID
	Patches [2]int
}

// Closed reports whether the edge starts and ends at the same vertex.
func (e *Edge) Closed() bool {
	return e.Start == e.End
}

// Trim is one use of an edge by a face, with its curve in the face's
// parameter domain. Reversed means the trim runs from the edge's End to
// its Start.
type Trim struct {
	ID       TrimID
	Edge     EdgeID
	Loop     LoopID
	Curve    *nurbs.Curve // Z is zero
	Reversed bool
	Samples  int // pullback samples that survived
}

// Loop is a closed sequence of trims bounding a face.
type Loop struct {
	ID         LoopID
	Face       FaceID
	Trims      []TrimID
	Outer      bool
	Degenerate bool
}

// Surface is a fitted surface with its fit statistics.
type Surface struct {
	ID        SurfaceID
	Surface   *nurbs.Surface
	RMS       float64
	Max       float64
	Converged bool
}

// Face is a trimmed surface. Patch is the mesh patch it was fitted to.
type Face struct {
	ID      FaceID
	Surface SurfaceID
	Outer   LoopID
	Inner   []LoopID
	Patch   int
}

// Model is the topology container.
type Model struct {
	ID uuid.UUID

	mu       sync.Mutex
	Vertices []*Vertex
	Curves   []*Curve
	Edges    []*Edge
	Trims    []*Trim
	Loops    []*Loop
	Faces    []*Face
	Surfaces []*Surface
}

// NewModel returns an empty model with a fresh identity.
func NewModel() *Model {
	return &Model{ID: uuid.New()}
}

// AddVertex appends a vertex.
func (m *Model) AddVertex(p r3.Vec, meshVertex int) VertexID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := VertexID(len(m.Vertices))
	m.Vertices = append(m.Vertices, &Vertex{ID: id, Pos: p, MeshVertex: meshVertex})
	return id
}

// AddEdge appends a curve and the edge that runs along it.
func (m *Model) AddEdge(c *nurbs.Curve, start, end VertexID, patches [2]int) EdgeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	cid := CurveID(len(m.Curves))
	m.Curves = append(m.Curves, &Curve{ID: cid, Curve: c})
	id := EdgeID(len(m.Edges))
	m.Edges = append(m.Edges, &Edge{ID: id, Curve: cid, Start: start, End: end, Patches: patches})
	return id
}

// AddSurface appends a fitted surface.
func (m *Model) AddSurface(s *nurbs.Surface, rms, max float64, converged bool) SurfaceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := SurfaceID(len(m.Surfaces))
	m.Surfaces = append(m.Surfaces, &Surface{ID: id, Surface: s, RMS: rms, Max: max, Converged: converged})
	return id
}

// AddFace appends a face without loops.
func (m *Model) AddFace(surf SurfaceID, patch int) FaceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := FaceID(len(m.Faces))
	m.Faces = append(m.Faces, &Face{ID: id, Surface: surf, Outer: None, Patch: patch})
	return id
}

// TrimSpec describes one trim of a loop being added.
type TrimSpec struct {
	Edge     EdgeID
	Curve    *nurbs.Curve
	Reversed bool
	Samples  int
}

// AddLoop appends a loop with its trims to face f. An outer loop replaces
// the face's outer loop; any other loop is added as an inner loop.
func (m *Model) AddLoop(f FaceID, outer, degenerate bool, trims []TrimSpec) (LoopID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(f) < 0 || int(f) >= len(m.Faces) {
		return None, fmt.Errorf("brep: face %d does not exist", f)
	}
	id := LoopID(len(m.Loops))
	loop := &Loop{ID: id, Face: f, Outer: outer, Degenerate: degenerate}
	for _, ts := range trims {
		if int(ts.Edge) < 0 || int(ts.Edge) >= len(m.Edges) {
			return None, fmt.Errorf("brep: edge %d does not exist", ts.Edge)
		}
		tid := TrimID(len(m.Trims))
		m.Trims = append(m.Trims, &Trim{
			ID: tid, Edge: ts.Edge, Loop: id, Curve: ts.Curve, Reversed: ts.Reversed, Samples: ts.Samples,
		})
		loop.Trims = append(loop.Trims, tid)
	}
	m.Loops = append(m.Loops, loop)
	face := m.Faces[f]
	if outer {
		face.Outer = id
	} else {
		face.Inner = append(face.Inner, id)
	}
	return id, nil
}

// Edge returns edge id, or nil.
func (m *Model) Edge(id EdgeID) *Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(id) < 0 || int(id) >= len(m.Edges) {
		return nil
	}
	return m.Edges[id]
}

// EdgeCurve returns the 3-D curve of edge id, or nil.
func (m *Model) EdgeCurve(id EdgeID) *nurbs.Curve {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(id) < 0 || int(id) >= len(m.Edges) {
		return nil
	}
	c := m.Edges[id].Curve
	if int(c) < 0 || int(c) >= len(m.Curves) {
		return nil
	}
	return m.Curves[c].Curve
}

// Vertex returns vertex id, or nil.
func (m *Model) Vertex(id VertexID) *Vertex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(id) < 0 || int(id) >= len(m.Vertices) {
		return nil
	}
	return m.Vertices[id]
}

// TrimEnds returns the start and end vertex of a trim in loop order.
func (m *Model) TrimEnds(t *Trim) (start, end VertexID) {
	e := m.Edge(t.Edge)
	if e == nil {
		return None, None
	}
	if t.Reversed {
		return e.End, e.Start
	}
	return e.Start, e.End
}

// FaceLoops returns the outer loop followed by the inner loops of f.
func (m *Model) FaceLoops(f *Face) []*Loop {
	var out []*Loop
	if f.Outer >= 0 && int(f.Outer) < len(m.Loops) {
		out = append(out, m.Loops[f.Outer])
	}
	for _, l := range f.Inner {
		if l >= 0 && int(l) < len(m.Loops) {
			out = append(out, m.Loops[l])
		}
	}
	return out
}

// Stats counts the entities of a model.
type Stats struct {
	Vertices, Edges, Trims, Loops, Faces, Surfaces int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d faces, %d loops, %d trims, %d edges, %d vertices",
		s.Faces, s.Loops, s.Trims, s.Edges, s.Vertices)
}

// Stats returns the entity counts.
func (m *Model) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Vertices: len(m.Vertices),
		Edges:    len(m.Edges),
		Trims:    len(m.Trims),
		Loops:    len(m.Loops),
		Faces:    len(m.Faces),
		Surfaces: len(m.Surfaces),
	}
}
