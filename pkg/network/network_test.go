package network

import (
	"context"
	"testing"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/partition"
	"gonum.org/v1/gonum/spatial/r3"
)

func build(t *testing.T, m *mesh.Mesh) (*partition.Result, *brep.Model, *Network) {
	t.Helper()
	part, err := partition.Run(context.Background(), m, partition.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	model := brep.NewModel()
	net, err := Build(m, part, model, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	checkAccounting(t, m, part, net)
	return part, model, net
}

// checkAccounting verifies that every boundary mesh edge is owned by
// exactly one network edge of the right patch pair.
func checkAccounting(t *testing.T, m *mesh.Mesh, part *partition.Result, net *Network) {
	t.Helper()
	topo := m.BuildTopology()
	count := make(map[mesh.Edge]int)
	for _, ne := range net.Edges {
		if ne.Patches[0] == ne.Patches[1] {
			t.Errorf("edge %d separates patch %d from itself", ne.ID, ne.Patches[0])
		}
		for _, e := range ne.MeshEdges {
			count[e]++
		}
	}
	for _, e := range topo.SortedEdges() {
		ids := part.EdgePatches[e]
		boundary := len(ids) == 2 || topo.IsBorder(e)
		if boundary && count[e] != 1 {
			t.Errorf("boundary edge %v owned %d times", e, count[e])
		}
		if !boundary && count[e] != 0 {
			t.Errorf("interior edge %v owned %d times", e, count[e])
		}
	}
}

func TestFlatPlateHasOneClosedEdge(t *testing.T) {
	m := mesh.Quad(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}, 3, 3)
	_, model, net := build(t, m)
	if len(net.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(net.Edges))
	}
	e := net.Edges[0]
	if !e.Closed || e.Start != e.End {
		t.Errorf("border edge not closed: %+v", e)
	}
	if !e.Patches.Border() {
		t.Errorf("patches = %v", e.Patches)
	}
	if len(e.Chain) != 13 || e.Chain[0] != e.Chain[12] || e.Chain[0] != 0 {
		t.Errorf("chain = %v", e.Chain)
	}
	if got := model.Stats(); got.Vertices != 1 || got.Edges != 1 {
		t.Errorf("model = %v", got)
	}
	c := model.EdgeCurve(e.ID)
	if d := r3.Norm(r3.Sub(c.Start(), c.End())); d != 0 {
		t.Errorf("closed curve gap %v", d)
	}
}

func TestDihedralSharesOneEdge(t *testing.T) {
	a := mesh.Quad(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}, 2, 1)
	b := mesh.Quad(r3.Vec{X: 1}, r3.Vec{X: 1, Z: -1}, r3.Vec{X: 1, Y: 1, Z: -1}, r3.Vec{X: 1, Y: 1}, 2, 1)
	m := mesh.Merge("dihedral", a, b).Weld(1e-9)
	if m.FaceCount() != 8 {
		t.Fatalf("got %d faces, want 8", m.FaceCount())
	}
	part, model, net := build(t, m)
	if len(part.Patches) != 2 {
		t.Fatalf("got %d patches, want 2", len(part.Patches))
	}
	if len(net.Edges) != 3 {
		t.Fatalf("got %d edges, want 3", len(net.Edges))
	}

	var shared []*Edge
	for _, e := range net.Edges {
		if !e.Patches.Border() {
			shared = append(shared, e)
		}
	}
	if len(shared) != 1 {
		t.Fatalf("got %d shared edges, want 1", len(shared))
	}
	s := shared[0]
	if s.Closed || s.Start == s.End {
		t.Fatalf("shared edge should have two endpoints: %+v", s)
	}
	for _, v := range []brep.VertexID{s.Start, s.End} {
		p := model.Vertex(v).Pos
		if p.X != 1 || p.Z != 0 {
			t.Errorf("endpoint %v off the crease", p)
		}
	}
	if got := model.Stats().Vertices; got != 2 {
		t.Errorf("got %d vertices, want 2", got)
	}
	for p := range part.Patches {
		if n := len(net.PatchEdges[p]); n != 2 {
			t.Errorf("patch %d has %d edges, want 2", p, n)
		}
	}
}

func TestBoxNetwork(t *testing.T) {
	m := mesh.Box(r3.Vec{}, r3.Vec{X: 1, Y: 2, Z: 3}, 3)
	part, model, net := build(t, m)
	if len(part.Patches) != 6 {
		t.Fatalf("got %d patches, want 6", len(part.Patches))
	}
	if len(net.Edges) != 12 {
		t.Errorf("got %d edges, want 12", len(net.Edges))
	}
	if got := model.Stats().Vertices; got != 8 {
		t.Errorf("got %d vertices, want 8", got)
	}
	for p := range part.Patches {
		edges := net.EdgesOf(p)
		if len(edges) != 4 {
			t.Errorf("patch %d has %d edges, want 4", p, len(edges))
		}
		for _, e := range edges {
			if e.Patches[0] != p && e.Patches[1] != p {
				t.Errorf("edge %d listed for patch %d but separates %v", e.ID, p, e.Patches)
			}
			if len(e.Chain) != 4 {
				t.Errorf("edge %d chain = %v, want 4 vertices", e.ID, e.Chain)
			}
		}
	}
}

func TestPairOrdering(t *testing.T) {
	tests := []struct {
		a, b int
		want Pair
	}{
		{1, 2, Pair{1, 2}},
		{2, 1, Pair{1, 2}},
		{3, brep.None, Pair{3, brep.None}},
	}
	for _, tt := range tests {
		if got := makePair(tt.a, tt.b); got != tt.want {
			t.Errorf("makePair(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if got := (Pair{3, brep.None}).String(); got != "(3|border)" {
		t.Errorf("String = %q", got)
	}
}

func TestBuildRejectsOrder(t *testing.T) {
	m := mesh.Quad(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}, 1, 1)
	part, err := partition.Run(context.Background(), m, partition.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Build(m, part, brep.NewModel(), Options{CurveOrder: 1}); err == nil {
		t.Error("expected error for order 1")
	}
}
