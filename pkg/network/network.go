// Package network extracts the curve network of a partitioned mesh: the
// chains of mesh edges separating pairs of patches (or a patch from the
// mesh border), each turned into one B-rep edge with an interpolated
// curve.
package network

import (
	"fmt"
	"sort"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/nurbs"
	"github.com/chazu/brepfit/pkg/partition"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options tunes curve construction.
type Options struct {
	// CurveOrder is the order of interpolated edge curves.
	CurveOrder int `yaml:"curve_order" json:"curveOrder"`
}

// DefaultOptions returns cubic edge curves.
func DefaultOptions() Options {
	return Options{CurveOrder: 4}
}

// Pair identifies the two patches an edge separates, lower id first. A
// mesh border edge pairs its patch with brep.None.
type Pair [2]int

func makePair(a, b int) Pair {
	if b == brep.None || a <= b {
		return Pair{a, b}
	}
	return Pair{b, a}
}

// Border reports whether the pair is a patch against the mesh border.
func (p Pair) Border() bool {
	return p[1] == brep.None
}

func (p Pair) String() string {
	if p.Border() {
		return fmt.Sprintf("(%d|border)", p[0])
	}
	return fmt.Sprintf("(%d|%d)", p[0], p[1])
}

// Edge is one curve of the network.
type Edge struct {
	ID        brep.EdgeID
	Patches   Pair
	MeshEdges []mesh.Edge
	// Chain is the mesh vertex sequence the curve interpolates. A closed
	// chain repeats its first vertex at the end.
	Chain  []int
	Closed bool
	Curve  *nurbs.Curve
	Start  brep.VertexID
	End    brep.VertexID
}

// Network is the curve network of a partition.
type Network struct {
	Edges []*Edge
	// PatchEdges lists, per patch, the B-rep edges bounding it.
	PatchEdges [][]brep.EdgeID
	// Owner maps every boundary mesh edge to its index in Edges.
	Owner map[mesh.Edge]int
	// Vertices maps mesh vertices to the B-rep vertices created for them.
	Vertices map[int]brep.VertexID
}

// EdgesOf returns the network edges bounding patch p.
func (n *Network) EdgesOf(p int) []*Edge {
	out := make([]*Edge, 0, len(n.PatchEdges[p]))
	for _, id := range n.PatchEdges[p] {
		out = append(out, n.byID(id))
	}
	return out
}

func (n *Network) byID(id brep.EdgeID) *Edge {
	for _, e := range n.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

type builder struct {
	mesh  *mesh.Mesh
	topo  *mesh.Topology
	part  *partition.Result
	model *brep.Model
	opts  Options

	pairs   map[mesh.Edge]Pair
	byPair  map[Pair][]mesh.Edge
	incid   map[int][]mesh.Edge
	claimed map[mesh.Edge]bool
	net     *Network
}

// Build walks the boundary edges of every patch pair and adds one B-rep
// edge per chain to model. Chains end at corners: vertices touching three
// or more patches, or where edges of different pairs meet. A chain
// without corners is closed and starts and ends at one vertex.
func Build(m *mesh.Mesh, part *partition.Result, model *brep.Model, opts Options) (*Network, error) {
	if opts.CurveOrder < 2 {
		return nil, fmt.Errorf("network: curve order %d", opts.CurveOrder)
	}
	b := &builder{
		mesh:    m,
		topo:    m.BuildTopology(),
		part:    part,
		model:   model,
		opts:    opts,
		pairs:   make(map[mesh.Edge]Pair),
		byPair:  make(map[Pair][]mesh.Edge),
		incid:   make(map[int][]mesh.Edge),
		claimed: make(map[mesh.Edge]bool),
		net: &Network{
			PatchEdges: make([][]brep.EdgeID, len(part.Patches)),
			Owner:      make(map[mesh.Edge]int),
			Vertices:   make(map[int]brep.VertexID),
		},
	}
	b.collect()

	keys := lo.Keys(b.byPair)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, key := range keys {
		for _, seed := range b.byPair[key] {
			if b.claimed[seed] {
				continue
			}
			if err := b.addChain(key, b.walk(key, seed)); err != nil {
				return nil, err
			}
		}
	}
	return b.net, nil
}

// collect keys every boundary mesh edge by its patch pair.
func (b *builder) collect() {
	for _, e := range b.topo.SortedEdges() {
		ids := b.part.EdgePatches[e]
		var key Pair
		switch {
		case len(ids) >= 2:
			key = makePair(ids[0], ids[1])
		case len(ids) == 1 && b.topo.IsBorder(e):
			key = makePair(ids[0], brep.None)
		default:
			continue
		}
		b.pairs[e] = key
		b.byPair[key] = append(b.byPair[key], e)
		b.incid[e.A] = append(b.incid[e.A], e)
		b.incid[e.B] = append(b.incid[e.B], e)
	}
}

// corner reports whether a chain of pair key must stop at vertex v.
func (b *builder) corner(v int, key Pair) bool {
	if len(b.part.VertexPatches[v]) >= 3 {
		return true
	}
	degree := 0
	for _, e := range b.incid[v] {
		if b.pairs[e] != key {
			return true
		}
		degree++
	}
	return degree != 2
}

// walk claims the edges of key reachable from seed through non-corner
// vertices.
func (b *builder) walk(key Pair, seed mesh.Edge) []mesh.Edge {
	b.claimed[seed] = true
	edges := []mesh.Edge{seed}
	stack := []int{seed.A, seed.B}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.corner(v, key) {
			continue
		}
		for _, e := range b.incid[v] {
			if b.claimed[e] || b.pairs[e] != key {
				continue
			}
			b.claimed[e] = true
			edges = append(edges, e)
			stack = append(stack, e.Other(v))
		}
	}
	mesh.SortEdges(edges)
	return edges
}

// linearize orders the edges of a walk into a vertex chain. Open chains
// start at their lower endpoint; closed chains start at their lowest
// corner, or their lowest vertex if there is none.
func (b *builder) linearize(key Pair, edges []mesh.Edge) (chain []int, closed bool) {
	adj := make(map[int][]int)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	verts := lo.Keys(adj)
	sort.Ints(verts)
	for _, ns := range adj {
		sort.Ints(ns)
	}

	start := -1
	for _, v := range verts {
		if len(adj[v]) == 1 {
			start = v
			break
		}
	}
	if start < 0 {
		closed = true
		start = verts[0]
		for _, v := range verts {
			if b.corner(v, key) {
				start = v
				break
			}
		}
	}

	used := make(map[mesh.Edge]bool, len(edges))
	chain = []int{start}
	for cur := start; ; {
		next := -1
		for _, n := range adj[cur] {
			if e := mesh.MakeEdge(cur, n); !used[e] {
				used[e] = true
				next = n
				break
			}
		}
		if next < 0 {
			break
		}
		chain = append(chain, next)
		if next == start {
			break
		}
		cur = next
	}
	return chain, closed
}

func (b *builder) vertex(v int) brep.VertexID {
	if id, ok := b.net.Vertices[v]; ok {
		return id
	}
	id := b.model.AddVertex(b.mesh.Vertex(v), v)
	b.net.Vertices[v] = id
	return id
}

func (b *builder) addChain(key Pair, edges []mesh.Edge) error {
	chain, closed := b.linearize(key, edges)
	pts := lo.Map(chain, func(v, _ int) r3.Vec { return b.mesh.Vertex(v) })
	curve, err := nurbs.Interpolate(pts, b.opts.CurveOrder)
	if err != nil {
		return fmt.Errorf("network: curve %v through %d vertices: %w", key, len(chain), err)
	}
	start := b.vertex(chain[0])
	end := start
	if !closed {
		end = b.vertex(chain[len(chain)-1])
	}
	id := b.model.AddEdge(curve, start, end, key)
	ne := &Edge{
		ID: id, Patches: key, MeshEdges: edges, Chain: chain,
		Closed: closed, Curve: curve, Start: start, End: end,
	}
	idx := len(b.net.Edges)
	b.net.Edges = append(b.net.Edges, ne)
	for _, e := range edges {
		b.net.Owner[e] = idx
	}
	b.net.PatchEdges[key[0]] = append(b.net.PatchEdges[key[0]], id)
	if !key.Border() {
		b.net.PatchEdges[key[1]] = append(b.net.PatchEdges[key[1]], id)
	}
	return nil
}
