// Package partition groups the faces of a triangle mesh into near-planar
// patches. Faces are classified against a set of reference directions,
// grown into connected patches from the largest faces, smoothed by moving
// boundary faces to their majority neighbour patch, and split wherever a
// patch folds over itself when projected into its best-fit plane.
//
// All partitioning state lives on a Partitioner, so concurrent runs over
// different meshes are independent.
package partition

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Area ratio window, relative to the seed face, for faces admitted during
// growth.
const (
	MinAreaRatio = 0.1
	MaxAreaRatio = 10.0
)

// Options tunes the partitioner.
type Options struct {
	// Directions are the reference directions faces are classified
	// against. Empty means the six axis directions.
	Directions []r3.Vec `yaml:"directions" json:"directions"`
	// SizeThreshold is the face count above which growth only admits faces
	// whose vertices lie within AngleThreshold of the seed face's plane.
	SizeThreshold int `yaml:"size_threshold" json:"sizeThreshold"`
	// AngleThreshold is in degrees.
	AngleThreshold float64 `yaml:"angle_threshold" json:"angleThreshold"`
	// ShavePasses bounds the boundary smoothing passes.
	ShavePasses int `yaml:"shave_passes" json:"shavePasses"`
	// SmallPatch is the face count at or below which a patch loses
	// majority ties to the best aligned neighbour.
	SmallPatch int `yaml:"small_patch" json:"smallPatch"`
	// MaxSplits bounds the overlap splits of one run.
	MaxSplits int `yaml:"max_splits" json:"maxSplits"`
}

// DefaultOptions returns the options used by the pipeline.
func DefaultOptions() Options {
	return Options{
		Directions:     AxisDirections(),
		SizeThreshold:  64,
		AngleThreshold: 15,
		ShavePasses:    20,
		SmallPatch:     3,
		MaxSplits:      64,
	}
}

// AxisDirections returns +X, -X, +Y, -Y, +Z, -Z.
func AxisDirections() []r3.Vec {
	return []r3.Vec{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1}}
}

// Patch is a connected set of faces that will receive one surface.
type Patch struct {
	ID        int
	Name      string
	Direction int   // index into Result.Directions
	Faces     []int // sorted
	Area      float64
	Normal    r3.Vec // area weighted mean face normal, unit
}

// Result is a stable partition of a mesh.
type Result struct {
	Patches    []*Patch
	Directions []r3.Vec
	// FacePatch maps every face to its patch.
	FacePatch []int
	// EdgePatches maps every mesh edge to the sorted patches of its faces.
	EdgePatches map[mesh.Edge][]int
	// VertexPatches lists the sorted patches touching each vertex.
	VertexPatches [][]int
	// Splits counts the overlap splits performed.
	Splits int
}

// PatchNormal returns the dominant normal of patch id.
func (r *Result) PatchNormal(id int) r3.Vec {
	return r.Patches[id].Normal
}

// Partitioner holds the mutable state of one partitioning run: the face
// to patch back-map and each patch's face set.
type Partitioner struct {
	mesh   *mesh.Mesh
	topo   *mesh.Topology
	opts   Options
	logger *log.Logger

	normals []r3.Vec
	areas   []float64

	faceDir   []int
	facePatch []int
	patches   []*patchState
	splits    int
}

type patchState struct {
	dir   int
	faces map[int]struct{}
}

// New returns a partitioner for m. A nil logger discards output.
func New(m *mesh.Mesh, opts Options, logger *log.Logger) *Partitioner {
	if len(opts.Directions) == 0 {
		opts.Directions = AxisDirections()
	}
	dirs := make([]r3.Vec, len(opts.Directions))
	for i, d := range opts.Directions {
		dirs[i] = r3.Unit(d)
	}
	opts.Directions = dirs
	if opts.ShavePasses < 0 {
		opts.ShavePasses = 0
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Partitioner{mesh: m, opts: opts, logger: logger}
}

// Run partitions the mesh. It only fails on invalid input or a cancelled
// context; any valid mesh yields some partition.
func (p *Partitioner) Run(ctx context.Context) (*Result, error) {
	if err := p.mesh.Validate(); err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}
	p.prepare()

	phases := []struct {
		name string
		run  func()
	}{
		{"classify", p.classify},
		{"grow", p.grow},
		{"shave", p.shave},
		{"split", p.resolveOverlaps},
	}
	for _, ph := range phases {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("partition: %s: %w", ph.name, err)
		}
		ph.run()
	}
	return p.result(), nil
}

func (p *Partitioner) prepare() {
	m := p.mesh
	nf := m.FaceCount()
	p.topo = m.BuildTopology()
	p.normals = make([]r3.Vec, nf)
	p.areas = make([]float64, nf)
	p.faceDir = make([]int, nf)
	p.facePatch = make([]int, nf)
	for f := 0; f < nf; f++ {
		p.normals[f] = m.FaceNormal(f)
		p.areas[f] = m.FaceArea(f)
		p.facePatch[f] = -1
	}
	p.patches = nil
	p.splits = 0
}

// classify assigns every face the direction with the largest positive dot
// product; the first direction reaching the maximum wins. Faces without
// any positive match (zero area) fall into direction 0.
func (p *Partitioner) classify() {
	for f, n := range p.normals {
		best, bestDot := 0, 0.0
		for d, dir := range p.opts.Directions {
			if dot := r3.Dot(n, dir); dot > bestDot {
				best, bestDot = d, dot
			}
		}
		p.faceDir[f] = best
	}
}

func (p *Partitioner) newPatch(dir int) int {
	p.patches = append(p.patches, &patchState{dir: dir, faces: make(map[int]struct{})})
	return len(p.patches) - 1
}

// assign moves face f into patch pid, keeping the back-map in sync.
func (p *Partitioner) assign(f, pid int) {
	if old := p.facePatch[f]; old >= 0 {
		delete(p.patches[old].faces, f)
	}
	p.facePatch[f] = pid
	p.patches[pid].faces[f] = struct{}{}
}

// sortedFaces returns the faces of patch pid in ascending order.
func (p *Partitioner) sortedFaces(pid int) []int {
	faces := lo.Keys(p.patches[pid].faces)
	sort.Ints(faces)
	return faces
}

// isBoundary reports whether face f has a mesh border edge or a neighbour
// in another patch.
func (p *Partitioner) isBoundary(f int) bool {
	for _, e := range p.mesh.FaceEdges(f) {
		if p.topo.IsBorder(e) {
			return true
		}
	}
	for _, g := range p.topo.Neighbors[f] {
		if p.facePatch[g] != p.facePatch[f] {
			return true
		}
	}
	return false
}

// result discards empty patches, renumbers the rest in creation order and
// rebuilds the face, edge and vertex maps.
func (p *Partitioner) result() *Result {
	m := p.mesh
	res := &Result{
		Directions:    p.opts.Directions,
		FacePatch:     make([]int, m.FaceCount()),
		EdgePatches:   make(map[mesh.Edge][]int, len(p.topo.EdgeFaces)),
		VertexPatches: make([][]int, m.VertexCount()),
		Splits:        p.splits,
	}
	for old := range p.patches {
		if len(p.patches[old].faces) == 0 {
			continue
		}
		faces := p.sortedFaces(old)
		id := len(res.Patches)
		var normal r3.Vec
		for _, f := range faces {
			res.FacePatch[f] = id
			normal = r3.Add(normal, r3.Scale(p.areas[f], p.normals[f]))
		}
		if r3.Norm(normal) > 0 {
			normal = r3.Unit(normal)
		} else {
			normal = p.opts.Directions[p.patches[old].dir]
		}
		res.Patches = append(res.Patches, &Patch{
			ID:        id,
			Name:      fmt.Sprintf("patch-%03d", id),
			Direction: p.patches[old].dir,
			Faces:     faces,
			Area:      lo.SumBy(faces, func(f int) float64 { return p.areas[f] }),
			Normal:    normal,
		})
	}

	for e, faces := range p.topo.EdgeFaces {
		ids := lo.Uniq(lo.Map(faces, func(f, _ int) int { return res.FacePatch[f] }))
		sort.Ints(ids)
		res.EdgePatches[e] = ids
	}
	for v, faces := range p.topo.VertexFaces {
		ids := lo.Uniq(lo.Map(faces, func(f, _ int) int { return res.FacePatch[f] }))
		sort.Ints(ids)
		res.VertexPatches[v] = ids
	}
	return res
}

// Run is a convenience wrapper around New(m, opts, logger).Run(ctx).
func Run(ctx context.Context, m *mesh.Mesh, opts Options, logger *log.Logger) (*Result, error) {
	return New(m, opts, logger).Run(ctx)
}
