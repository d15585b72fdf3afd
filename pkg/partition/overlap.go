package partition

import (
	"github.com/chazu/brepfit/pkg/geom"
	"gonum.org/v1/gonum/spatial/r2"
)

// resolveOverlaps splits patches whose boundary triangles overlap when
// projected into the patch's best-fit plane, until no patch overlaps or
// MaxSplits splits have been made.
func (p *Partitioner) resolveOverlaps() {
	eps := 1e-9 * geom.Diagonal(p.mesh.Bounds())
	for p.splits < p.opts.MaxSplits {
		split := false
		for pid := range p.patches {
			a, b, ok := p.findOverlap(pid, eps)
			if !ok {
				continue
			}
			p.split(pid, a, b)
			p.splits++
			split = true
			break
		}
		if !split {
			return
		}
	}
	p.logger.Printf("partition: stopped after %d overlap splits", p.splits)
}

// findOverlap returns two boundary faces of patch pid whose projections
// overlap.
func (p *Partitioner) findOverlap(pid int, eps float64) (int, int, bool) {
	faces := p.sortedFaces(pid)
	if len(faces) < 2 {
		return 0, 0, false
	}
	plane := p.mesh.FacePlane(faces)
	var boundary []int
	var tris [][3]r2.Vec
	for _, f := range faces {
		if !p.isBoundary(f) {
			continue
		}
		vs := p.mesh.FaceVertices(f)
		boundary = append(boundary, f)
		tris = append(tris, [3]r2.Vec{plane.Project(vs[0]), plane.Project(vs[1]), plane.Project(vs[2])})
	}
	for i := range tris {
		for j := i + 1; j < len(tris); j++ {
			if geom.TrianglesOverlap2D(tris[i], tris[j], eps) {
				return boundary[i], boundary[j], true
			}
		}
	}
	return 0, 0, false
}

// split replaces patch pid by two patches grown breadth first and in
// lockstep from faces a and b, restricted to pid's faces. Faces neither
// front reaches form further patches, one per connected remainder.
func (p *Partitioner) split(pid, a, b int) {
	dir := p.patches[pid].dir
	p.logger.Printf("partition: splitting patch %d (%d faces) at faces %d and %d",
		pid, len(p.patches[pid].faces), a, b)

	type front struct {
		face, patch int
	}
	pa, pb := p.newPatch(dir), p.newPatch(dir)
	p.assign(a, pa)
	p.assign(b, pb)
	queue := []front{{a, pa}, {b, pb}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, g := range p.topo.Neighbors[cur.face] {
			if p.facePatch[g] != pid {
				continue
			}
			p.assign(g, cur.patch)
			queue = append(queue, front{g, cur.patch})
		}
	}
	for _, f := range p.sortedFaces(pid) {
		if p.facePatch[f] != pid {
			continue
		}
		rest := p.newPatch(dir)
		p.assign(f, rest)
		stack := []int{f}
		for len(stack) > 0 {
			g := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, h := range p.topo.Neighbors[g] {
				if p.facePatch[h] == pid {
					p.assign(h, rest)
					stack = append(stack, h)
				}
			}
		}
	}
}
