package partition

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// grow claims every face: within each direction group the largest
// unclaimed face seeds a patch that expands breadth first over edge
// neighbours of the same group whose area is within the ratio window of
// the seed's. Once a patch holds more than SizeThreshold faces, a
// neighbour is only admitted if all its vertices stay within
// AngleThreshold of the seed face's plane.
func (p *Partitioner) grow() {
	nf := p.mesh.FaceCount()
	groups := make([][]int, len(p.opts.Directions))
	for f := 0; f < nf; f++ {
		groups[p.faceDir[f]] = append(groups[p.faceDir[f]], f)
	}
	for dir, faces := range groups {
		sort.SliceStable(faces, func(i, j int) bool {
			return p.areas[faces[i]] > p.areas[faces[j]]
		})
		for _, seed := range faces {
			if p.facePatch[seed] >= 0 {
				continue
			}
			p.growFrom(seed, dir)
		}
	}
}

func (p *Partitioner) growFrom(seed, dir int) int {
	pid := p.newPatch(dir)
	p.assign(seed, pid)
	seedArea := p.areas[seed]
	seedNormal := p.normals[seed]
	seedCentroid := p.mesh.FaceCentroid(seed)

	queue := []int{seed}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, g := range p.topo.Neighbors[f] {
			if p.facePatch[g] >= 0 || p.faceDir[g] != dir {
				continue
			}
			if seedArea > 0 {
				ratio := p.areas[g] / seedArea
				if ratio < MinAreaRatio || ratio > MaxAreaRatio {
					continue
				}
			}
			if len(p.patches[pid].faces) > p.opts.SizeThreshold &&
				!p.withinSeedPlane(g, seedCentroid, seedNormal) {
				continue
			}
			p.assign(g, pid)
			queue = append(queue, g)
		}
	}
	return pid
}

// withinSeedPlane reports whether every vertex of face f is seen from the
// seed centroid at an angle of at most AngleThreshold to the seed plane.
func (p *Partitioner) withinSeedPlane(f int, origin, normal r3.Vec) bool {
	limit := p.opts.AngleThreshold * math.Pi / 180
	for _, v := range p.mesh.FaceVertices(f) {
		w := r3.Sub(v, origin)
		l := r3.Norm(w)
		if l == 0 {
			continue
		}
		s := math.Min(1, math.Abs(r3.Dot(w, normal))/l)
		if math.Asin(s) > limit {
			return false
		}
	}
	return true
}
