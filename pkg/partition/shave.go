package partition

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// shave smooths patch borders. Each boundary face is moved to the patch
// holding most of its edge neighbours, provided the face's normal does not
// point against that patch's direction. On a tie a face stays put unless
// its patch is small, in which case the tied patch best aligned with the
// face wins. Passes repeat until nothing moves or ShavePasses is reached.
func (p *Partitioner) shave() {
	for pass := 0; pass < p.opts.ShavePasses; pass++ {
		moved := 0
		for pid := range p.patches {
			for _, f := range p.sortedFaces(pid) {
				if p.facePatch[f] != pid || !p.isBoundary(f) {
					continue
				}
				target, ok := p.shaveTarget(f)
				if !ok || target == pid {
					continue
				}
				p.assign(f, target)
				moved++
			}
		}
		if moved == 0 {
			return
		}
		p.logger.Printf("partition: shave pass %d moved %d faces", pass, moved)
	}
}

// shaveTarget picks the patch face f should belong to.
func (p *Partitioner) shaveTarget(f int) (int, bool) {
	own := p.facePatch[f]
	counts := make(map[int]int, 3)
	for _, g := range p.topo.Neighbors[f] {
		counts[p.facePatch[g]]++
	}
	if len(counts) == 0 {
		return own, false
	}
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	var tied []int
	for pid, n := range counts {
		if n == best {
			tied = append(tied, pid)
		}
	}
	sort.Ints(tied)

	target := tied[0]
	if len(tied) > 1 {
		ownTied := false
		for _, pid := range tied {
			ownTied = ownTied || pid == own
		}
		if ownTied && len(p.patches[own].faces) > p.opts.SmallPatch {
			return own, false
		}
		target = p.bestAligned(f, tied)
	}
	if target == own {
		return own, false
	}
	if r3.Dot(p.normals[f], p.opts.Directions[p.patches[target].dir]) < 0 {
		return own, false
	}
	return target, true
}

// bestAligned returns the candidate whose direction has the largest dot
// product with face f's normal; ties go to the lowest patch id.
func (p *Partitioner) bestAligned(f int, candidates []int) int {
	best, bestDot := -1, 0.0
	for _, pid := range candidates {
		d := r3.Dot(p.normals[f], p.opts.Directions[p.patches[pid].dir])
		if best < 0 || d > bestDot || (d == bestDot && pid < best) {
			best, bestDot = pid, d
		}
	}
	return best
}
