// Package tessellate turns the trimmed faces of a B-rep model back into
// triangle meshes for previewing. One mesh is produced per face.
package tessellate

import (
	"fmt"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/geom"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// trimSamples is the number of points taken along each trim curve when
// building a face's clipping polygons.
const trimSamples = 32

// region is the parameter space area of a face: inside outer, outside
// every hole. A nil outer polygon keeps the whole domain.
type region struct {
	outer []r2.Vec
	holes [][]r2.Vec
}

func (r *region) contains(p r2.Vec) bool {
	if r.outer != nil && !geom.PointInPolygon(p, r.outer) {
		return false
	}
	for _, h := range r.holes {
		if geom.PointInPolygon(p, h) {
			return false
		}
	}
	return true
}

// Model samples every face's surface on a divs×divs parameter grid and
// keeps the triangles whose parameter centroid lies inside the face's
// trim loops. The model is only read.
func Model(model *brep.Model, divs int) ([]*mesh.Mesh, error) {
	if model == nil {
		return nil, nil
	}
	if divs < 1 {
		return nil, fmt.Errorf("tessellate: %d grid divisions", divs)
	}

	meshes := make([]*mesh.Mesh, 0, len(model.Faces))
	for _, f := range model.Faces {
		m, err := face(model, f, divs)
		if err != nil {
			return nil, fmt.Errorf("tessellate: face %d: %w", f.ID, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// face tessellates one face.
func face(model *brep.Model, f *brep.Face, divs int) (*mesh.Mesh, error) {
	if f.Surface < 0 || int(f.Surface) >= len(model.Surfaces) {
		return nil, fmt.Errorf("surface %d does not exist", f.Surface)
	}
	s := model.Surfaces[f.Surface].Surface
	reg := clipRegion(model, f)

	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	uv := func(i, j int) r2.Vec {
		return r2.Vec{
			X: u0 + (u1-u0)*float64(i)/float64(divs),
			Y: v0 + (v1-v0)*float64(j)/float64(divs),
		}
	}
	grid := make([][]r3.Vec, divs+1)
	for i := range grid {
		grid[i] = make([]r3.Vec, divs+1)
		for j := range grid[i] {
			grid[i][j] = s.Point(uv(i, j))
		}
	}

	var tris [][3]r3.Vec
	keep := func(a, b, c [2]int) {
		pa, pb, pc := uv(a[0], a[1]), uv(b[0], b[1]), uv(c[0], c[1])
		centroid := r2.Scale(1.0/3, r2.Add(r2.Add(pa, pb), pc))
		if !reg.contains(centroid) {
			return
		}
		tris = append(tris, [3]r3.Vec{grid[a[0]][a[1]], grid[b[0]][b[1]], grid[c[0]][c[1]]})
	}
	for i := 0; i < divs; i++ {
		for j := 0; j < divs; j++ {
			keep([2]int{i, j}, [2]int{i + 1, j}, [2]int{i + 1, j + 1})
			keep([2]int{i, j}, [2]int{i + 1, j + 1}, [2]int{i, j + 1})
		}
	}

	tol := 1e-9 * geom.Diagonal(geom.Bounds(s.CtrlPts))
	m := mesh.FromTriangles(tris, tol)
	m.Name = fmt.Sprintf("face-%03d", f.ID)
	return m, nil
}

// clipRegion collects the trim polygons of a face. Degenerate loops and
// loops without trim curves do not clip.
func clipRegion(model *brep.Model, f *brep.Face) *region {
	reg := &region{}
	for _, l := range model.FaceLoops(f) {
		if l.Degenerate {
			continue
		}
		poly := loopPolygon(model, l)
		if len(poly) < 3 {
			continue
		}
		if l.Outer {
			reg.outer = poly
		} else {
			reg.holes = append(reg.holes, poly)
		}
	}
	return reg
}

func loopPolygon(model *brep.Model, l *brep.Loop) []r2.Vec {
	var poly []r2.Vec
	for _, id := range l.Trims {
		c := model.Trims[id].Curve
		if c == nil {
			continue
		}
		poly = append(poly, sample2(c)...)
	}
	return poly
}

func sample2(c *nurbs.Curve) []r2.Vec {
	lo, hi := c.Domain()
	out := make([]r2.Vec, trimSamples)
	for i := range out {
		out[i] = c.Point2(lo + (hi-lo)*float64(i)/float64(trimSamples-1))
	}
	return out
}
