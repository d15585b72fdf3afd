// Package diag writes diagnostic plots of a reconstruction: the trim
// loops of a face in its parameter domain, and the patch outlines of a
// partitioned mesh. The output format follows the file extension (png,
// svg, pdf, ...).
package diag

import (
	"errors"
	"fmt"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/geom"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/partition"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Size is the edge length of written plots.
var Size = 6 * vg.Inch

// curveSamples is the number of points drawn per trim curve.
const curveSamples = 48

var holeDashes = []vg.Length{vg.Points(4), vg.Points(2)}

// PlotTrims draws the loops of face f in parameter space, together with
// the domain of its surface.
func PlotTrims(model *brep.Model, f brep.FaceID, path string) error {
	if f < 0 || int(f) >= len(model.Faces) {
		return fmt.Errorf("diag: face %d does not exist", f)
	}
	face := model.Faces[f]
	p := plot.New()
	p.Title.Text = fmt.Sprintf("face %d (patch %d)", face.ID, face.Patch)
	p.X.Label.Text = "u"
	p.Y.Label.Text = "v"

	if face.Surface >= 0 && int(face.Surface) < len(model.Surfaces) {
		s := model.Surfaces[face.Surface].Surface
		u0, u1 := s.DomainU()
		v0, v1 := s.DomainV()
		domain, err := plotter.NewLine(plotter.XYs{{X: u0, Y: v0}, {X: u1, Y: v0}, {X: u1, Y: v1}, {X: u0, Y: v1}, {X: u0, Y: v0}})
		if err != nil {
			return fmt.Errorf("diag: %w", err)
		}
		domain.LineStyle.Color = plotutil.Color(6)
		domain.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
		p.Add(domain)
		p.Legend.Add("domain", domain)
	}

	for i, l := range model.FaceLoops(face) {
		for _, id := range l.Trims {
			t := model.Trims[id]
			if t.Curve == nil {
				continue
			}
			xys := make(plotter.XYs, 0, curveSamples)
			for _, q := range t.Curve.Sample(curveSamples) {
				xys = append(xys, plotter.XY{X: q.X, Y: q.Y})
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("diag: trim %d: %w", t.ID, err)
			}
			line.LineStyle.Color = plotutil.Color(i)
			if !l.Outer {
				line.LineStyle.Dashes = holeDashes
			}
			p.Add(line)
		}
		if len(l.Trims) > 0 {
			start := model.Trims[l.Trims[0]]
			if start.Curve != nil {
				q := start.Curve.Start()
				dot, err := plotter.NewScatter(plotter.XYs{{X: q.X, Y: q.Y}})
				if err != nil {
					return fmt.Errorf("diag: %w", err)
				}
				dot.GlyphStyle.Color = plotutil.Color(i)
				p.Add(dot)
				p.Legend.Add(loopLabel(l), dot)
			}
		}
	}
	return save(p, path)
}

func loopLabel(l *brep.Loop) string {
	kind := "inner"
	if l.Outer {
		kind = "outer"
	}
	if l.Degenerate {
		kind += ", degenerate"
	}
	return fmt.Sprintf("loop %d (%s)", l.ID, kind)
}

// PlotPatches draws the outline of every patch of res, projected onto the
// best-fit plane of the whole mesh. Outline edges are mesh border edges
// and edges whose faces belong to different patches.
func PlotPatches(m *mesh.Mesh, res *partition.Result, path string) error {
	if m.IsEmpty() {
		return mesh.ErrEmptyMesh
	}
	if len(res.FacePatch) != m.FaceCount() {
		return errors.New("diag: partition does not match mesh")
	}
	pts := make([]r3.Vec, m.VertexCount())
	for i := range pts {
		pts[i] = m.Vertex(i)
	}
	view := geom.FitPlane(pts)

	outlines := make([][]plotter.XYs, len(res.Patches))
	topo := m.BuildTopology()
	for _, e := range topo.SortedEdges() {
		ids := res.EdgePatches[e]
		if len(topo.EdgeFaces[e]) > 1 && len(ids) < 2 {
			continue
		}
		a, b := view.Project(m.Vertex(e.A)), view.Project(m.Vertex(e.B))
		seg := plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}}
		for _, id := range ids {
			outlines[id] = append(outlines[id], seg)
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d patches", len(res.Patches))
	for _, patch := range res.Patches {
		for k, seg := range outlines[patch.ID] {
			line, err := plotter.NewLine(seg)
			if err != nil {
				return fmt.Errorf("diag: %s: %w", patch.Name, err)
			}
			line.LineStyle.Color = plotutil.Color(patch.ID)
			p.Add(line)
			if k == 0 {
				p.Legend.Add(patch.Name, line)
			}
		}
	}
	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	if err := p.Save(Size, Size, path); err != nil {
		return fmt.Errorf("diag: %w", err)
	}
	return nil
}
