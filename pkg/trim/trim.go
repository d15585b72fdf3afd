// Package trim builds the loops of a face from the network edges bounding
// its patch and pulls their curves back into the surface's parameter
// domain.
//
// Planning only reads the model, so the faces of different patches can
// be planned concurrently; Commit then appends the result.
package trim

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/geom"
	"github.com/chazu/brepfit/pkg/nurbs"
	"github.com/chazu/brepfit/pkg/pullback"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNoEdges is returned when a face has no bounding edges.
var ErrNoEdges = errors.New("trim: face has no edges")

// Options tunes loop construction.
type Options struct {
	// Samples is the number of points taken along each edge curve.
	Samples int `yaml:"samples" json:"samples"`
	// Order is the order of the parameter space trim curves.
	Order    int              `yaml:"order" json:"order"`
	Pullback pullback.Options `yaml:"pullback" json:"pullback"`
}

// DefaultOptions returns the options used by the pipeline.
func DefaultOptions() Options {
	return Options{Samples: 16, Order: 4, Pullback: pullback.DefaultOptions()}
}

// Trimmer plans and commits face loops.
type Trimmer struct {
	opts   Options
	logger *log.Logger
}

// New returns a trimmer. A nil logger discards output.
func New(opts Options, logger *log.Logger) *Trimmer {
	def := DefaultOptions()
	if opts.Samples < 2 {
		opts.Samples = def.Samples
	}
	if opts.Order < 2 {
		opts.Order = def.Order
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Trimmer{opts: opts, logger: logger}
}

// LoopPlan is a loop ready to be added to a face.
type LoopPlan struct {
	Outer      bool
	Degenerate bool
	Open       bool // the walk did not return to its start vertex
	Trims      []brep.TrimSpec
	// Polygon is the loop's pulled back sample polygon, closing point
	// omitted.
	Polygon []r2.Vec
}

// SignedArea returns the parameter space area enclosed by the loop.
func (l *LoopPlan) SignedArea() float64 {
	return geom.SignedArea(l.Polygon)
}

// FacePlan holds the loops of one face, outer loop first.
type FacePlan struct {
	Loops []*LoopPlan
	// Failed counts pullback samples that were dropped.
	Failed int
}

// walk is an ordered chain of edge uses.
type walk struct {
	uses   []use
	closed bool
	diag   float64
}

type use struct {
	edge     *brep.Edge
	reversed bool
}

// Plan links edges into loops on surface s. Edges whose endpoints
// coincide form loops of their own; the rest are chained through shared
// vertices. The loop with the largest bounding box is the outer loop.
func (t *Trimmer) Plan(model *brep.Model, s *nurbs.Surface, edges []brep.EdgeID) (*FacePlan, error) {
	if len(edges) == 0 {
		return nil, ErrNoEdges
	}
	walks, err := t.walks(model, edges)
	if err != nil {
		return nil, err
	}
	outer := 0
	for i, w := range walks {
		if w.diag > walks[outer].diag {
			outer = i
		}
	}
	walks[0], walks[outer] = walks[outer], walks[0]

	index := pullback.New(s, t.opts.Pullback)
	plan := &FacePlan{}
	for i, w := range walks {
		lp, failed := t.pull(model, index, w, i == 0)
		plan.Failed += failed
		plan.Loops = append(plan.Loops, lp)
	}
	return plan, nil
}

func (t *Trimmer) walks(model *brep.Model, ids []brep.EdgeID) ([]*walk, error) {
	ids = lo.Uniq(ids)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var walks []*walk
	incident := make(map[brep.VertexID][]*brep.Edge)
	var rest []*brep.Edge
	for _, id := range ids {
		e := model.Edge(id)
		if e == nil {
			return nil, fmt.Errorf("trim: edge %d does not exist", id)
		}
		if e.Closed() {
			walks = append(walks, &walk{uses: []use{{edge: e}}, closed: true})
			continue
		}
		rest = append(rest, e)
		incident[e.Start] = append(incident[e.Start], e)
		incident[e.End] = append(incident[e.End], e)
	}

	used := make(map[brep.EdgeID]bool, len(rest))
	for _, e := range rest {
		if used[e.ID] {
			continue
		}
		used[e.ID] = true
		w := &walk{uses: []use{{edge: e}}}
		start, cur := e.Start, e.End
		for cur != start {
			var next *brep.Edge
			for _, c := range incident[cur] {
				if !used[c.ID] {
					next = c
					break
				}
			}
			if next == nil {
				break
			}
			used[next.ID] = true
			reversed := next.End == cur
			w.uses = append(w.uses, use{edge: next, reversed: reversed})
			if reversed {
				cur = next.Start
			} else {
				cur = next.End
			}
		}
		w.closed = cur == start
		if !w.closed {
			t.logger.Printf("trim: walk from edge %d stops at vertex %d", e.ID, cur)
		}
		walks = append(walks, w)
	}

	for _, w := range walks {
		var pts []r3.Vec
		for _, u := range w.uses {
			pts = append(pts, model.EdgeCurve(u.edge.ID).Sample(t.opts.Samples)...)
		}
		w.diag = geom.Diagonal(geom.Bounds(pts))
	}
	return walks, nil
}

// pull samples every edge of w in traversal order, maps the samples into
// parameter space and interpolates one trim curve per edge. The loop's
// final sample is forced onto its first so the loop closes exactly.
func (t *Trimmer) pull(model *brep.Model, index *pullback.Index, w *walk, outer bool) (*LoopPlan, int) {
	lp := &LoopPlan{Outer: outer, Open: !w.closed}
	failed := 0
	uvs := make([][]r2.Vec, len(w.uses))
	for i, u := range w.uses {
		pts := model.EdgeCurve(u.edge.ID).Sample(t.opts.Samples)
		if u.reversed {
			pts = lo.Reverse(pts)
		}
		for k, p := range pts {
			res, ok := index.Pull(p)
			if !ok {
				t.logger.Printf("trim: edge %d sample %d did not pull back (distance %.3g)", u.edge.ID, k, res.Err)
				failed++
				continue
			}
			uvs[i] = append(uvs[i], res.Param)
		}
	}

	var start r2.Vec
	var haveStart bool
	for _, s := range uvs {
		if len(s) > 0 {
			start, haveStart = s[0], true
			break
		}
	}
	if haveStart && w.closed {
		last := len(uvs) - 1
		n := len(uvs[last])
		switch {
		case n == 0:
			uvs[last] = []r2.Vec{start}
		case len(w.uses) == 1 && n == 1:
			// A single surviving sample is the start itself.
		default:
			uvs[last][n-1] = start
		}
	}

	survived := 0
	for i, u := range w.uses {
		spec := brep.TrimSpec{Edge: u.edge.ID, Reversed: u.reversed, Samples: len(uvs[i])}
		if c, err := nurbs.Interpolate2(uvs[i], t.opts.Order); err == nil {
			spec.Curve = c
		}
		survived += len(uvs[i])
		lp.Trims = append(lp.Trims, spec)
		for k, p := range uvs[i] {
			if len(lp.Polygon) > 0 && k == 0 && r2.Norm(r2.Sub(p, lp.Polygon[len(lp.Polygon)-1])) <= 1e-12 {
				continue
			}
			lp.Polygon = append(lp.Polygon, p)
		}
	}
	if n := len(lp.Polygon); n > 1 && r2.Norm(r2.Sub(lp.Polygon[0], lp.Polygon[n-1])) <= 1e-12 {
		lp.Polygon = lp.Polygon[:n-1]
	}
	lp.Degenerate = survived < 3 || len(lp.Polygon) < 3

	area := lp.SignedArea()
	if (outer && area < 0) || (!outer && area > 0) {
		lp.reverse()
	}
	return lp, failed
}

// reverse flips the traversal of the loop: trims in reverse order, each
// running the other way.
func (l *LoopPlan) reverse() {
	l.Trims = lo.Reverse(l.Trims)
	for i := range l.Trims {
		l.Trims[i].Reversed = !l.Trims[i].Reversed
		if l.Trims[i].Curve != nil {
			l.Trims[i].Curve = l.Trims[i].Curve.Reverse()
		}
	}
	l.Polygon = lo.Reverse(l.Polygon)
}

// Commit adds the planned loops to face f.
func Commit(model *brep.Model, f brep.FaceID, plan *FacePlan) error {
	for i, lp := range plan.Loops {
		if _, err := model.AddLoop(f, lp.Outer, lp.Degenerate, lp.Trims); err != nil {
			return fmt.Errorf("trim: loop %d: %w", i, err)
		}
	}
	return nil
}
