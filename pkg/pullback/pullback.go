// Package pullback maps 3-D points onto the parameter domain of a fitted
// surface. An R-tree over a grid of surface samples provides starting
// parameters and Newton iteration refines them.
package pullback

import (
	"math"

	"github.com/chazu/brepfit/pkg/fit"
	"github.com/chazu/brepfit/pkg/geom"
	"github.com/chazu/brepfit/pkg/nurbs"
	"github.com/dhconnelly/rtreego"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Options controls index density and the acceptance test.
type Options struct {
	// Divisions is the number of sample intervals per parameter direction.
	Divisions int `yaml:"divisions" json:"divisions"`
	// Seeds is the number of nearest samples tried as Newton seeds.
	Seeds int `yaml:"seeds" json:"seeds"`
	// Tolerance is the largest accepted distance, relative to the diagonal
	// of the surface's bounding box.
	Tolerance float64 `yaml:"tolerance" json:"tolerance"`
	Steps     int     `yaml:"steps" json:"steps"`
	Accuracy  float64 `yaml:"accuracy" json:"accuracy"`
}

// DefaultOptions returns the options used for trimming.
func DefaultOptions() Options {
	return Options{Divisions: 24, Seeds: 3, Tolerance: 0.05, Steps: 100, Accuracy: 1e-9}
}

// sample is one indexed surface point.
type sample struct {
	uv r2.Vec
	p  r3.Vec
}

func (s *sample) Bounds() rtreego.Rect {
	return rtreego.Point{s.p.X, s.p.Y, s.p.Z}.ToRect(1e-9)
}

// Index answers closest point queries against one surface.
type Index struct {
	surf    *nurbs.Surface
	tree    *rtreego.Rtree
	opts    Options
	maxDist float64
}

// New samples s on a (Divisions+1)² grid and indexes the samples.
func New(s *nurbs.Surface, opts Options) *Index {
	def := DefaultOptions()
	if opts.Divisions < 1 {
		opts.Divisions = def.Divisions
	}
	if opts.Seeds < 1 {
		opts.Seeds = def.Seeds
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.Steps < 1 {
		opts.Steps = def.Steps
	}
	if opts.Accuracy <= 0 {
		opts.Accuracy = def.Accuracy
	}

	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	n := opts.Divisions
	objs := make([]rtreego.Spatial, 0, (n+1)*(n+1))
	pts := make([]r3.Vec, 0, (n+1)*(n+1))
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			uv := r2.Vec{
				X: u0 + (u1-u0)*float64(i)/float64(n),
				Y: v0 + (v1-v0)*float64(j)/float64(n),
			}
			p := s.Point(uv)
			objs = append(objs, &sample{uv: uv, p: p})
			pts = append(pts, p)
		}
	}
	return &Index{
		surf:    s,
		tree:    rtreego.NewTree(3, 4, 16, objs...),
		opts:    opts,
		maxDist: opts.Tolerance * geom.Diagonal(geom.Bounds(pts)),
	}
}

// Surface returns the indexed surface.
func (ix *Index) Surface() *nurbs.Surface {
	return ix.surf
}

// Seed returns the parameter of the sample nearest p.
func (ix *Index) Seed(p r3.Vec) r2.Vec {
	nn := ix.tree.NearestNeighbor(rtreego.Point{p.X, p.Y, p.Z})
	if nn == nil {
		return ix.surf.Center()
	}
	return nn.(*sample).uv
}

// Pull returns the closest surface parameter to p. ok is false when the
// best candidate is farther than the tolerance, which happens when p lies
// off the surface or beyond its parameter domain.
func (ix *Index) Pull(p r3.Vec) (res fit.InverseResult, ok bool) {
	res.Err = math.Inf(1)
	for _, nn := range ix.tree.NearestNeighbors(ix.opts.Seeds, rtreego.Point{p.X, p.Y, p.Z}) {
		if nn == nil {
			continue
		}
		r := fit.InverseMap(ix.surf, p, nn.(*sample).uv, ix.opts.Steps, ix.opts.Accuracy)
		if r.Err < res.Err {
			res = r
		}
	}
	return res, res.Err <= ix.maxDist
}
