package fit

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params weights the constraint classes of one assemble step. Every
// regularization row is scaled by its weight divided by Resolution; a
// non-positive weight omits that class entirely.
type Params struct {
	InteriorWeight     float64 `yaml:"interior_weight" json:"interiorWeight"`
	BoundaryWeight     float64 `yaml:"boundary_weight" json:"boundaryWeight"`
	CurveWeight        float64 `yaml:"curve_weight" json:"curveWeight"`
	InteriorSmoothness float64 `yaml:"interior_smoothness" json:"interiorSmoothness"`
	BoundarySmoothness float64 `yaml:"boundary_smoothness" json:"boundarySmoothness"`
	CageInterior       float64 `yaml:"cage_interior" json:"cageInterior"`
	CageBoundary       float64 `yaml:"cage_boundary" json:"cageBoundary"`
	CageCorner         float64 `yaml:"cage_corner" json:"cageCorner"`
	Resolution         int     `yaml:"resolution" json:"resolution"`
	InvMapSteps        int     `yaml:"inv_map_steps" json:"invMapSteps"`
	InvMapAccuracy     float64 `yaml:"inv_map_accuracy" json:"invMapAccuracy"`
	Damping            float64 `yaml:"damping" json:"damping"`
}

// DefaultParams returns the weights used by the reconstruction pipeline.
func DefaultParams() Params {
	return Params{
		InteriorWeight:     1,
		BoundaryWeight:     1,
		CurveWeight:        1,
		InteriorSmoothness: 0.2,
		BoundarySmoothness: 0.2,
		Resolution:         16,
		InvMapSteps:        100,
		InvMapAccuracy:     1e-4,
		Damping:            1,
	}
}

// Fitter owns one surface and the point cloud it is being fitted to.
type Fitter struct {
	Surface *nurbs.Surface
	Data    *Data
	Params  Params
	Logger  *log.Logger

	sys *System
	sol []r3.Vec
}

// NewFitter returns a fitter for s and d. A nil logger discards output.
func NewFitter(s *nurbs.Surface, d *Data, p Params, logger *log.Logger) *Fitter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Fitter{Surface: s, Data: d, Params: p, Logger: logger}
}

// System returns the system built by the last Assemble.
func (f *Fitter) System() *System {
	return f.sys
}

// Assemble inverse-maps every point onto the current surface and builds
// the least-squares system for the next solve.
func (f *Fitter) Assemble(p Params) error {
	if f.Data == nil || f.Data.Len() == 0 {
		return ErrNoPoints
	}
	f.Params = p
	s := f.Surface
	f.sys = NewSystem(len(s.CtrlPts))
	f.sol = nil

	steps, acc := p.InvMapSteps, p.InvMapAccuracy
	if steps <= 0 {
		steps = 100
	}
	if acc <= 0 {
		acc = 1e-4
	}

	notConverged := 0
	free := func(pts []Point, weight float64) {
		for i := range pts {
			pt := &pts[i]
			seed := pt.Param
			if !pt.HasParam {
				seed = FindClosestElementMidpoint(s, pt.Pos)
			}
			res := InverseMap(s, pt.Pos, seed, steps, acc)
			pt.Param, pt.HasParam = res.Param, true
			pt.Err, pt.Normal, pt.Converged = res.Err, res.Normal, res.Converged
			if !res.Converged {
				notConverged++
			}
			idx, w := s.Stencil(res.Param, 0, 0)
			f.sys.Add(idx, w, weight*pt.Weight, pt.Pos)
		}
	}
	free(f.Data.Interior, p.InteriorWeight)
	free(f.Data.Curve, p.CurveWeight)

	for i := range f.Data.Boundary {
		pt := &f.Data.Boundary[i]
		seed := pt.Param
		if !pt.HasParam {
			seed = FindClosestElementMidpoint(s, pt.Pos)
		}
		res, err := InverseMapBoundary(s, pt.Pos, seed, steps, acc)
		if err != nil {
			return fmt.Errorf("fit: boundary point %d: %w", i, err)
		}
		pt.Param, pt.HasParam = res.Param, true
		pt.Err, pt.Normal, pt.Converged = res.Err, res.Normal, res.Converged
		if !res.Converged {
			notConverged++
		}
		idx, w := s.Stencil(res.Param, 0, 0)
		f.sys.Add(idx, w, p.BoundaryWeight*pt.Weight, pt.Pos)
	}
	if notConverged > 0 {
		f.Logger.Printf("fit: %d of %d point inversions did not converge", notConverged, f.Data.Len())
	}

	f.addSmoothness(p)
	f.addCage(p)
	return nil
}

func (f *Fitter) resolution() int {
	if f.Params.Resolution < 1 {
		return 1
	}
	return f.Params.Resolution
}

// addSmoothness penalizes Suu+Svv on a grid of interior parameters and the
// second derivative along each side at boundary parameters.
func (f *Fitter) addSmoothness(p Params) {
	s := f.Surface
	res := f.resolution()
	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	at := func(i int, lo, hi float64) float64 {
		return lo + (hi-lo)*(float64(i)+0.5)/float64(res)
	}

	if scale := p.InteriorSmoothness / float64(res); scale > 0 {
		for i := 0; i < res; i++ {
			for j := 0; j < res; j++ {
				uv := r2.Vec{X: at(i, u0, u1), Y: at(j, v0, v1)}
				iu, wu := s.Stencil(uv, 2, 0)
				iv, wv := s.Stencil(uv, 0, 2)
				f.sys.Add(append(iu, iv...), append(wu, wv...), scale, r3.Vec{})
			}
		}
	}

	if scale := p.BoundarySmoothness / float64(res); scale > 0 {
		for i := 0; i < res; i++ {
			u, v := at(i, u0, u1), at(i, v0, v1)
			for _, uv := range []r2.Vec{{X: u, Y: v0}, {X: u, Y: v1}} {
				idx, w := s.Stencil(uv, 2, 0)
				f.sys.Add(idx, w, scale, r3.Vec{})
			}
			for _, uv := range []r2.Vec{{X: u0, Y: v}, {X: u1, Y: v}} {
				idx, w := s.Stencil(uv, 0, 2)
				f.sys.Add(idx, w, scale, r3.Vec{})
			}
		}
	}
}

// addCage penalizes second differences of the control grid: the discrete
// Laplacian inside, second differences along the four boundary strips and
// the twist at the four corners.
func (f *Fitter) addCage(p Params) {
	s := f.Surface
	res := float64(f.resolution())
	nu, nv := s.CountU, s.CountV
	id := s.Index

	if scale := p.CageInterior / res; scale > 0 {
		for i := 1; i < nu-1; i++ {
			for j := 1; j < nv-1; j++ {
				f.sys.Add(
					[]int{id(i, j), id(i-1, j), id(i+1, j), id(i, j-1), id(i, j+1)},
					[]float64{4, -1, -1, -1, -1}, scale, r3.Vec{})
			}
		}
	}

	if scale := p.CageBoundary / res; scale > 0 {
		w := []float64{2, -1, -1}
		for i := 1; i < nu-1; i++ {
			for _, j := range []int{0, nv - 1} {
				f.sys.Add([]int{id(i, j), id(i-1, j), id(i+1, j)}, w, scale, r3.Vec{})
			}
		}
		for j := 1; j < nv-1; j++ {
			for _, i := range []int{0, nu - 1} {
				f.sys.Add([]int{id(i, j), id(i, j-1), id(i, j+1)}, w, scale, r3.Vec{})
			}
		}
	}

	if scale := p.CageCorner / res; scale > 0 && nu > 1 && nv > 1 {
		corners := [4][2]int{{0, 0}, {nu - 1, 0}, {0, nv - 1}, {nu - 1, nv - 1}}
		for _, c := range corners {
			i, j := c[0], c[1]
			di, dj := 1, 1
			if i > 0 {
				di = -1
			}
			if j > 0 {
				dj = -1
			}
			f.sys.Add(
				[]int{id(i, j), id(i+di, j), id(i, j+dj), id(i+di, j+dj)},
				[]float64{1, -1, -1, 1}, scale, r3.Vec{})
		}
	}
}

// Solve solves the assembled system and, on success, updates the surface
// with UpdateSurf(damping). It reports false without touching the surface
// when the normal equations could not be factorized.
func (f *Fitter) Solve(damping float64) (bool, error) {
	if f.sys == nil {
		return false, fmt.Errorf("fit: solve before assemble")
	}
	x, ok, err := f.sys.Solve()
	if err != nil {
		return false, fmt.Errorf("fit: solve: %w", err)
	}
	if !ok {
		f.Logger.Printf("fit: normal equations of %d rows over %d control points are singular, keeping surface",
			len(f.sys.Rows), f.sys.N)
		return false, nil
	}
	f.sol = x
	f.UpdateSurf(damping)
	return true, nil
}

// UpdateSurf blends the last solution into the control grid:
// P = P + damping·(X - P). A damping of 0 leaves the surface unchanged.
func (f *Fitter) UpdateSurf(damping float64) {
	if len(f.sol) != len(f.Surface.CtrlPts) {
		return
	}
	for i, x := range f.sol {
		old := f.Surface.CtrlPts[i]
		f.Surface.CtrlPts[i] = r3.Add(old, r3.Scale(damping, r3.Sub(x, old)))
	}
}

// Refine inserts a knot in the middle of every span in both directions.
// Stored point parameters stay valid since the domain is unchanged.
func (f *Fitter) Refine() {
	f.Surface.RefineUniform()
	f.sys, f.sol = nil, nil
}

// Residual inverse-maps every point onto the current surface, seeded from
// its stored parameter, and returns the root mean square and maximum
// distance. Stored parameters are not modified.
func (f *Fitter) Residual() (rms, max float64) {
	s := f.Surface
	steps, acc := f.Params.InvMapSteps, f.Params.InvMapAccuracy
	if steps <= 0 {
		steps = 100
	}
	if acc <= 0 {
		acc = 1e-4
	}
	errs := make([]float64, 0, f.Data.Len())
	for _, set := range [][]Point{f.Data.Interior, f.Data.Curve} {
		for _, pt := range set {
			seed := pt.Param
			if !pt.HasParam {
				seed = FindClosestElementMidpoint(s, pt.Pos)
			}
			errs = append(errs, InverseMap(s, pt.Pos, seed, steps, acc).Err)
		}
	}
	for _, pt := range f.Data.Boundary {
		seed := pt.Param
		if !pt.HasParam {
			seed = FindClosestElementMidpoint(s, pt.Pos)
		}
		res, err := InverseMapBoundary(s, pt.Pos, seed, steps, acc)
		if err != nil {
			continue
		}
		errs = append(errs, res.Err)
	}
	return errorStats(errs)
}

// Report summarizes a Fit run.
type Report struct {
	Passes       int
	Iterations   int
	Solves       int
	Skipped      int
	NotConverged int
	RMS          float64
	Max          float64
	CountU       int
	CountV       int

	// Point counts per channel of the fitted data.
	Points         int
	BoundaryPoints int
	CurvePoints    int
}

// Converged reports whether every point inversion of the final assemble
// step converged.
func (r *Report) Converged() bool {
	return r.NotConverged == 0
}

// Fit runs passes refinement passes, each a uniform knot insertion
// followed by one assemble and solve, and then iterations further
// assemble and solve steps on the final grid.
func (f *Fitter) Fit(ctx context.Context, passes, iterations int) (*Report, error) {
	rep := &Report{Passes: passes, Iterations: iterations}
	step := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f.Assemble(f.Params); err != nil {
			return err
		}
		ok, err := f.Solve(f.Params.Damping)
		if err != nil {
			return err
		}
		rep.Solves++
		if !ok {
			rep.Skipped++
		}
		return nil
	}
	for i := 0; i < passes; i++ {
		f.Refine()
		if err := step(); err != nil {
			return rep, err
		}
	}
	for i := 0; i < iterations; i++ {
		if err := step(); err != nil {
			return rep, err
		}
	}

	for _, set := range [][]Point{f.Data.Interior, f.Data.Boundary, f.Data.Curve} {
		for _, pt := range set {
			if pt.HasParam && !pt.Converged {
				rep.NotConverged++
			}
		}
	}
	rep.Points = len(f.Data.Interior)
	rep.BoundaryPoints = len(f.Data.Boundary)
	rep.CurvePoints = len(f.Data.Curve)
	rep.RMS, rep.Max = f.Residual()
	rep.CountU, rep.CountV = f.Surface.CountU, f.Surface.CountV
	return rep, nil
}
