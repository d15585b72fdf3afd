package fit

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var quiet = log.New(io.Discard, "", 0)

// planarSquare is an affine order-3 surface over [0,1]² in the XY plane.
func planarSquare(t *testing.T) *nurbs.Surface {
	t.Helper()
	var ctrl []r3.Vec
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			ctrl = append(ctrl, r3.Vec{X: float64(i) / 2, Y: float64(j) / 2})
		}
	}
	s, err := nurbs.NewSurface(3, 3, nurbs.Uniform(3, 3), nurbs.Uniform(3, 3), 3, 3, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// dome is a curved order-3 surface with a raised centre.
func dome(t *testing.T) *nurbs.Surface {
	t.Helper()
	s := planarSquare(t)
	s.CtrlPts[s.Index(1, 1)].Z = 0.8
	s.CtrlPts[s.Index(0, 1)].Z = 0.2
	return s
}

func paraboloid(n int) []r3.Vec {
	var pts []r3.Vec
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x := -1 + 2*float64(i)/float64(n-1)
			y := -1 + 2*float64(j)/float64(n-1)
			pts = append(pts, r3.Vec{X: x, Y: y, Z: 0.1 * (x*x + y*y)})
		}
	}
	return pts
}

func TestInitSurfaceErrors(t *testing.T) {
	pts := NewData([]r3.Vec{{X: 0}, {X: 1}, {Y: 1}}, nil)
	tests := []struct {
		name  string
		order int
		data  *Data
		want  error
	}{
		{"no points", 3, NewData(nil, nil), ErrNoPoints},
		{"order", 1, pts, ErrOrder},
		{"collinear", 3, NewData([]r3.Vec{{X: 0}, {X: 1}, {X: 2}}, nil), ErrDegenerateSide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := InitSurfacePCA(tt.order, tt.data, r3.Vec{Z: 1}, 0); !errors.Is(err, tt.want) {
				t.Errorf("PCA err = %v, want %v", err, tt.want)
			}
			if _, err := InitSurfaceBox(tt.order, tt.data, r3.Vec{Z: 1}, 0); !errors.Is(err, tt.want) {
				t.Errorf("Box err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestInitSurfaceFollowsUp(t *testing.T) {
	data := NewData(paraboloid(5), nil)
	for _, up := range []r3.Vec{{Z: 1}, {Z: -1}} {
		for name, init := range map[string]func(int, *Data, r3.Vec, float64) (*nurbs.Surface, error){
			"pca": InitSurfacePCA, "box": InitSurfaceBox,
		} {
			s, err := init(3, data, up, 0.1)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			if d := r3.Dot(s.Normal(s.Center()), up); d < 0.9 {
				t.Errorf("%s up=%v: normal . up = %g", name, up, d)
			}
		}
	}
}

func TestInverseMapConverges(t *testing.T) {
	s := dome(t)
	want := r2.Vec{X: 0.3, Y: 0.6}
	p := s.Point(want)
	res := InverseMap(s, p, r2.Vec{X: 0.4, Y: 0.5}, 100, 1e-8)
	if !res.Converged {
		t.Fatalf("did not converge in %d steps", res.Steps)
	}
	if r2.Norm(r2.Sub(res.Param, want)) > 1e-6 {
		t.Errorf("param = %v, want %v", res.Param, want)
	}
	if res.Err > 1e-9 {
		t.Errorf("residual = %g, want ~0", res.Err)
	}
	if math.Abs(r3.Norm(res.Normal)-1) > 1e-12 {
		t.Errorf("normal not unit: %v", res.Normal)
	}
}

func TestInverseMapClampsToDomain(t *testing.T) {
	s := planarSquare(t)
	res := InverseMap(s, r3.Vec{X: 2, Y: 0.5, Z: 1}, r2.Vec{X: 0.5, Y: 0.5}, 100, 1e-6)
	if !res.Converged {
		t.Fatal("clamped search should settle on the boundary")
	}
	if res.Param.X != 1 || math.Abs(res.Param.Y-0.5) > 1e-9 {
		t.Errorf("param = %v, want (1, 0.5)", res.Param)
	}
	if math.Abs(res.Err-math.Sqrt(2)) > 1e-9 {
		t.Errorf("err = %g, want sqrt(2)", res.Err)
	}
}

func TestInverseMapBoundaryPicksSide(t *testing.T) {
	s := planarSquare(t)
	p := r3.Vec{X: 0.5, Y: 1.2, Z: 0.3}
	res, err := InverseMapBoundary(s, p, r2.Vec{X: 0.1, Y: 0.1}, 100, 1e-8)
	if err != nil {
		t.Fatal(err)
	}
	if res.Side != SideNorth {
		t.Errorf("side = %v, want north", res.Side)
	}
	if math.Abs(res.Err-math.Hypot(0.2, 0.3)) > 1e-9 {
		t.Errorf("err = %g", res.Err)
	}
	if _, err := InverseMapSide(s, p, Side(7), 0, 10, 1e-8); !errors.Is(err, ErrDegenerateSide) {
		t.Errorf("bad side err = %v", err)
	}
}

func TestFindClosestElementMidpoint(t *testing.T) {
	s := planarSquare(t)
	s.RefineUniform() // spans [0,.5] and [.5,1] in each direction
	got := FindClosestElementMidpoint(s, r3.Vec{X: 0.9, Y: 0.1})
	if got != (r2.Vec{X: 0.75, Y: 0.25}) {
		t.Errorf("midpoint = %v, want (0.75, 0.25)", got)
	}
}

func TestFlatPlateFitIsExact(t *testing.T) {
	corners := []r3.Vec{{X: 0}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	data := NewData(corners, nil)
	s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFitter(s, data, DefaultParams(), quiet)
	rep, err := f.Fit(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Max > 1e-6 {
		t.Errorf("max residual = %g, want < 1e-6", rep.Max)
	}
	for i, pt := range data.Interior {
		if pt.Err > 1e-6 {
			t.Errorf("point %d err = %g", i, pt.Err)
		}
	}
	for _, c := range s.CtrlPts {
		if math.Abs(c.Z) > 1e-9 {
			t.Fatalf("control point left the plane: %v", c)
		}
	}
}

func TestResidualDecreasesOnFixedData(t *testing.T) {
	data := NewData(paraboloid(10), nil)
	s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	p := DefaultParams()
	p.InteriorSmoothness, p.BoundarySmoothness = 0, 0
	f := NewFitter(s, data, p, quiet)

	prev, _ := f.Residual()
	for it := 0; it < 4; it++ {
		if err := f.Assemble(p); err != nil {
			t.Fatal(err)
		}
		ok, err := f.Solve(1)
		if err != nil || !ok {
			t.Fatalf("iteration %d: ok=%v err=%v", it, ok, err)
		}
		rms, _ := f.Residual()
		t.Logf("iteration %d: rms %g", it, rms)
		if rms > prev*1.0001+1e-9 {
			t.Fatalf("iteration %d: rms rose from %g to %g", it, prev, rms)
		}
		prev = rms
	}
	if prev > 0.05 {
		t.Errorf("final rms %g too large for a biquadratic paraboloid fit", prev)
	}
}

func TestSolveWithZeroDampingKeepsSurface(t *testing.T) {
	data := NewData(paraboloid(6), nil)
	s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]r3.Vec(nil), s.CtrlPts...)
	f := NewFitter(s, data, DefaultParams(), quiet)
	if err := f.Assemble(f.Params); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.Solve(0); err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	for i := range before {
		if before[i] != s.CtrlPts[i] {
			t.Fatalf("control point %d moved with zero damping", i)
		}
	}
}

func TestAssembleOmitsNonPositiveWeights(t *testing.T) {
	data := NewData(paraboloid(4), nil)
	s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	p := Params{InteriorWeight: 1, Resolution: 4}
	f := NewFitter(s, data, p, quiet)

	tests := []struct {
		name string
		mod  func(*Params)
		rows int
	}{
		{"points only", func(*Params) {}, 16},
		{"interior smoothness", func(p *Params) { p.InteriorSmoothness = 1 }, 16 + 16},
		{"boundary smoothness", func(p *Params) { p.BoundarySmoothness = 1 }, 16 + 16},
		{"negative cage", func(p *Params) { p.CageInterior = -1; p.CageCorner = 0 }, 16},
		{"cage", func(p *Params) { p.CageInterior, p.CageBoundary, p.CageCorner = 1, 1, 1 }, 16 + 1 + 4 + 4},
		{"zero point weight", func(p *Params) { p.InteriorWeight = 0 }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := p
			tt.mod(&q)
			if err := f.Assemble(q); err != nil {
				t.Fatal(err)
			}
			if got := len(f.System().Rows); got != tt.rows {
				t.Errorf("rows = %d, want %d", got, tt.rows)
			}
		})
	}
}

func TestSingularSystemSkipsUpdate(t *testing.T) {
	data := NewData([]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 0}}, nil)
	s, err := InitSurfacePCA(4, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]r3.Vec(nil), s.CtrlPts...)
	p := Params{InteriorWeight: 1, Resolution: 1}
	f := NewFitter(s, data, p, quiet)
	if err := f.Assemble(p); err != nil {
		t.Fatal(err)
	}
	ok, err := f.Solve(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("3 points cannot determine 16 control points")
	}
	for i := range before {
		if before[i] != s.CtrlPts[i] {
			t.Fatal("surface changed after a skipped solve")
		}
	}
}

func TestRefineKeepsParameters(t *testing.T) {
	data := NewData(paraboloid(5), nil)
	s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	f := NewFitter(s, data, DefaultParams(), quiet)
	if err := f.Assemble(f.Params); err != nil {
		t.Fatal(err)
	}
	rms0, _ := f.Residual()
	f.Refine()
	if s.CountU != 4 || s.CountV != 4 {
		t.Fatalf("refined grid %dx%d", s.CountU, s.CountV)
	}
	rms1, _ := f.Residual()
	if math.Abs(rms0-rms1) > 1e-9 {
		t.Errorf("refinement changed the residual: %g -> %g", rms0, rms1)
	}
}

func TestCurvePointsInvertOverWholeDomain(t *testing.T) {
	s := planarSquare(t)
	mid := r3.Vec{X: 0.5, Y: 0.5}
	data := NewData(nil, []r3.Vec{mid})
	data.AddCurve(mid, 1)

	p := DefaultParams()
	p.InteriorWeight, p.BoundaryWeight, p.CurveWeight = 0, 0, 3
	p.InteriorSmoothness, p.BoundarySmoothness = 0, 0
	f := NewFitter(s, data, p, quiet)
	if err := f.Assemble(p); err != nil {
		t.Fatal(err)
	}

	c := data.Curve[0]
	if c.Err > 1e-6 || r2.Norm(r2.Sub(c.Param, r2.Vec{X: 0.5, Y: 0.5})) > 1e-4 {
		t.Errorf("curve point: param %v err %g, want (0.5, 0.5) on the surface", c.Param, c.Err)
	}
	b := data.Boundary[0]
	onSide := b.Param.X == 0 || b.Param.X == 1 || b.Param.Y == 0 || b.Param.Y == 1
	if !onSide || math.Abs(b.Err-0.5) > 1e-4 {
		t.Errorf("boundary point: param %v err %g, want a side at distance 0.5", b.Param, b.Err)
	}

	rows := f.System().Rows
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want only the curve row", len(rows))
	}
	var sum float64
	for _, w := range rows[0].W {
		sum += w
	}
	if math.Abs(sum-3) > 1e-9 {
		t.Errorf("curve row weight = %g, want CurveWeight 3", sum)
	}
}

func TestFitRefinesEveryPass(t *testing.T) {
	tests := []struct {
		passes, want int
	}{
		{0, 3},
		{1, 4},
		{2, 6},
	}
	for _, tt := range tests {
		data := NewData(paraboloid(5), nil)
		s, err := InitSurfacePCA(3, data, r3.Vec{Z: 1}, 0)
		if err != nil {
			t.Fatal(err)
		}
		rep, err := NewFitter(s, data, DefaultParams(), quiet).Fit(context.Background(), tt.passes, 1)
		if err != nil {
			t.Fatal(err)
		}
		if rep.CountU != tt.want || rep.CountV != tt.want {
			t.Errorf("%d passes: grid %dx%d, want %dx%d", tt.passes, rep.CountU, rep.CountV, tt.want, tt.want)
		}
		if rep.Solves != tt.passes+1 {
			t.Errorf("%d passes: %d solves, want %d", tt.passes, rep.Solves, tt.passes+1)
		}
	}
}
