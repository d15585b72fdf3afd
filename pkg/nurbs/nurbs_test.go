package nurbs

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// wavy returns a bicubic surface over [0,3]x[0,2] with a bumpy control grid.
func wavy(t *testing.T) *Surface {
	t.Helper()
	const nu, nv = 5, 4
	var ctrl []r3.Vec
	for i := 0; i < nu; i++ {
		for j := 0; j < nv; j++ {
			z := 0.3 * math.Sin(float64(i)) * math.Cos(float64(j))
			ctrl = append(ctrl, r3.Vec{X: 3 * float64(i) / (nu - 1), Y: 2 * float64(j) / (nv - 1), Z: z})
		}
	}
	s, err := NewSurface(4, 3, Uniform(4, nu), Uniform(3, nv), nu, nv, ctrl)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestUniformKnots(t *testing.T) {
	k := Uniform(3, 5)
	want := KnotVec{0, 0, 0, 1.0 / 3, 2.0 / 3, 1, 1, 1}
	for i := range want {
		if math.Abs(k[i]-want[i]) > 1e-15 {
			t.Fatalf("Uniform(3,5) = %v, want %v", k, want)
		}
	}
	if err := k.Validate(3, 5); err != nil {
		t.Fatal(err)
	}
	if err := (KnotVec{0, 1, 0.5, 1}).Validate(2, 2); err == nil {
		t.Error("decreasing knots accepted")
	}
	if got := k.Midpoints(3); len(got) != 3 || math.Abs(got[0]-1.0/6) > 1e-15 {
		t.Errorf("Midpoints = %v", got)
	}
}

func TestBasisPartitionOfUnity(t *testing.T) {
	k := Uniform(4, 7)
	for _, u := range []float64{0, 0.1, 0.25, 0.5, 0.77, 1} {
		span := k.Span(3, 7, u)
		var sum float64
		for _, v := range BasisFuns(span, u, 3, k) {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("u=%g: basis sum = %g", u, sum)
		}
		ders := DersBasisFuns(span, u, 3, 5, k)
		var dsum float64
		for _, v := range ders[1] {
			dsum += v
		}
		if math.Abs(dsum) > 1e-10 {
			t.Errorf("u=%g: first derivative sum = %g", u, dsum)
		}
		for _, v := range ders[4] {
			if v != 0 {
				t.Fatalf("derivative above degree not zero: %v", ders[4])
			}
		}
	}
}

func TestSurfaceDerivativesMatchFiniteDifferences(t *testing.T) {
	s := wavy(t)
	uv := r2.Vec{X: 0.37, Y: 0.61}
	const h = 1e-6
	d := s.Derivatives(uv, 2)
	if !near(d[0][0], s.Point(uv), 1e-12) {
		t.Fatalf("S00 = %v, Point = %v", d[0][0], s.Point(uv))
	}
	su := r3.Scale(1/(2*h), r3.Sub(s.Point(r2.Vec{X: uv.X + h, Y: uv.Y}), s.Point(r2.Vec{X: uv.X - h, Y: uv.Y})))
	sv := r3.Scale(1/(2*h), r3.Sub(s.Point(r2.Vec{X: uv.X, Y: uv.Y + h}), s.Point(r2.Vec{X: uv.X, Y: uv.Y - h})))
	if !near(d[1][0], su, 1e-6) {
		t.Errorf("Su = %v, finite difference %v", d[1][0], su)
	}
	if !near(d[0][1], sv, 1e-6) {
		t.Errorf("Sv = %v, finite difference %v", d[0][1], sv)
	}

	// The stencil of a derivative reproduces Derivatives.
	idx, w := s.Stencil(uv, 2, 0)
	var suu r3.Vec
	for k, i := range idx {
		suu = r3.Add(suu, r3.Scale(w[k], s.CtrlPts[i]))
	}
	if !near(suu, d[2][0], 1e-9) {
		t.Errorf("stencil Suu = %v, Derivatives %v", suu, d[2][0])
	}
}

func TestKnotInsertionPreservesShape(t *testing.T) {
	s := wavy(t)
	r := s.Clone()
	r.RefineUniform()
	if r.CountU != s.CountU+2 || r.CountV != s.CountV+2 {
		t.Fatalf("refined counts %dx%d from %dx%d", r.CountU, r.CountV, s.CountU, s.CountV)
	}
	if err := r.KnotsU.Validate(r.OrderU, r.CountU); err != nil {
		t.Fatal(err)
	}
	for _, u := range []float64{0, 0.13, 0.5, 0.81, 1} {
		for _, v := range []float64{0, 0.29, 0.66, 1} {
			uv := r2.Vec{X: u, Y: v}
			if !near(s.Point(uv), r.Point(uv), 1e-12) {
				t.Fatalf("shape changed at %v: %v vs %v", uv, s.Point(uv), r.Point(uv))
			}
		}
	}
}

func TestReverseUFlipsNormal(t *testing.T) {
	s := wavy(t)
	r := s.Clone()
	r.ReverseU()
	uv := r2.Vec{X: 0.3, Y: 0.4}
	ruv := r2.Vec{X: 1 - uv.X, Y: uv.Y}
	if !near(s.Point(uv), r.Point(ruv), 1e-12) {
		t.Errorf("reversed point mismatch")
	}
	if d := r3.Dot(s.Normal(uv), r.Normal(ruv)); math.Abs(d+1) > 1e-9 {
		t.Errorf("normals dot = %g, want -1", d)
	}
}

func TestInterpolatePassesThroughPoints(t *testing.T) {
	pts := []r3.Vec{
		{X: 0, Y: 0}, {X: 1, Y: 0.5}, {X: 2, Y: 0.2}, {X: 2, Y: 0.2}, {X: 3, Y: 1, Z: 0.5}, {X: 4, Y: 0},
	}
	c, err := Interpolate(pts, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Order != 4 || len(c.CtrlPts) != 5 {
		t.Fatalf("order %d with %d control points", c.Order, len(c.CtrlPts))
	}
	for _, p := range pts {
		best := math.Inf(1)
		for _, q := range c.Sample(2001) {
			best = math.Min(best, r3.Norm(r3.Sub(p, q)))
		}
		if best > 5e-3 {
			t.Errorf("curve misses %v by %g", p, best)
		}
	}
	if c.Start() != pts[0] || c.End() != pts[len(pts)-1] {
		t.Errorf("ends %v %v", c.Start(), c.End())
	}

	rev := c.Reverse()
	if !near(rev.Start(), c.End(), 1e-12) || !near(rev.Point(0.3), c.Point(0.7), 1e-12) {
		t.Error("Reverse does not retrace the curve")
	}
}

func TestInterpolateDegenerate(t *testing.T) {
	if _, err := Interpolate([]r3.Vec{{X: 1}, {X: 1}}, 4); err != ErrTooFewPoints {
		t.Errorf("err = %v, want ErrTooFewPoints", err)
	}
	c, err := Interpolate([]r3.Vec{{X: 0}, {X: 2}}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Order != 2 || !near(c.Point(0.5), r3.Vec{X: 1}, 1e-15) {
		t.Errorf("two points should give a line, got order %d", c.Order)
	}
	c, err = Interpolate([]r3.Vec{{X: 0}, {X: 1, Y: 1}, {X: 2}}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Order != 3 {
		t.Errorf("three points: order %d, want 3", c.Order)
	}
}

func TestInterpolateClusteredPoints(t *testing.T) {
	// Samples bunched at the start make the collocation matrix nearly
	// singular; the interpolant must still come back with pinned ends.
	pts := []r3.Vec{{X: 0}, {X: 1e-10}, {X: 2e-10}, {X: 1, Y: 1}, {X: 2}}
	c, err := Interpolate(pts, 4)
	if err != nil {
		t.Fatal(err)
	}
	if c.Start() != pts[0] || c.End() != pts[len(pts)-1] {
		t.Errorf("ends %v %v", c.Start(), c.End())
	}
	for _, q := range c.Sample(9) {
		if math.IsNaN(q.X) || math.IsNaN(q.Y) || math.IsNaN(q.Z) {
			t.Fatalf("sample %v is not a number", q)
		}
	}
}

func TestCurveDerivatives(t *testing.T) {
	c := Line(r3.Vec{}, r3.Vec{X: 2, Y: 2})
	d := c.Derivatives(0.25, 2)
	if !near(d[0], r3.Vec{X: 0.5, Y: 0.5}, 1e-15) || !near(d[1], r3.Vec{X: 2, Y: 2}, 1e-15) || d[2] != (r3.Vec{}) {
		t.Errorf("line derivatives = %v", d)
	}
}
