package nurbs

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrTooFewPoints is returned when interpolation has fewer than two
// distinct points.
var ErrTooFewPoints = errors.New("nurbs: need at least two distinct points")

// Curve is a B-spline curve. Parameter-space trimming curves use the same
// type with Z = 0.
type Curve struct {
	Order   int
	Knots   KnotVec
	CtrlPts []r3.Vec
}

// NewCurve validates and returns a curve.
func NewCurve(order int, knots KnotVec, ctrl []r3.Vec) (*Curve, error) {
	if err := knots.Validate(order, len(ctrl)); err != nil {
		return nil, err
	}
	return &Curve{Order: order, Knots: knots, CtrlPts: ctrl}, nil
}

// Line returns the straight segment from a to b on [0,1].
func Line(a, b r3.Vec) *Curve {
	return &Curve{Order: 2, Knots: KnotVec{0, 0, 1, 1}, CtrlPts: []r3.Vec{a, b}}
}

// Domain returns the parameter interval.
func (c *Curve) Domain() (lo, hi float64) {
	return c.Knots.Domain(c.Order)
}

// Start returns the first point of the curve.
func (c *Curve) Start() r3.Vec {
	lo, _ := c.Domain()
	return c.Point(lo)
}

// End returns the last point of the curve.
func (c *Curve) End() r3.Vec {
	_, hi := c.Domain()
	return c.Point(hi)
}

// Point evaluates the curve at t.
func (c *Curve) Point(t float64) r3.Vec {
	p := c.Order - 1
	lo, hi := c.Domain()
	t = clamp(t, lo, hi)
	span := c.Knots.Span(p, len(c.CtrlPts), t)
	n := BasisFuns(span, t, p, c.Knots)
	var out r3.Vec
	for i := 0; i <= p; i++ {
		out = r3.Add(out, r3.Scale(n[i], c.CtrlPts[span-p+i]))
	}
	return out
}

// Point2 evaluates a parameter-space curve.
func (c *Curve) Point2(t float64) r2.Vec {
	p := c.Point(t)
	return r2.Vec{X: p.X, Y: p.Y}
}

// Derivatives returns the curve point and its derivatives up to order d.
func (c *Curve) Derivatives(t float64, d int) []r3.Vec {
	p := c.Order - 1
	lo, hi := c.Domain()
	t = clamp(t, lo, hi)
	out := make([]r3.Vec, d+1)
	span := c.Knots.Span(p, len(c.CtrlPts), t)
	ders := DersBasisFuns(span, t, p, minInt(d, p), c.Knots)
	for k := 0; k <= minInt(d, p); k++ {
		for j := 0; j <= p; j++ {
			out[k] = r3.Add(out[k], r3.Scale(ders[k][j], c.CtrlPts[span-p+j]))
		}
	}
	return out
}

// Sample returns n points evenly spaced in parameter, ends included.
func (c *Curve) Sample(n int) []r3.Vec {
	if n < 2 {
		n = 2
	}
	lo, hi := c.Domain()
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = c.Point(lo + (hi-lo)*float64(i)/float64(n-1))
	}
	return out
}

// Reverse returns the curve traversed in the opposite direction.
func (c *Curve) Reverse() *Curve {
	ctrl := make([]r3.Vec, len(c.CtrlPts))
	for i, p := range c.CtrlPts {
		ctrl[len(ctrl)-1-i] = p
	}
	return &Curve{Order: c.Order, Knots: c.Knots.Reversed(), CtrlPts: ctrl}
}

// Interpolate returns a curve of at most the given order passing through
// points, with chord-length parameters on [0,1] and averaged knots.
// Consecutive duplicate points are dropped; the degree falls back to the
// number of remaining points minus one.
func Interpolate(points []r3.Vec, order int) (*Curve, error) {
	if order < 2 {
		return nil, fmt.Errorf("nurbs: interpolation order %d", order)
	}
	pts := dedupe(points)
	if len(pts) < 2 {
		return nil, ErrTooFewPoints
	}
	if len(pts) == 2 {
		return Line(pts[0], pts[1]), nil
	}
	n := len(pts)
	p := minInt(order-1, n-1)

	params := make([]float64, n)
	var total float64
	for i := 1; i < n; i++ {
		total += r3.Norm(r3.Sub(pts[i], pts[i-1]))
		params[i] = total
	}
	for i := range params {
		params[i] /= total
	}
	params[n-1] = 1

	knots := make(KnotVec, n+p+1)
	for i := len(knots) - p - 1; i < len(knots); i++ {
		knots[i] = 1
	}
	for j := 1; j <= n-1-p; j++ {
		var sum float64
		for i := j; i < j+p; i++ {
			sum += params[i]
		}
		knots[j+p] = sum / float64(p)
	}

	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, 3, nil)
	for r, t := range params {
		span := knots.Span(p, n, t)
		basis := BasisFuns(span, t, p, knots)
		for k, v := range basis {
			a.Set(r, span-p+k, v)
		}
		b.Set(r, 0, pts[r].X)
		b.Set(r, 1, pts[r].Y)
		b.Set(r, 2, pts[r].Z)
	}
	var x mat.Dense
	if err := x.Solve(a, b); err != nil {
		// An ill-conditioned system still yields a solution; the pinned
		// ends below keep the curve attached to its vertices.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("nurbs: interpolation solve: %w", err)
		}
	}
	ctrl := make([]r3.Vec, n)
	for i := range ctrl {
		ctrl[i] = r3.Vec{X: x.At(i, 0), Y: x.At(i, 1), Z: x.At(i, 2)}
	}
	// Pin the ends so shared endpoints stay bit-identical.
	ctrl[0], ctrl[n-1] = pts[0], pts[n-1]
	return &Curve{Order: p + 1, Knots: knots, CtrlPts: ctrl}, nil
}

// Interpolate2 interpolates parameter-space points.
func Interpolate2(points []r2.Vec, order int) (*Curve, error) {
	pts := make([]r3.Vec, len(points))
	for i, p := range points {
		pts[i] = r3.Vec{X: p.X, Y: p.Y}
	}
	return Interpolate(pts, order)
}

func dedupe(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && r3.Norm(r3.Sub(p, out[len(out)-1])) <= 1e-12 {
			continue
		}
		out = append(out, p)
	}
	return out
}
