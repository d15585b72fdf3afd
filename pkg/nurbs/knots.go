// Package nurbs implements the tensor-product B-spline surfaces and curves
// the fitter shapes: knot vectors, basis functions and their derivatives,
// evaluation, knot refinement and curve interpolation. All geometry is
// non-rational (unit weights).
package nurbs

import (
	"errors"
	"fmt"
	"sort"
)

// ErrKnots is returned for malformed knot vectors.
var ErrKnots = errors.New("nurbs: invalid knot vector")

// KnotVec is a non-decreasing knot vector.
type KnotVec []float64

// Uniform returns the clamped uniform knot vector on [0,1] for n control
// points of the given order.
func Uniform(order, n int) KnotVec {
	k := make(KnotVec, n+order)
	inner := n - order
	for i := range k {
		switch {
		case i < order:
			k[i] = 0
		case i >= n:
			k[i] = 1
		default:
			k[i] = float64(i-order+1) / float64(inner+1)
		}
	}
	return k
}

// Validate checks that k is non-decreasing and long enough for n control
// points of the given order.
func (k KnotVec) Validate(order, n int) error {
	if order < 1 {
		return fmt.Errorf("%w: order %d", ErrKnots, order)
	}
	if n < order {
		return fmt.Errorf("%w: %d control points for order %d", ErrKnots, n, order)
	}
	if len(k) != n+order {
		return fmt.Errorf("%w: length %d, want %d", ErrKnots, len(k), n+order)
	}
	for i := 1; i < len(k); i++ {
		if k[i] < k[i-1] {
			return fmt.Errorf("%w: decreasing at %d", ErrKnots, i)
		}
	}
	if k[order-1] >= k[n] {
		return fmt.Errorf("%w: empty domain", ErrKnots)
	}
	return nil
}

// Domain returns the valid parameter interval for the given order.
func (k KnotVec) Domain(order int) (lo, hi float64) {
	return k[order-1], k[len(k)-order]
}

// Span returns the knot span index containing u for n control points of
// the given degree. u is clamped to the domain.
func (k KnotVec) Span(degree, n int, u float64) int {
	last := n - 1
	if u >= k[last+1] {
		return last
	}
	if u <= k[degree] {
		return degree
	}
	lo, hi := degree, last+1
	mid := (lo + hi) / 2
	for u < k[mid] || u >= k[mid+1] {
		if u < k[mid] {
			hi = mid
		} else {
			lo = mid
		}
		mid = (lo + hi) / 2
	}
	return mid
}

// Breaks returns the distinct knot values within the domain, sorted.
func (k KnotVec) Breaks(order int) []float64 {
	lo, hi := k.Domain(order)
	var out []float64
	for _, v := range k {
		if v < lo || v > hi {
			continue
		}
		if len(out) == 0 || v > out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Midpoints returns the midpoint of every non-empty knot span.
func (k KnotVec) Midpoints(order int) []float64 {
	b := k.Breaks(order)
	out := make([]float64, 0, len(b))
	for i := 1; i < len(b); i++ {
		out = append(out, (b[i-1]+b[i])/2)
	}
	return out
}

// Clone returns a copy of k.
func (k KnotVec) Clone() KnotVec {
	return append(KnotVec(nil), k...)
}

// Reversed returns the knot vector of the reversed parameterization.
func (k KnotVec) Reversed() KnotVec {
	out := make(KnotVec, len(k))
	lo, hi := k[0], k[len(k)-1]
	for i, v := range k {
		out[len(k)-1-i] = lo + hi - v
	}
	return out
}

// Insert returns the knot vector with xs merged in.
func (k KnotVec) Insert(xs []float64) KnotVec {
	out := append(k.Clone(), xs...)
	sort.Float64s(out)
	return out
}
