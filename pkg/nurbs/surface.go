package nurbs

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Surface is a tensor-product B-spline surface. Control point (i, j) is
// stored at CtrlPts[i*CountV+j]; i runs along u.
type Surface struct {
	OrderU, OrderV int
	CountU, CountV int
	KnotsU, KnotsV KnotVec
	CtrlPts        []r3.Vec
}

// NewSurface validates and returns a surface.
func NewSurface(orderU, orderV int, knotsU, knotsV KnotVec, countU, countV int, ctrl []r3.Vec) (*Surface, error) {
	if err := knotsU.Validate(orderU, countU); err != nil {
		return nil, fmt.Errorf("u: %w", err)
	}
	if err := knotsV.Validate(orderV, countV); err != nil {
		return nil, fmt.Errorf("v: %w", err)
	}
	if len(ctrl) != countU*countV {
		return nil, fmt.Errorf("nurbs: %d control points for a %dx%d grid", len(ctrl), countU, countV)
	}
	return &Surface{
		OrderU: orderU, OrderV: orderV,
		CountU: countU, CountV: countV,
		KnotsU: knotsU, KnotsV: knotsV,
		CtrlPts: ctrl,
	}, nil
}

// Index returns the flat index of control point (i, j).
func (s *Surface) Index(i, j int) int {
	return i*s.CountV + j
}

// Ctrl returns control point (i, j).
func (s *Surface) Ctrl(i, j int) r3.Vec {
	return s.CtrlPts[i*s.CountV+j]
}

// DomainU returns the u parameter interval.
func (s *Surface) DomainU() (lo, hi float64) {
	return s.KnotsU.Domain(s.OrderU)
}

// DomainV returns the v parameter interval.
func (s *Surface) DomainV() (lo, hi float64) {
	return s.KnotsV.Domain(s.OrderV)
}

// Clamp clamps uv to the parameter domain.
func (s *Surface) Clamp(uv r2.Vec) r2.Vec {
	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	return r2.Vec{X: clamp(uv.X, u0, u1), Y: clamp(uv.Y, v0, v1)}
}

// Center returns the midpoint of the parameter domain.
func (s *Surface) Center() r2.Vec {
	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	return r2.Vec{X: (u0 + u1) / 2, Y: (v0 + v1) / 2}
}

// Point evaluates the surface at uv.
func (s *Surface) Point(uv r2.Vec) r3.Vec {
	idx, w := s.Stencil(uv, 0, 0)
	var p r3.Vec
	for k, i := range idx {
		p = r3.Add(p, r3.Scale(w[k], s.CtrlPts[i]))
	}
	return p
}

// Derivatives returns the partial derivatives up to total order d:
// skl[k][l] is the k-th derivative in u and l-th in v. Entries with
// k+l > d are zero.
func (s *Surface) Derivatives(uv r2.Vec, d int) [][]r3.Vec {
	pu, pv := s.OrderU-1, s.OrderV-1
	skl := make([][]r3.Vec, d+1)
	for k := range skl {
		skl[k] = make([]r3.Vec, d+1)
	}
	uv = s.Clamp(uv)
	du := minInt(d, pu)
	dv := minInt(d, pv)
	uspan := s.KnotsU.Span(pu, s.CountU, uv.X)
	vspan := s.KnotsV.Span(pv, s.CountV, uv.Y)
	nu := DersBasisFuns(uspan, uv.X, pu, du, s.KnotsU)
	nv := DersBasisFuns(vspan, uv.Y, pv, dv, s.KnotsV)

	temp := make([]r3.Vec, pv+1)
	for k := 0; k <= du; k++ {
		for c := 0; c <= pv; c++ {
			temp[c] = r3.Vec{}
			for r := 0; r <= pu; r++ {
				temp[c] = r3.Add(temp[c], r3.Scale(nu[k][r], s.Ctrl(uspan-pu+r, vspan-pv+c)))
			}
		}
		for l := 0; l <= minInt(d-k, dv); l++ {
			var sum r3.Vec
			for c := 0; c <= pv; c++ {
				sum = r3.Add(sum, r3.Scale(nv[l][c], temp[c]))
			}
			skl[k][l] = sum
		}
	}
	return skl
}

// Normal returns the unit normal Su × Sv at uv, or the zero vector where
// the surface is degenerate.
func (s *Surface) Normal(uv r2.Vec) r3.Vec {
	d := s.Derivatives(uv, 1)
	n := r3.Cross(d[1][0], d[0][1])
	if l := r3.Norm(n); l > 0 {
		return r3.Scale(1/l, n)
	}
	return r3.Vec{}
}

// Stencil returns the control point indices and coefficients of the
// (du, dv) partial derivative at uv: the derivative equals
// Σ w[k]·CtrlPts[idx[k]]. Stencil(uv, 0, 0) gives the basis values used for
// point constraints.
func (s *Surface) Stencil(uv r2.Vec, du, dv int) (idx []int, w []float64) {
	pu, pv := s.OrderU-1, s.OrderV-1
	uv = s.Clamp(uv)
	uspan := s.KnotsU.Span(pu, s.CountU, uv.X)
	vspan := s.KnotsV.Span(pv, s.CountV, uv.Y)
	nu := DersBasisFuns(uspan, uv.X, pu, du, s.KnotsU)[du]
	nv := DersBasisFuns(vspan, uv.Y, pv, dv, s.KnotsV)[dv]
	idx = make([]int, 0, (pu+1)*(pv+1))
	w = make([]float64, 0, (pu+1)*(pv+1))
	for r := 0; r <= pu; r++ {
		for c := 0; c <= pv; c++ {
			idx = append(idx, s.Index(uspan-pu+r, vspan-pv+c))
			w = append(w, nu[r]*nv[c])
		}
	}
	return idx, w
}

// Clone returns a deep copy.
func (s *Surface) Clone() *Surface {
	c := *s
	c.KnotsU = s.KnotsU.Clone()
	c.KnotsV = s.KnotsV.Clone()
	c.CtrlPts = append([]r3.Vec(nil), s.CtrlPts...)
	return &c
}

// ReverseU flips the u direction in place, which flips the normal.
func (s *Surface) ReverseU() {
	ctrl := make([]r3.Vec, len(s.CtrlPts))
	for i := 0; i < s.CountU; i++ {
		for j := 0; j < s.CountV; j++ {
			ctrl[s.Index(s.CountU-1-i, j)] = s.Ctrl(i, j)
		}
	}
	s.CtrlPts = ctrl
	s.KnotsU = s.KnotsU.Reversed()
}

// InsertKnotsU refines the u knot vector with the sorted values xs. The
// surface shape is unchanged.
func (s *Surface) InsertKnotsU(xs []float64) {
	if len(xs) == 0 {
		return
	}
	var knots KnotVec
	ctrl := make([][]r3.Vec, s.CountV)
	col := make([]r3.Vec, s.CountU)
	for j := 0; j < s.CountV; j++ {
		for i := 0; i < s.CountU; i++ {
			col[i] = s.Ctrl(i, j)
		}
		knots, ctrl[j] = refineKnotVector(s.OrderU-1, s.KnotsU, col, xs)
	}
	s.CountU += len(xs)
	s.KnotsU = knots
	s.CtrlPts = make([]r3.Vec, s.CountU*s.CountV)
	for j := 0; j < s.CountV; j++ {
		for i := 0; i < s.CountU; i++ {
			s.CtrlPts[s.Index(i, j)] = ctrl[j][i]
		}
	}
}

// InsertKnotsV refines the v knot vector with the sorted values xs.
func (s *Surface) InsertKnotsV(xs []float64) {
	if len(xs) == 0 {
		return
	}
	var knots KnotVec
	rows := make([][]r3.Vec, s.CountU)
	for i := 0; i < s.CountU; i++ {
		row := s.CtrlPts[s.Index(i, 0) : s.Index(i, 0)+s.CountV]
		knots, rows[i] = refineKnotVector(s.OrderV-1, s.KnotsV, row, xs)
	}
	s.CountV += len(xs)
	s.KnotsV = knots
	s.CtrlPts = make([]r3.Vec, 0, s.CountU*s.CountV)
	for i := 0; i < s.CountU; i++ {
		s.CtrlPts = append(s.CtrlPts, rows[i]...)
	}
}

// RefineUniform inserts a knot at the midpoint of every non-empty span in
// both directions.
func (s *Surface) RefineUniform() {
	s.InsertKnotsU(s.KnotsU.Midpoints(s.OrderU))
	s.InsertKnotsV(s.KnotsV.Midpoints(s.OrderV))
}

// refineKnotVector inserts the sorted knots xs into the curve defined by
// degree p, knots u and control points pts.
func refineKnotVector(p int, u KnotVec, pts []r3.Vec, xs []float64) (KnotVec, []r3.Vec) {
	n := len(pts) - 1
	m := n + p + 1
	r := len(xs) - 1
	a := u.Span(p, len(pts), xs[0])
	b := u.Span(p, len(pts), xs[r]) + 1

	q := make([]r3.Vec, n+r+2)
	ubar := make(KnotVec, m+r+2)
	for j := 0; j <= a-p; j++ {
		q[j] = pts[j]
	}
	for j := b - 1; j <= n; j++ {
		q[j+r+1] = pts[j]
	}
	for j := 0; j <= a; j++ {
		ubar[j] = u[j]
	}
	for j := b + p; j <= m; j++ {
		ubar[j+r+1] = u[j]
	}

	i := b + p - 1
	k := b + p + r
	for j := r; j >= 0; j-- {
		for xs[j] <= u[i] && i > a {
			q[k-p-1] = pts[i-p-1]
			ubar[k] = u[i]
			k--
			i--
		}
		q[k-p-1] = q[k-p]
		for l := 1; l <= p; l++ {
			ind := k - p + l
			alfa := ubar[k+l] - xs[j]
			if alfa == 0 {
				q[ind-1] = q[ind]
				continue
			}
			alfa /= ubar[k+l] - u[i-p+l]
			q[ind-1] = r3.Add(r3.Scale(alfa, q[ind-1]), r3.Scale(1-alfa, q[ind]))
		}
		ubar[k] = xs[j]
		k--
	}
	return ubar, q
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
