package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxCondition is the largest normal-matrix condition number accepted as
// full rank.
const maxCondition = 1e12

// Row is one sparse equation Σ W[k]·P[Idx[k]] = RHS over the control
// points P. Indices may repeat; repeated entries add.
type Row struct {
	Idx []int
	W   []float64
	RHS r3.Vec
}

// System is the sparse least-squares system of one assemble step: one
// column of unknowns per control point and three right-hand-side columns.
type System struct {
	N    int
	Rows []Row
}

// NewSystem returns an empty system over n control points.
func NewSystem(n int) *System {
	return &System{N: n}
}

// Add appends a row scaled by scale. Rows with non-positive scale are
// dropped rather than stored with zero weight.
func (sys *System) Add(idx []int, w []float64, scale float64, rhs r3.Vec) {
	if scale <= 0 {
		return
	}
	sw := make([]float64, len(w))
	for i, v := range w {
		sw[i] = v * scale
	}
	sys.Rows = append(sys.Rows, Row{Idx: idx, W: sw, RHS: r3.Scale(scale, rhs)})
}

// Normal returns the normal equations AᵀA and AᵀB.
func (sys *System) Normal() (*mat.SymDense, *mat.Dense) {
	n := sys.N
	ata := make([]float64, n*n)
	atb := mat.NewDense(n, 3, nil)
	for _, r := range sys.Rows {
		for a, ia := range r.Idx {
			wa := r.W[a]
			if wa == 0 {
				continue
			}
			for b, ib := range r.Idx {
				ata[ia*n+ib] += wa * r.W[b]
			}
			atb.Set(ia, 0, atb.At(ia, 0)+wa*r.RHS.X)
			atb.Set(ia, 1, atb.At(ia, 1)+wa*r.RHS.Y)
			atb.Set(ia, 2, atb.At(ia, 2)+wa*r.RHS.Z)
		}
	}
	return mat.NewSymDense(n, ata), atb
}

// Solve solves the system in the least-squares sense through a Cholesky
// factorization of the normal equations. ok is false when the normal
// matrix is not positive definite or is numerically singular.
func (sys *System) Solve() (x []r3.Vec, ok bool, err error) {
	if len(sys.Rows) == 0 {
		return nil, false, nil
	}
	ata, atb := sys.Normal()
	var chol mat.Cholesky
	if !chol.Factorize(ata) || chol.Cond() > maxCondition {
		return nil, false, nil
	}
	var sol mat.Dense
	if err := chol.SolveTo(&sol, atb); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, false, nil
		}
		return nil, false, err
	}
	x = make([]r3.Vec, sys.N)
	for i := range x {
		x[i] = r3.Vec{X: sol.At(i, 0), Y: sol.At(i, 1), Z: sol.At(i, 2)}
	}
	return x, true, nil
}

// Residual returns the root mean square of A·x - B over all rows.
func (sys *System) Residual(x []r3.Vec) float64 {
	if len(sys.Rows) == 0 {
		return 0
	}
	var sum float64
	for _, r := range sys.Rows {
		var ax r3.Vec
		for k, i := range r.Idx {
			ax = r3.Add(ax, r3.Scale(r.W[k], x[i]))
		}
		d := r3.Sub(ax, r.RHS)
		sum += r3.Dot(d, d)
	}
	return math.Sqrt(sum / float64(len(sys.Rows)))
}
