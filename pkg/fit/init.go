package fit

import (
	"fmt"
	"math"
	"sort"

	"github.com/chazu/brepfit/pkg/geom"
	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// InitSurfacePCA places an order×order planar surface over the data's two
// principal axes. The surface spans the data's extent along those axes,
// grown on each side by margin times the extent. If the resulting normal
// opposes up, the first axis is flipped. A zero up vector skips the check.
func InitSurfacePCA(order int, data *Data, up r3.Vec, margin float64) (*nurbs.Surface, error) {
	pts, err := checkInit(order, data)
	if err != nil {
		return nil, err
	}
	mean := geom.Centroid(pts)

	cov := mat.NewSymDense(3, nil)
	for _, p := range pts {
		d := [3]float64{p.X - mean.X, p.Y - mean.Y, p.Z - mean.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+d[i]*d[j])
			}
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("fit: eigen decomposition of %d points failed", len(pts))
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	order3 := []int{0, 1, 2}
	sort.Slice(order3, func(a, b int) bool { return values[order3[a]] > values[order3[b]] })
	col := func(c int) r3.Vec {
		return r3.Unit(r3.Vec{X: vecs.At(0, c), Y: vecs.At(1, c), Z: vecs.At(2, c)})
	}
	e1, e2 := col(order3[0]), col(order3[1])
	if r3.Dot(r3.Cross(e1, e2), up) < 0 {
		e1 = r3.Scale(-1, e1)
	}
	return gridSurface(order, pts, mean, e1, e2, margin)
}

// InitSurfaceBox places an order×order planar surface over the data's
// bounding rectangle in the frame of its best-fit plane, with the plane
// normal oriented along up.
func InitSurfaceBox(order int, data *Data, up r3.Vec, margin float64) (*nurbs.Surface, error) {
	pts, err := checkInit(order, data)
	if err != nil {
		return nil, err
	}
	pl := geom.FitPlane(pts)
	if r3.Dot(pl.Normal, up) < 0 {
		pl.Normal = r3.Scale(-1, pl.Normal)
	}
	u, v := pl.Frame()
	return gridSurface(order, pts, pl.Origin, u, v, margin)
}

func checkInit(order int, data *Data) ([]r3.Vec, error) {
	if order < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrOrder, order)
	}
	if data == nil || data.Len() == 0 {
		return nil, ErrNoPoints
	}
	return data.Positions(), nil
}

// gridSurface builds a planar surface whose control points sit at the
// Greville abscissae of the rectangle spanned by pts in the (e1, e2) frame,
// so the parameterization is affine.
func gridSurface(order int, pts []r3.Vec, origin, e1, e2 r3.Vec, margin float64) (*nurbs.Surface, error) {
	lo := r2.Vec{X: math.Inf(1), Y: math.Inf(1)}
	hi := r2.Vec{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, p := range pts {
		d := r3.Sub(p, origin)
		a, b := r3.Dot(d, e1), r3.Dot(d, e2)
		lo = r2.Vec{X: math.Min(lo.X, a), Y: math.Min(lo.Y, b)}
		hi = r2.Vec{X: math.Max(hi.X, a), Y: math.Max(hi.Y, b)}
	}
	ext := r2.Sub(hi, lo)
	scale := math.Max(ext.X, ext.Y)
	if scale <= 0 || ext.X <= 1e-12*scale || ext.Y <= 1e-12*scale {
		return nil, fmt.Errorf("%w: data extent %gx%g", ErrDegenerateSide, ext.X, ext.Y)
	}
	lo = r2.Sub(lo, r2.Scale(margin, ext))
	hi = r2.Add(hi, r2.Scale(margin, ext))

	knots := nurbs.Uniform(order, order)
	gu := greville(knots, order, order)
	ctrl := make([]r3.Vec, 0, order*order)
	for i := 0; i < order; i++ {
		a := lo.X + gu[i]*(hi.X-lo.X)
		for j := 0; j < order; j++ {
			b := lo.Y + gu[j]*(hi.Y-lo.Y)
			ctrl = append(ctrl, r3.Add(origin, r3.Add(r3.Scale(a, e1), r3.Scale(b, e2))))
		}
	}
	return nurbs.NewSurface(order, order, knots, knots.Clone(), order, order, ctrl)
}

// greville returns the Greville abscissae of a knot vector.
func greville(k nurbs.KnotVec, order, n int) []float64 {
	p := order - 1
	out := make([]float64, n)
	for i := range out {
		var sum float64
		for j := 1; j <= p; j++ {
			sum += k[i+j]
		}
		out[i] = sum / float64(p)
	}
	return out
}
