// Package fit shapes a B-spline surface to a point cloud by point-distance
// minimization: every data point is inverse-mapped to its closest surface
// parameter, the resulting linear system (point rows plus optional
// smoothing rows) is solved in the least-squares sense, and the control
// grid is updated. Iterating assemble and solve converges because each
// point's parameter seeds the next inversion.
package fit

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNoPoints is returned when a fit or initialization has no data.
	ErrNoPoints = errors.New("fit: empty point set")
	// ErrOrder is returned for a surface order below 2.
	ErrOrder = errors.New("fit: surface order must be at least 2")
	// ErrDegenerateSide is returned when a boundary inversion has no usable
	// side, or when the data spans no area.
	ErrDegenerateSide = errors.New("fit: degenerate boundary side")
)

// Point is one sample of the cloud together with its latest inversion.
type Point struct {
	Pos    r3.Vec
	Weight float64

	// Filled by Assemble; Param seeds the next inversion once HasParam is set.
	Param     r2.Vec
	HasParam  bool
	Err       float64
	Normal    r3.Vec
	Converged bool
}

// Data is the point cloud of one patch. Boundary points are inverse-mapped
// onto the four parametric edges only. Curve points are samples of the
// trim curves bounding a patch; the surface is extended past them by the
// init margin, so they are inverse-mapped over the whole domain like
// interior points but weighted on their own.
type Data struct {
	Interior []Point
	Boundary []Point
	Curve    []Point
}

// NewData wraps positions as unit-weight points.
func NewData(interior, boundary []r3.Vec) *Data {
	d := &Data{}
	for _, p := range interior {
		d.Interior = append(d.Interior, Point{Pos: p, Weight: 1})
	}
	for _, p := range boundary {
		d.Boundary = append(d.Boundary, Point{Pos: p, Weight: 1})
	}
	return d
}

// Add appends an interior point with the given weight.
func (d *Data) Add(p r3.Vec, weight float64) {
	d.Interior = append(d.Interior, Point{Pos: p, Weight: weight})
}

// AddCurve appends a trim curve sample with the given weight.
func (d *Data) AddCurve(p r3.Vec, weight float64) {
	d.Curve = append(d.Curve, Point{Pos: p, Weight: weight})
}

// Len returns the total number of points.
func (d *Data) Len() int {
	return len(d.Interior) + len(d.Boundary) + len(d.Curve)
}

// Positions returns every point position: interior, boundary, then curve.
func (d *Data) Positions() []r3.Vec {
	out := make([]r3.Vec, 0, d.Len())
	for _, set := range [][]Point{d.Interior, d.Boundary, d.Curve} {
		for _, p := range set {
			out = append(out, p.Pos)
		}
	}
	return out
}

// ResetParams forgets stored parameters so the next Assemble reseeds every
// point from the element midpoints.
func (d *Data) ResetParams() {
	for i := range d.Interior {
		d.Interior[i].HasParam = false
	}
	for i := range d.Boundary {
		d.Boundary[i].HasParam = false
	}
	for i := range d.Curve {
		d.Curve[i].HasParam = false
	}
}

// errorStats returns the root mean square and maximum of the stored errors.
func errorStats(errs []float64) (rms, max float64) {
	if len(errs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, e := range errs {
		sum += e * e
		max = math.Max(max, e)
	}
	return math.Sqrt(sum / float64(len(errs))), max
}
