// Package geom holds the small geometric predicates the reconstruction
// pipeline leans on: best-fit planes, 2-D triangle overlap, polygon winding
// and bounding boxes.
package geom

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane is an oriented plane through Origin with unit Normal.
type Plane struct {
	Origin r3.Vec
	Normal r3.Vec
}

// FitPlane returns the least-squares plane through points. The normal is the
// left singular vector of the centered 3xN coordinate matrix that belongs to
// the smallest singular value. Fewer than three points, or a failed
// decomposition, yield the plane through the centroid with normal +Z; the
// sign of the normal is arbitrary and left to callers to resolve.
func FitPlane(points []r3.Vec) Plane {
	c := Centroid(points)
	fallback := Plane{Origin: c, Normal: r3.Vec{Z: 1}}
	if len(points) < 3 {
		return fallback
	}

	a := mat.NewDense(3, len(points), nil)
	for j, p := range points {
		d := r3.Sub(p, c)
		a.Set(0, j, d.X)
		a.Set(1, j, d.Y)
		a.Set(2, j, d.Z)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFullU); !ok {
		return fallback
	}
	var u mat.Dense
	svd.UTo(&u)

	// Singular values come back in descending order, so column 2 pairs with
	// the smallest one (or a zero one when N < 3 columns are independent).
	n := r3.Vec{X: u.At(0, 2), Y: u.At(1, 2), Z: u.At(2, 2)}
	if r3.Norm(n) == 0 {
		return fallback
	}
	return Plane{Origin: c, Normal: r3.Unit(n)}
}

// Centroid returns the arithmetic mean of points, or the zero vector.
func Centroid(points []r3.Vec) r3.Vec {
	var sum r3.Vec
	if len(points) == 0 {
		return sum
	}
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}

// Distance returns the signed distance from q to the plane.
func (p Plane) Distance(q r3.Vec) float64 {
	return r3.Dot(r3.Sub(q, p.Origin), p.Normal)
}

// Frame returns two unit vectors spanning the plane such that
// (u, v, Normal) is right handed.
func (p Plane) Frame() (u, v r3.Vec) {
	return Orthonormal(p.Normal)
}

// Project maps q into 2-D coordinates on the plane's frame.
func (p Plane) Project(q r3.Vec) r2.Vec {
	u, v := p.Frame()
	d := r3.Sub(q, p.Origin)
	return r2.Vec{X: r3.Dot(d, u), Y: r3.Dot(d, v)}
}

// Orthonormal completes n to a right handed orthonormal basis (u, v, n).
// The choice of u is stable: it is derived from the world axis least
// aligned with n.
func Orthonormal(n r3.Vec) (u, v r3.Vec) {
	n = r3.Unit(n)
	axis := r3.Vec{X: 1}
	ax, ay, az := math.Abs(n.X), math.Abs(n.Y), math.Abs(n.Z)
	switch {
	case ay <= ax && ay <= az:
		axis = r3.Vec{Y: 1}
	case az <= ax && az <= ay:
		axis = r3.Vec{Z: 1}
	}
	u = r3.Unit(r3.Cross(axis, n))
	v = r3.Cross(n, u)
	return u, v
}
