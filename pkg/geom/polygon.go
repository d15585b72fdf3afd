package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// TrianglesOverlap2D reports whether the interiors of two triangles overlap.
// Triangles that only touch along an edge or at a vertex do not overlap. The
// test is a separating axis test over the six edge normals; eps is an
// absolute slack on the projected interval overlap.
func TrianglesOverlap2D(a, b [3]r2.Vec, eps float64) bool {
	if degenerate2D(a) || degenerate2D(b) {
		return false
	}
	for _, tri := range [2][3]r2.Vec{a, b} {
		for i := 0; i < 3; i++ {
			e := r2.Sub(tri[(i+1)%3], tri[i])
			axis := r2.Vec{X: -e.Y, Y: e.X}
			l := r2.Norm(axis)
			if l == 0 {
				continue
			}
			axis = r2.Scale(1/l, axis)
			amin, amax := projectInterval(a, axis)
			bmin, bmax := projectInterval(b, axis)
			if math.Min(amax, bmax)-math.Max(amin, bmin) <= eps {
				return false
			}
		}
	}
	return true
}

func projectInterval(t [3]r2.Vec, axis r2.Vec) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range t {
		d := r2.Dot(p, axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

func degenerate2D(t [3]r2.Vec) bool {
	return r2.Cross(r2.Sub(t[1], t[0]), r2.Sub(t[2], t[0])) == 0
}

// SignedArea returns the shoelace area of a closed polygon. Counter-clockwise
// polygons have positive area. The closing edge is implied.
func SignedArea(poly []r2.Vec) float64 {
	var a float64
	for i := range poly {
		j := (i + 1) % len(poly)
		a += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return a / 2
}

// PointInPolygon is an even-odd crossing test.
func PointInPolygon(p r2.Vec, poly []r2.Vec) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi.Y > p.Y) != (pj.Y > p.Y) {
			x := (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y) + pi.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Bounds returns the axis aligned bounding box of points. An empty input
// gives the zero box.
func Bounds(points []r3.Vec) r3.Box {
	if len(points) == 0 {
		return r3.Box{}
	}
	b := r3.Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = Extend(b, p)
	}
	return b
}

// Extend grows b to contain p.
func Extend(b r3.Box, p r3.Vec) r3.Box {
	b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Diagonal is the length of the box diagonal.
func Diagonal(b r3.Box) float64 {
	return r3.Norm(r3.Sub(b.Max, b.Min))
}
