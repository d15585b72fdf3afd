package fit

import (
	"fmt"
	"math"

	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// InverseResult is the outcome of a closest point search.
type InverseResult struct {
	Param     r2.Vec
	Point     r3.Vec
	Err       float64 // distance from the query to Point
	Normal    r3.Vec
	Converged bool
	Steps     int
}

// Side identifies one of the four parametric edges of a surface.
type Side int

const (
	SideSouth Side = iota // v = vmin
	SideEast              // u = umax
	SideNorth             // v = vmax
	SideWest              // u = umin
)

func (s Side) String() string {
	switch s {
	case SideSouth:
		return "south"
	case SideEast:
		return "east"
	case SideNorth:
		return "north"
	case SideWest:
		return "west"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// BoundaryResult is an InverseResult restricted to one side.
type BoundaryResult struct {
	InverseResult
	Side Side
}

// InverseMap finds the parameter of the point on s closest to p by Newton
// iteration on the 2×2 normal equations built from the tangents, starting
// at seed. Steps are clamped to the domain. The search stops when the
// parameter moves less than accuracy or after steps iterations; in the
// latter case the last iterate is returned with Converged false.
func InverseMap(s *nurbs.Surface, p r3.Vec, seed r2.Vec, steps int, accuracy float64) InverseResult {
	uv := s.Clamp(seed)
	res := InverseResult{}
	for res.Steps = 0; res.Steps < steps; res.Steps++ {
		d := s.Derivatives(uv, 1)
		r := r3.Sub(d[0][0], p)
		su, sv := d[1][0], d[0][1]
		a00, a01, a11 := r3.Dot(su, su), r3.Dot(su, sv), r3.Dot(sv, sv)
		b0, b1 := -r3.Dot(su, r), -r3.Dot(sv, r)
		det := a00*a11 - a01*a01
		if math.Abs(det) <= 1e-300 {
			break
		}
		delta := r2.Vec{X: (a11*b0 - a01*b1) / det, Y: (a00*b1 - a01*b0) / det}
		next := s.Clamp(r2.Add(uv, delta))
		moved := r2.Norm(r2.Sub(next, uv))
		uv = next
		if moved < accuracy {
			res.Converged = true
			res.Steps++
			break
		}
	}
	res.Param = uv
	res.Point = s.Point(uv)
	res.Err = r3.Norm(r3.Sub(res.Point, p))
	res.Normal = s.Normal(uv)
	return res
}

// InverseMapSide runs a 1-D Newton search for p along one side, starting at
// parameter t along that side.
func InverseMapSide(s *nurbs.Surface, p r3.Vec, side Side, t float64, steps int, accuracy float64) (BoundaryResult, error) {
	u0, u1 := s.DomainU()
	v0, v1 := s.DomainV()
	var (
		at    func(t float64) r2.Vec
		lo    float64
		hi    float64
		dir   int // 0: derivative along u, 1: along v
		fixed r2.Vec
	)
	switch side {
	case SideSouth, SideNorth:
		fixed.Y = v0
		if side == SideNorth {
			fixed.Y = v1
		}
		lo, hi, dir = u0, u1, 0
		at = func(t float64) r2.Vec { return r2.Vec{X: t, Y: fixed.Y} }
	case SideEast, SideWest:
		fixed.X = u1
		if side == SideWest {
			fixed.X = u0
		}
		lo, hi, dir = v0, v1, 1
		at = func(t float64) r2.Vec { return r2.Vec{X: fixed.X, Y: t} }
	default:
		return BoundaryResult{}, fmt.Errorf("%w: %v", ErrDegenerateSide, side)
	}

	// A side that collapses to a point cannot parameterize anything.
	if r3.Norm(r3.Sub(s.Point(at(lo)), s.Point(at(hi)))) == 0 {
		mid := s.Derivatives(at((lo+hi)/2), 1)
		if r3.Norm(mid[1-dir][dir]) == 0 {
			return BoundaryResult{}, fmt.Errorf("%w: %v collapses", ErrDegenerateSide, side)
		}
	}

	t = clampF(t, lo, hi)
	res := BoundaryResult{Side: side}
	for res.Steps = 0; res.Steps < steps; res.Steps++ {
		d := s.Derivatives(at(t), 1)
		r := r3.Sub(d[0][0], p)
		tan := d[1][0]
		if dir == 1 {
			tan = d[0][1]
		}
		den := r3.Dot(tan, tan)
		if den <= 1e-300 {
			break
		}
		next := clampF(t-r3.Dot(tan, r)/den, lo, hi)
		moved := math.Abs(next - t)
		t = next
		if moved < accuracy {
			res.Converged = true
			res.Steps++
			break
		}
	}
	res.Param = at(t)
	res.Point = s.Point(res.Param)
	res.Err = r3.Norm(r3.Sub(res.Point, p))
	res.Normal = s.Normal(res.Param)
	return res, nil
}

// InverseMapBoundary tries all four sides, seeding each from the matching
// component of seed, and keeps the closest result.
func InverseMapBoundary(s *nurbs.Surface, p r3.Vec, seed r2.Vec, steps int, accuracy float64) (BoundaryResult, error) {
	var (
		best  BoundaryResult
		found bool
	)
	for side := SideSouth; side <= SideWest; side++ {
		t := seed.X
		if side == SideEast || side == SideWest {
			t = seed.Y
		}
		res, err := InverseMapSide(s, p, side, t, steps, accuracy)
		if err != nil {
			continue
		}
		if !found || res.Err < best.Err {
			best, found = res, true
		}
	}
	if !found {
		return BoundaryResult{}, ErrDegenerateSide
	}
	return best, nil
}

// FindClosestElementMidpoint returns the knot-span midpoint parameter whose
// surface point is nearest p. It seeds the first inversion of a point.
func FindClosestElementMidpoint(s *nurbs.Surface, p r3.Vec) r2.Vec {
	best := s.Center()
	bestD := math.Inf(1)
	for _, u := range s.KnotsU.Midpoints(s.OrderU) {
		for _, v := range s.KnotsV.Midpoints(s.OrderV) {
			uv := r2.Vec{X: u, Y: v}
			if d := r3.Norm(r3.Sub(s.Point(uv), p)); d < bestD {
				best, bestD = uv, d
			}
		}
	}
	return best
}

func clampF(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
