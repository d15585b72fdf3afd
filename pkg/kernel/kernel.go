// Package kernel defines the solid modeling interface used to produce
// input meshes. Implementations (sdfx) build solids from primitives and
// booleans and tessellate them into indexed triangle meshes.
package kernel

import (
	"math"

	"github.com/chazu/brepfit/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Solid is an opaque handle to a kernel solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() r3.Box
}

// Kernel is the solid modeling interface.
type Kernel interface {
	// Primitives. Box has its minimum corner at the origin; Cylinder and
	// Sphere are centred on it.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64) Solid
	Sphere(radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates s with the given number of cells along the
	// longest side of its bounding box and welds the result.
	ToMesh(s Solid, cells int) (*mesh.Mesh, error)
}

// CellsFor returns the cell count that gives s cells of roughly the given
// edge length, at least 1.
func CellsFor(s Solid, size float64) int {
	if size <= 0 {
		return 1
	}
	bb := s.BoundingBox()
	d := r3.Sub(bb.Max, bb.Min)
	longest := math.Max(d.X, math.Max(d.Y, d.Z))
	return max(1, int(math.Ceil(longest/size)))
}
