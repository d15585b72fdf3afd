package kernel

// Test solids built from primitives, booleans and transforms. Each one
// exercises a different part of the reconstruction: holes give inner trim
// loops, unions give concave creases, intersections give curved patches
// meeting at a sharp rim.

// DrilledBlock is an x by y by z block, minimum corner at the origin, with
// a Z aligned hole of radius r through the centre of its top face.
func DrilledBlock(k Kernel, x, y, z, r float64) Solid {
	hole := k.Translate(k.Cylinder(2*z, r), x/2, y/2, z/2)
	return k.Difference(k.Box(x, y, z), hole)
}

// Bracket is an L shaped bracket: a base plate of x by y by t and a wall of
// t by y by z standing on its x = 0 edge.
func Bracket(k Kernel, x, y, z, t float64) Solid {
	return k.Union(k.Box(x, y, t), k.Box(t, y, z))
}

// Lens is the intersection of two spheres of radius r whose centres sit d
// apart on the Z axis, symmetric about the origin. d must be below 2r.
func Lens(k Kernel, r, d float64) Solid {
	a := k.Translate(k.Sphere(r), 0, 0, -d/2)
	b := k.Translate(k.Sphere(r), 0, 0, d/2)
	return k.Intersection(a, b)
}
