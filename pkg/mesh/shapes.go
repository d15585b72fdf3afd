package mesh

import "gonum.org/v1/gonum/spatial/r3"

// Quad returns a bilinear quad patch through corners a, b, c, d split into
// nu×nv cells of two triangles each. Corners are given counter-clockwise so
// the faces have normal along (b-a)×(d-a).
func Quad(a, b, c, d r3.Vec, nu, nv int) *Mesh {
	if nu < 1 {
		nu = 1
	}
	if nv < 1 {
		nv = 1
	}
	m := &Mesh{}
	for j := 0; j <= nv; j++ {
		t := float64(j) / float64(nv)
		left := lerp(a, d, t)
		right := lerp(b, c, t)
		for i := 0; i <= nu; i++ {
			p := lerp(left, right, float64(i)/float64(nu))
			m.Vertices = append(m.Vertices, p.X, p.Y, p.Z)
		}
	}
	idx := func(i, j int) int { return j*(nu+1) + i }
	for j := 0; j < nv; j++ {
		for i := 0; i < nu; i++ {
			p00, p10 := idx(i, j), idx(i+1, j)
			p01, p11 := idx(i, j+1), idx(i+1, j+1)
			m.Faces = append(m.Faces, p00, p10, p11, p00, p11, p01)
		}
	}
	return m
}

// Box returns the closed surface of an axis aligned box with outward facing
// triangles, each side split into n×n cells.
func Box(min, max r3.Vec, n int) *Mesh {
	c := func(x, y, z int) r3.Vec {
		pick := func(s int, lo, hi float64) float64 {
			if s == 0 {
				return lo
			}
			return hi
		}
		return r3.Vec{X: pick(x, min.X, max.X), Y: pick(y, min.Y, max.Y), Z: pick(z, min.Z, max.Z)}
	}
	sides := []*Mesh{
		Quad(c(0, 0, 0), c(0, 1, 0), c(1, 1, 0), c(1, 0, 0), n, n), // -Z
		Quad(c(0, 0, 1), c(1, 0, 1), c(1, 1, 1), c(0, 1, 1), n, n), // +Z
		Quad(c(0, 0, 0), c(1, 0, 0), c(1, 0, 1), c(0, 0, 1), n, n), // -Y
		Quad(c(0, 1, 0), c(0, 1, 1), c(1, 1, 1), c(1, 1, 0), n, n), // +Y
		Quad(c(0, 0, 0), c(0, 0, 1), c(0, 1, 1), c(0, 1, 0), n, n), // -X
		Quad(c(1, 0, 0), c(1, 1, 0), c(1, 1, 1), c(1, 0, 1), n, n), // +X
	}
	size := r3.Norm(r3.Sub(max, min))
	return Merge("box", sides...).Weld(size * 1e-9)
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// Merge concatenates meshes into one, offsetting face indices.
func Merge(name string, meshes ...*Mesh) *Mesh {
	out := &Mesh{Name: name}
	for _, m := range meshes {
		base := out.VertexCount()
		out.Vertices = append(out.Vertices, m.Vertices...)
		for _, v := range m.Faces {
			out.Faces = append(out.Faces, v+base)
		}
	}
	return out
}
