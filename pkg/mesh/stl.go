package mesh

import (
	"fmt"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"
)

// ReadSTLFile reads a binary or ASCII STL file and welds its vertices
// within tol.
func ReadSTLFile(path string, tol float64) (*Mesh, error) {
	soup, err := render.LoadSTL(path)
	if err != nil {
		return nil, fmt.Errorf("mesh: read %s: %w", path, err)
	}
	m := FromTriangles(fromSDF(soup), tol)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("mesh: read %s: %w", path, err)
	}
	return m, nil
}

// WriteSTLFile writes m to path as binary STL.
func WriteSTLFile(path string, m *Mesh) error {
	if err := render.SaveSTL(path, toSDF(m)); err != nil {
		return fmt.Errorf("mesh: write %s: %w", path, err)
	}
	return nil
}

// FromSDFTriangles welds an sdfx triangle list, as produced by the sdfx
// renderers, into a mesh.
func FromSDFTriangles(soup []*sdf.Triangle3, tol float64) *Mesh {
	return FromTriangles(fromSDF(soup), tol)
}

func fromSDF(soup []*sdf.Triangle3) [][3]r3.Vec {
	tris := make([][3]r3.Vec, 0, len(soup))
	for _, t := range soup {
		if t == nil {
			continue
		}
		var tri [3]r3.Vec
		for j := 0; j < 3; j++ {
			tri[j] = r3.Vec{X: t[j].X, Y: t[j].Y, Z: t[j].Z}
		}
		tris = append(tris, tri)
	}
	return tris
}

func toSDF(m *Mesh) []*sdf.Triangle3 {
	soup := make([]*sdf.Triangle3, m.FaceCount())
	for f := range soup {
		var t sdf.Triangle3
		for j, p := range m.FaceVertices(f) {
			t[j] = v3.Vec{X: p.X, Y: p.Y, Z: p.Z}
		}
		soup[f] = &t
	}
	return soup
}
