package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/brepfit/pkg/config"
	"github.com/chazu/brepfit/pkg/diag"
	"github.com/chazu/brepfit/pkg/kernel"
	"github.com/chazu/brepfit/pkg/kernel/sdfx"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/reconstruct"
	"github.com/chazu/brepfit/pkg/tessellate"
)

// App ties a mesh source to the reconstruction pipeline.
type App struct {
	kernel kernel.Kernel
	params config.Params
	logger *log.Logger
}

// NewApp creates an App with the sdfx kernel.
func NewApp(p config.Params) *App {
	logger := p.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &App{kernel: sdfx.New(), params: p, logger: logger}
}

// Finding is a JSON-serializable validation finding.
type Finding struct {
	Entity  string `json:"entity"`
	ID      int    `json:"id"`
	Message string `json:"message"`
}

// Summary is the outcome of one reconstruction.
type Summary struct {
	ModelID  string    `json:"modelId"`
	Patches  int       `json:"patches"`
	Faces    int       `json:"faces"`
	Loops    int       `json:"loops"`
	Holes    int       `json:"holes"`
	Edges    int       `json:"edges"`
	Vertices int       `json:"vertices"`
	MaxRMS   float64   `json:"maxRms"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

// shape builds a generated input solid from its dimensions.
type shape struct {
	args  string // dimension names, for messages
	build func(k kernel.Kernel, v []float64) kernel.Solid
}

var shapes = map[string]shape{
	"box": {"x,y,z", func(k kernel.Kernel, v []float64) kernel.Solid {
		return k.Box(v[0], v[1], v[2])
	}},
	"cylinder": {"height,radius", func(k kernel.Kernel, v []float64) kernel.Solid {
		return k.Cylinder(v[0], v[1])
	}},
	"sphere": {"radius", func(k kernel.Kernel, v []float64) kernel.Solid {
		return k.Sphere(v[0])
	}},
	"drill": {"x,y,z,radius", func(k kernel.Kernel, v []float64) kernel.Solid {
		return kernel.DrilledBlock(k, v[0], v[1], v[2], v[3])
	}},
	"bracket": {"x,y,z,thickness", func(k kernel.Kernel, v []float64) kernel.Solid {
		return kernel.Bracket(k, v[0], v[1], v[2], v[3])
	}},
	"lens": {"radius,distance", func(k kernel.Kernel, v []float64) kernel.Solid {
		return kernel.Lens(k, v[0], v[1])
	}},
}

// ShapeMesh renders the named shape with the kernel, turned by the Euler
// angles in rotate (degrees, may be nil), using cells of roughly the
// given size.
func (a *App) ShapeMesh(name string, dims, rotate []float64, cell float64) (*mesh.Mesh, error) {
	sh, ok := shapes[name]
	if !ok {
		return nil, fmt.Errorf("unknown shape %q", name)
	}
	if want := len(strings.Split(sh.args, ",")); len(dims) != want {
		return nil, fmt.Errorf("%s wants %s, got %d values", name, sh.args, len(dims))
	}
	s := sh.build(a.kernel, dims)
	if len(rotate) == 3 {
		s = a.kernel.Rotate(s, rotate[0], rotate[1], rotate[2])
	}
	return a.kernel.ToMesh(s, kernel.CellsFor(s, cell))
}

// Outputs names the optional files a run writes. Empty fields are skipped.
type Outputs struct {
	Preview     string
	PreviewDivs int
	PlotDir     string
}

// Reconstruct runs the pipeline on m and writes the requested outputs.
func (a *App) Reconstruct(ctx context.Context, m *mesh.Mesh, out Outputs) (*Summary, error) {
	res, err := reconstruct.Run(ctx, m, a.params)
	if err != nil {
		return nil, err
	}

	st := res.Model.Stats()
	sum := &Summary{
		ModelID:  res.Model.ID.String(),
		Patches:  len(res.Partition.Patches),
		Faces:    st.Faces,
		Loops:    st.Loops,
		Edges:    st.Edges,
		Vertices: st.Vertices,
		Errors:   []Finding{},
		Warnings: []Finding{},
	}
	for _, f := range res.Model.Faces {
		sum.Holes += len(f.Inner)
	}
	for _, r := range res.Reports {
		sum.MaxRMS = max(sum.MaxRMS, r.RMS)
	}
	for _, e := range res.Validation.Errors {
		sum.Errors = append(sum.Errors, Finding{Entity: e.Entity, ID: e.ID, Message: e.Message})
	}
	for _, w := range res.Validation.Warnings {
		sum.Warnings = append(sum.Warnings, Finding{Entity: w.Entity, ID: w.ID, Message: w.Message})
	}

	if out.Preview != "" {
		meshes, err := tessellate.Model(res.Model, out.PreviewDivs)
		if err != nil {
			return sum, err
		}
		if err := mesh.WriteSTLFile(out.Preview, mesh.Merge("preview", meshes...)); err != nil {
			return sum, err
		}
		a.logger.Printf("wrote preview %s", out.Preview)
	}

	if out.PlotDir != "" {
		if err := os.MkdirAll(out.PlotDir, 0o755); err != nil {
			return sum, fmt.Errorf("plots: %w", err)
		}
		if err := diag.PlotPatches(m, res.Partition, filepath.Join(out.PlotDir, "patches.png")); err != nil {
			return sum, err
		}
		for i, f := range res.Faces {
			path := filepath.Join(out.PlotDir, fmt.Sprintf("trims-%03d.png", i))
			if err := diag.PlotTrims(res.Model, f, path); err != nil {
				return sum, err
			}
		}
		a.logger.Printf("wrote %d plots to %s", len(res.Faces)+1, out.PlotDir)
	}
	return sum, nil
}
