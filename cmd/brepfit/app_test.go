package main

import (
	"context"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/brepfit/pkg/config"
	"github.com/chazu/brepfit/pkg/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func quietApp() *App {
	p := config.Default()
	p.Logger = log.New(io.Discard, "", 0)
	return NewApp(p)
}

// TestE2EBox exercises the full pipeline the command runs: mesh, partition,
// network, fit, trim, validate, then the preview and plot outputs.
func TestE2EBox(t *testing.T) {
	app := quietApp()
	dir := t.TempDir()
	out := Outputs{
		Preview:     filepath.Join(dir, "preview.stl"),
		PreviewDivs: 8,
		PlotDir:     filepath.Join(dir, "plots"),
	}
	sum, err := app.Reconstruct(context.Background(), mesh.Box(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, 2), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Errors) > 0 {
		for _, e := range sum.Errors {
			t.Errorf("validation error: %s %d: %s", e.Entity, e.ID, e.Message)
		}
		t.FailNow()
	}
	if sum.Patches != 6 || sum.Faces != 6 || sum.Edges != 12 || sum.Vertices != 8 {
		t.Errorf("summary = %+v", sum)
	}

	preview, err := mesh.ReadSTLFile(out.Preview, 1e-6)
	if err != nil {
		t.Fatalf("reading preview: %v", err)
	}
	if preview.IsEmpty() {
		t.Error("preview is empty")
	}
	entries, err := os.ReadDir(out.PlotDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 7 {
		t.Errorf("got %d plots, want 7", len(entries))
	}
}

func TestShapeMesh(t *testing.T) {
	tests := []struct {
		name   string
		dims   []float64
		rotate []float64
		size   r3.Vec
	}{
		{"box", []float64{2, 1, 1}, nil, r3.Vec{X: 2, Y: 1, Z: 1}},
		{"cylinder", []float64{2, 0.5}, nil, r3.Vec{X: 1, Y: 1, Z: 2}},
		{"sphere", []float64{1}, nil, r3.Vec{X: 2, Y: 2, Z: 2}},
		{"drill", []float64{2, 2, 1, 0.4}, nil, r3.Vec{X: 2, Y: 2, Z: 1}},
		{"bracket", []float64{2, 1, 2, 0.5}, nil, r3.Vec{X: 2, Y: 1, Z: 2}},
		{"lens", []float64{1, 1}, nil, r3.Vec{X: 2 * 0.866, Y: 2 * 0.866, Z: 1}},
		{"box", []float64{2, 1, 1}, []float64{0, 0, 90}, r3.Vec{X: 1, Y: 2, Z: 1}},
	}
	app := quietApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := app.ShapeMesh(tt.name, tt.dims, tt.rotate, 0.1)
			if err != nil {
				t.Fatal(err)
			}
			if err := m.Validate(); err != nil {
				t.Fatal(err)
			}
			b := m.Bounds()
			size := r3.Sub(b.Max, b.Min)
			if math.Abs(size.X-tt.size.X) > 0.15 || math.Abs(size.Y-tt.size.Y) > 0.15 || math.Abs(size.Z-tt.size.Z) > 0.15 {
				t.Errorf("mesh size = %v, want about %v", size, tt.size)
			}
		})
	}

	if _, err := app.ShapeMesh("torus", []float64{1, 2}, nil, 0.1); err == nil {
		t.Error("expected error for unknown shape")
	}
	if _, err := app.ShapeMesh("box", []float64{1, 2}, nil, 0.1); err == nil {
		t.Error("expected error for missing dimension")
	}
}

// TestDrilledBlockHasHole reconstructs a block with a through hole; the
// faces around the hole carry inner loops.
func TestDrilledBlockHasHole(t *testing.T) {
	app := quietApp()
	m, err := app.ShapeMesh("drill", []float64{4, 4, 1, 0.8}, nil, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := app.Reconstruct(context.Background(), m, Outputs{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range sum.Errors {
		t.Errorf("validation error: %s %d: %s", e.Entity, e.ID, e.Message)
	}
	if sum.Holes == 0 {
		t.Errorf("no inner loops in %+v", sum)
	}
	t.Logf("drilled block: %d patches, %d faces, %d holes", sum.Patches, sum.Faces, sum.Holes)
}

func TestParseFloats(t *testing.T) {
	tests := []struct {
		in       string
		n        int
		positive bool
		want     []float64
		wantErr  bool
	}{
		{"1,2,3", 3, true, []float64{1, 2, 3}, false},
		{" 1.5 , 2 ", 2, true, []float64{1.5, 2}, false},
		{"1,2", 3, true, nil, true},
		{"1,x,3", 3, true, nil, true},
		{"1,0,3", 3, true, nil, true},
		{"0,-90,30", 3, false, []float64{0, -90, 30}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFloats(tt.in, tt.n, tt.positive)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("value %d = %g, want %g", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLoadMesh(t *testing.T) {
	app := quietApp()
	if _, err := loadMesh(app, source{cell: 0.1, weld: 1e-6}); err == nil {
		t.Error("expected error without a mesh source")
	}
	if _, err := loadMesh(app, source{shape: "sphere", dims: "0", cell: 0.1}); err == nil {
		t.Error("expected error for a zero radius")
	}
	m, err := loadMesh(app, source{shape: "box", dims: "1,1,1", rotate: "0,0,45", cell: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if b := m.Bounds(); b.Max.X-b.Min.X < 1.2 {
		t.Errorf("rotated box bounds %v, want the diagonal along X", b)
	}
}
