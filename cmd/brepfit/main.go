// Command brepfit reconstructs a trimmed NURBS boundary representation
// from a triangle mesh.
//
//	brepfit -in part.stl -preview part-preview.stl
//	brepfit -box 2,1,1 -plots plots/
//	brepfit -drill 4,3,1,0.5 -cell 0.1 -rotate 0,0,30
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chazu/brepfit/pkg/config"
	"github.com/chazu/brepfit/pkg/mesh"
)

func main() {
	var (
		in      = flag.String("in", "", "input STL file")
		cell    = flag.Float64("cell", 0.1, "marching cubes cell size for generated solids")
		rotate  = flag.String("rotate", "", "turn a generated solid by Euler angles `ax,ay,az` in degrees")
		weld    = flag.Float64("weld", 1e-6, "vertex weld tolerance for STL input")
		cfgPath = flag.String("config", "", "YAML parameter file")
		plots   = flag.String("plots", "", "directory for diagnostic plots")
		preview = flag.String("preview", "", "write a tessellated preview STL")
		divs    = flag.Int("preview-divs", 32, "preview grid divisions per face")
		workers = flag.Int("workers", -1, "concurrent patch fits, 0 for GOMAXPROCS")
		asJSON  = flag.Bool("json", false, "print the summary as JSON")
		quiet   = flag.Bool("q", false, "suppress progress logging")
	)
	gen := make(map[string]*string, len(shapes))
	for name, sh := range shapes {
		gen[name] = flag.String(name, "", fmt.Sprintf("generate a %s `%s` instead of reading a file", name, sh.args))
	}
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("brepfit: ")

	p := config.Default()
	if *cfgPath != "" {
		var err error
		if p, err = config.Load(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if *workers >= 0 {
		p.Workers = *workers
	}
	p.Logger = log.Default()
	if *quiet {
		p.Logger = log.New(io.Discard, "", 0)
	}

	app := NewApp(p)
	var src source
	for name, v := range gen {
		if *v != "" {
			if src.shape != "" {
				log.Fatalf("-%s and -%s both generate a solid", src.shape, name)
			}
			src.shape, src.dims = name, *v
		}
	}
	src.in, src.rotate, src.cell, src.weld = *in, *rotate, *cell, *weld
	m, err := loadMesh(app, src)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sum, err := app.Reconstruct(ctx, m, Outputs{Preview: *preview, PreviewDivs: *divs, PlotDir: *plots})
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sum); err != nil {
			log.Fatal(err)
		}
	} else {
		printSummary(sum)
	}
	if len(sum.Errors) > 0 {
		os.Exit(1)
	}
}

// source says where the input mesh comes from.
type source struct {
	in          string // STL path
	shape, dims string // generated solid
	rotate      string
	cell, weld  float64
}

func loadMesh(app *App, src source) (*mesh.Mesh, error) {
	switch {
	case src.shape != "":
		dims, err := parseFloats(src.dims, strings.Count(shapes[src.shape].args, ",")+1, true)
		if err != nil {
			return nil, fmt.Errorf("-%s: %w", src.shape, err)
		}
		var rot []float64
		if src.rotate != "" {
			if rot, err = parseFloats(src.rotate, 3, false); err != nil {
				return nil, fmt.Errorf("-rotate: %w", err)
			}
		}
		return app.ShapeMesh(src.shape, dims, rot, src.cell)
	case src.in != "":
		return mesh.ReadSTLFile(src.in, src.weld)
	default:
		return nil, fmt.Errorf("one of -in or a shape flag (-box, -sphere, -drill, ...) is required")
	}
}

// parseFloats parses n comma separated numbers, which must be positive
// when positive is set.
func parseFloats(s string, n int, positive bool) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated values, got %q", n, s)
	}
	out := make([]float64, n)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		if positive && v <= 0 {
			return nil, fmt.Errorf("value %g is not positive", v)
		}
		out[i] = v
	}
	return out, nil
}

func printSummary(s *Summary) {
	fmt.Printf("model %s\n", s.ModelID)
	fmt.Printf("  %d patches, %d faces, %d loops (%d holes), %d edges, %d vertices\n",
		s.Patches, s.Faces, s.Loops, s.Holes, s.Edges, s.Vertices)
	fmt.Printf("  worst patch rms %.4g\n", s.MaxRMS)
	for _, e := range s.Errors {
		fmt.Printf("  error: %s %d: %s\n", e.Entity, e.ID, e.Message)
	}
	for _, w := range s.Warnings {
		fmt.Printf("  warning: %s %d: %s\n", w.Entity, w.ID, w.Message)
	}
}
