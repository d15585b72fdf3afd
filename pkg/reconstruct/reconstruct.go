// Package reconstruct runs the mesh to B-rep pipeline: partition the mesh
// into patches, extract the curve network between them, fit a surface to
// every patch, trim it with the patch's loops and validate the result.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"

	"github.com/chazu/brepfit/pkg/brep"
	"github.com/chazu/brepfit/pkg/config"
	"github.com/chazu/brepfit/pkg/fit"
	"github.com/chazu/brepfit/pkg/mesh"
	"github.com/chazu/brepfit/pkg/network"
	"github.com/chazu/brepfit/pkg/nurbs"
	"github.com/chazu/brepfit/pkg/partition"
	"github.com/chazu/brepfit/pkg/trim"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// Result is the output of one pipeline run.
type Result struct {
	Model     *brep.Model
	Partition *partition.Result
	Network   *network.Network
	// Reports, Faces, Plans and Reoriented are indexed by patch.
	Reports []*fit.Report
	Faces   []brep.FaceID
	Plans   []*trim.FacePlan
	// Reoriented marks surfaces reversed in u to face along their patch.
	Reoriented []bool
	Validation brep.ValidationResult
}

// patchFit is the concurrent part of one patch's work.
type patchFit struct {
	surface    *nurbs.Surface
	report     *fit.Report
	reoriented bool
	plan       *trim.FacePlan
}

// Run reconstructs a B-rep from m. Invalid parameters, an invalid mesh and
// surface initialization failures abort the run; numerical trouble during
// fitting and trimming only lowers the quality of the affected faces and
// shows up in the reports and the validation result.
func Run(ctx context.Context, m *mesh.Mesh, p config.Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	logger := p.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	part, err := partition.New(m, p.Partition, logger).Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	logger.Printf("reconstruct: %d faces in %d patches (%d splits)", m.FaceCount(), len(part.Patches), part.Splits)

	model := brep.NewModel()
	net, err := network.Build(m, part, model, p.Network)
	if err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	logger.Printf("reconstruct: curve network has %d edges", len(net.Edges))

	fits := make([]patchFit, len(part.Patches))
	trimmer := trim.New(p.Trim, logger)
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range part.Patches {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, err := fitPatch(gctx, m, part.Patches[i], net, model, p, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", part.Patches[i].Name, err)
			}
			pf.plan, err = trimmer.Plan(model, pf.surface, net.PatchEdges[i])
			switch {
			case errors.Is(err, trim.ErrNoEdges):
				logger.Printf("reconstruct: %s has no bounding edges", part.Patches[i].Name)
			case err != nil:
				return fmt.Errorf("%s: %w", part.Patches[i].Name, err)
			}
			fits[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reconstruct: %w", err)
	}

	res := &Result{
		Model:      model,
		Partition:  part,
		Network:    net,
		Reports:    make([]*fit.Report, len(fits)),
		Faces:      make([]brep.FaceID, len(fits)),
		Plans:      make([]*trim.FacePlan, len(fits)),
		Reoriented: make([]bool, len(fits)),
	}
	for i, pf := range fits {
		rep := pf.report
		sid := model.AddSurface(pf.surface, rep.RMS, rep.Max, rep.Converged())
		fid := model.AddFace(sid, i)
		if pf.plan != nil {
			if err := trim.Commit(model, fid, pf.plan); err != nil {
				return nil, fmt.Errorf("reconstruct: %s: %w", part.Patches[i].Name, err)
			}
			if pf.plan.Failed > 0 {
				logger.Printf("reconstruct: %s dropped %d trim samples", part.Patches[i].Name, pf.plan.Failed)
			}
		}
		res.Reports[i], res.Faces[i], res.Plans[i] = rep, fid, pf.plan
		res.Reoriented[i] = pf.reoriented
	}

	res.Validation = brep.Validate(model)
	for _, e := range res.Validation.Errors {
		logger.Printf("reconstruct: %v", e)
	}
	for _, w := range res.Validation.Warnings {
		logger.Printf("reconstruct: warning: %v", w)
	}
	logger.Printf("reconstruct: %v", model.Stats())
	return res, nil
}

// fitPatch fits a surface to the vertices of patch and to samples of the
// edge curves bounding it, then turns the surface to face along the
// patch's mean normal.
func fitPatch(ctx context.Context, m *mesh.Mesh, patch *partition.Patch, net *network.Network,
	model *brep.Model, p config.Params, logger *log.Logger) (patchFit, error) {
	fp := p.Fitting
	data := &fit.Data{}
	for _, v := range m.FaceSetVertices(patch.Faces) {
		data.Add(m.Vertex(v), 1)
	}
	if fp.CurveSamples > 0 {
		for _, id := range net.PatchEdges[patch.ID] {
			for _, q := range model.EdgeCurve(id).Sample(fp.CurveSamples) {
				data.AddCurve(q, 1)
			}
		}
	}

	var surf *nurbs.Surface
	var err error
	switch fp.Init {
	case config.InitBox:
		surf, err = fit.InitSurfaceBox(fp.Order, data, patch.Normal, fp.Margin)
	default:
		surf, err = fit.InitSurfacePCA(fp.Order, data, patch.Normal, fp.Margin)
	}
	if err != nil {
		return patchFit{}, err
	}

	fitter := fit.NewFitter(surf, data, fp.Params, logger)
	rep, err := fitter.Fit(ctx, fp.Passes, fp.Iterations)
	if err != nil {
		return patchFit{}, err
	}
	logger.Printf("reconstruct: %s fitted %dx%d, rms %.3g, max %.3g, %d of %d solves skipped",
		patch.Name, rep.CountU, rep.CountV, rep.RMS, rep.Max, rep.Skipped, rep.Solves)

	pf := patchFit{surface: fitter.Surface, report: rep}
	if r3.Dot(pf.surface.Normal(pf.surface.Center()), patch.Normal) < 0 {
		pf.surface.ReverseU()
		pf.reoriented = true
	}
	return pf, nil
}
