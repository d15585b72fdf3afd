// Package config holds the tuning parameters of the reconstruction
// pipeline and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/chazu/brepfit/pkg/fit"
	"github.com/chazu/brepfit/pkg/network"
	"github.com/chazu/brepfit/pkg/partition"
	"github.com/chazu/brepfit/pkg/trim"
	"gopkg.in/yaml.v3"
)

// Init selects how a patch's starting surface is placed.
type Init string

const (
	InitPCA Init = "pca" // principal axes of the patch points
	InitBox Init = "box" // best-fit plane frame
)

// Fitting configures per-patch surface fitting.
type Fitting struct {
	Order      int     `yaml:"order" json:"order"`
	Init       Init    `yaml:"init" json:"init"`
	Passes     int     `yaml:"passes" json:"passes"`
	Iterations int     `yaml:"iterations" json:"iterations"`
	Margin     float64 `yaml:"margin" json:"margin"`
	// CurveSamples is the number of points each bounding edge curve adds
	// to its patch's fit data.
	CurveSamples int `yaml:"curve_samples" json:"curveSamples"`

	fit.Params `yaml:",inline" json:"params"`
}

// Params is the full pipeline configuration.
type Params struct {
	Partition partition.Options `yaml:"partition" json:"partition"`
	Network   network.Options   `yaml:"network" json:"network"`
	Fitting   Fitting           `yaml:"fitting" json:"fitting"`
	Trim      trim.Options      `yaml:"trim" json:"trim"`
	// Workers bounds concurrent patch fitting. Zero means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers"`

	Logger *log.Logger `yaml:"-" json:"-"`
}

// Default returns the default configuration.
func Default() Params {
	return Params{
		Partition: partition.DefaultOptions(),
		Network:   network.DefaultOptions(),
		Fitting: Fitting{
			Order:        4,
			Init:         InitPCA,
			Passes:       2,
			Iterations:   3,
			Margin:       0.05,
			CurveSamples: 16,
			Params:       fit.DefaultParams(),
		},
		Trim:    trim.DefaultOptions(),
		Workers: runtime.GOMAXPROCS(0),
		Logger:  log.Default(),
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Params, error) {
	p := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("config: %s: %w", path, err)
	}
	return p, nil
}

// Validate reports every out-of-range parameter.
func (p Params) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(p.Partition.SizeThreshold >= 0, "partition.size_threshold %d is negative", p.Partition.SizeThreshold)
	check(p.Partition.AngleThreshold > 0 && p.Partition.AngleThreshold <= 90,
		"partition.angle_threshold %g not in (0, 90]", p.Partition.AngleThreshold)
	check(p.Partition.MaxSplits >= 0, "partition.max_splits %d is negative", p.Partition.MaxSplits)
	for i, d := range p.Partition.Directions {
		check(d.X != 0 || d.Y != 0 || d.Z != 0, "partition.directions[%d] is zero", i)
	}
	check(p.Network.CurveOrder >= 2, "network.curve_order %d is below 2", p.Network.CurveOrder)

	f := p.Fitting
	check(f.Order >= 2, "fitting.order %d is below 2", f.Order)
	check(f.Init == InitPCA || f.Init == InitBox, "fitting.init %q is not %q or %q", f.Init, InitPCA, InitBox)
	check(f.Passes >= 0, "fitting.passes %d is negative", f.Passes)
	check(f.Iterations >= 1, "fitting.iterations %d is below 1", f.Iterations)
	check(f.Margin >= 0, "fitting.margin %g is negative", f.Margin)
	check(f.CurveSamples >= 0, "fitting.curve_samples %d is negative", f.CurveSamples)
	check(f.InteriorWeight >= 0 && f.BoundaryWeight >= 0 && f.CurveWeight >= 0,
		"fitting weights %g/%g/%g must not be negative", f.InteriorWeight, f.BoundaryWeight, f.CurveWeight)
	check(f.Damping > 0 && f.Damping <= 1, "fitting.damping %g not in (0, 1]", f.Damping)
	check(f.InvMapSteps >= 1, "fitting.inv_map_steps %d is below 1", f.InvMapSteps)
	check(f.InvMapAccuracy > 0, "fitting.inv_map_accuracy %g is not positive", f.InvMapAccuracy)

	check(p.Trim.Samples >= 2, "trim.samples %d is below 2", p.Trim.Samples)
	check(p.Trim.Order >= 2, "trim.order %d is below 2", p.Trim.Order)
	check(p.Workers >= 0, "workers %d is negative", p.Workers)
	return errors.Join(errs...)
}
