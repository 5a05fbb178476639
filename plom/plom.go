// Package plom implements C8: the orchestrator that owns every pipeline
// sub-model and drives the full, DMAPS-only, and sampling-only PLoM
// pipelines.
package plom

import (
	"fmt"

	"github.com/plomsys/plom/condition"
	"github.com/plomsys/plom/dmaps"
	"github.com/plomsys/plom/errs"
	"github.com/plomsys/plom/isde"
	"github.com/plomsys/plom/matrix"
	"github.com/plomsys/plom/pca"
	"github.com/plomsys/plom/project"
	"github.com/plomsys/plom/scale"
	"gonum.org/v1/gonum/mat"
)

// Config bundles the per-stage configuration for a full run. Some zero
// values select a default: ISDE.Steps<=0 selects the heuristic step count,
// DMAPS.Epsilon<=0 triggers automatic bandwidth search, DMAPS.L<=0 uses 0.1.
// Others must be set: a zero DMAPS.Kappa, ISDE.F0 or ISDE.Dr, NumSamples,
// or CumEnergy PCA.Param is rejected with an error.
type Config struct {
	ScaleMethod scale.Method
	PCA         pca.Config
	DMAPS       dmaps.Config
	ISDE        isde.Config
	NumSamples  int
	Seed        uint64
	JobDesc     string
}

// Orchestrator is the single stateful object in the system: every
// component mutates one of its named, optional sub-states. A nil field
// means that stage has not run yet — existence is a tagged presence, not a
// sentinel value.
type Orchestrator struct {
	Config Config

	TrainingX *mat.Dense

	Scale      *scale.Params
	PCA        *pca.Model
	DMAPS      *dmaps.Model
	Projection *project.Reduction

	Z0 *mat.Dense // nu x m seed latent coordinates, once projected

	Integrator *isde.Integrator

	AugmentedSet *mat.Dense // K*N x n, once sampled and inverse-mapped

	ReconstructionRMSE    float64
	HasReconstructionRMSE bool
}

// New creates an Orchestrator over training data X (N x n).
func New(X *mat.Dense, cfg Config) *Orchestrator {
	return &Orchestrator{Config: cfg, TrainingX: X}
}

// RunFull executes the complete pipeline: scale, PCA, DMAPS, project,
// sample, inverse-project, inverse-PCA, inverse-scale, RMSE.
func (o *Orchestrator) RunFull() error {
	if err := o.fitScalePCA(); err != nil {
		return err
	}
	if err := o.fitDMAPSAndProject(); err != nil {
		return err
	}
	if err := o.sampleAndInvert(); err != nil {
		return err
	}
	return nil
}

// RunDMAPSOnly executes scale, PCA, DMAPS, and projection, but omits
// sampling and its inverse. Useful for inspecting the manifold without
// paying for the sampler.
func (o *Orchestrator) RunDMAPSOnly() error {
	if err := o.fitScalePCA(); err != nil {
		return err
	}
	return o.fitDMAPSAndProject()
}

// RunSamplingOnly requires an existing projection, left on this
// Orchestrator by an earlier RunFull or RunDMAPSOnly, and runs only the
// sampling and inverse stages. An ioformat.StateBundle is not turned back
// into these fields anywhere in this module.
func (o *Orchestrator) RunSamplingOnly() error {
	if o.Projection == nil || o.Z0 == nil || o.DMAPS == nil {
		return &errs.StateError{Stage: "plom.RunSamplingOnly", Missing: "projection/Z0/DMAPS (run RunFull or RunDMAPSOnly first)"}
	}
	return o.sampleAndInvert()
}

func (o *Orchestrator) fitScalePCA() error {
	if o.TrainingX == nil {
		return &errs.StateError{Stage: "plom.fitScalePCA", Missing: "TrainingX"}
	}

	sp, err := scale.Fit(o.TrainingX, o.Config.ScaleMethod)
	if err != nil {
		return err
	}
	o.Scale = sp

	Xs, err := sp.Transform(o.TrainingX)
	if err != nil {
		return err
	}

	pm, err := pca.Fit(Xs, o.Config.PCA)
	if err != nil {
		return err
	}
	o.PCA = pm

	return nil
}

func (o *Orchestrator) fitDMAPSAndProject() error {
	if o.Scale == nil || o.PCA == nil {
		return &errs.StateError{Stage: "plom.fitDMAPSAndProject", Missing: "Scale/PCA (run fitScalePCA first)"}
	}

	Xs, err := o.Scale.Transform(o.TrainingX)
	if err != nil {
		return err
	}
	H, err := o.PCA.Transform(Xs)
	if err != nil {
		return err
	}

	dm, err := dmaps.Fit(H, o.Config.DMAPS)
	if err != nil {
		return err
	}
	o.DMAPS = dm

	red, err := project.Fit(dm.Reduced)
	if err != nil {
		return err
	}
	o.Projection = red

	Z0, err := red.Project(H)
	if err != nil {
		return err
	}
	o.Z0 = Z0

	o.ReconstructionRMSE = project.ReconstructionError(red, H, Z0)
	o.HasReconstructionRMSE = true

	integ, err := isde.New(dm.Reduced, red.A, H, o.Config.ISDE)
	if err != nil {
		return err
	}
	o.Integrator = integ

	return nil
}

func (o *Orchestrator) sampleAndInvert() error {
	if o.Integrator == nil || o.Z0 == nil {
		return &errs.StateError{Stage: "plom.sampleAndInvert", Missing: "Integrator/Z0"}
	}
	k := o.Config.NumSamples
	if k <= 0 {
		return &errs.ConfigError{Stage: "plom.sampleAndInvert", Key: "num_samples", Err: fmt.Errorf("must be positive, got %d", k)}
	}

	workers := o.Config.ISDE.Workers
	if !o.Config.ISDE.Parallel {
		workers = 1
	}

	samples, err := o.Integrator.RunK(o.Z0, k, o.Config.Seed, workers)
	if err != nil {
		return err
	}

	var blocks []*mat.Dense
	for _, Z := range samples {
		Htilde := o.Projection.Invert(Z)

		Xs, err := o.PCA.Inverse(Htilde)
		if err != nil {
			return err
		}
		X, err := o.Scale.Inverse(Xs)
		if err != nil {
			return err
		}
		blocks = append(blocks, X)
	}

	o.AugmentedSet = matrix.StackRows(blocks)
	return nil
}

// NewConditioner builds a condition.Conditioner over the generated
// augmented set (falling back to the training set if sampling has not
// run), selecting condCols as the conditioning columns and qoiCols as the
// quantity-of-interest columns.
func (o *Orchestrator) NewConditioner(condCols, qoiCols []int) (*condition.Conditioner, error) {
	X := o.AugmentedSet
	if X == nil {
		X = o.TrainingX
	}
	if X == nil {
		return nil, &errs.StateError{Stage: "plom.NewConditioner", Missing: "AugmentedSet/TrainingX"}
	}
	return condition.New(X, condCols, qoiCols)
}
