// Package isde implements C6: the dissipative Itô SDE integrator that
// advances latent coordinates Z toward the KDE-constrained invariant
// measure, and the bounded worker pool that runs K independent sampler
// walks.
package isde

import (
	"fmt"
	"math"
	"sync"

	"github.com/plomsys/plom/errs"
	"github.com/plomsys/plom/kde"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Config holds the integrator's damping, step size, and KDE bandwidth
// multiplier.
type Config struct {
	F0       float64
	Dr       float64
	Steps    int // 0 selects the default heuristic step count
	BetaKDE  float64
	Parallel bool
	Workers  int
}

// Integrator advances reduced-coordinate state (Z, Y) using the
// gradient-of-log-density force from kde.GradLogQ, projected back into the
// reduced basis through the reduction matrix a.
type Integrator struct {
	G      *mat.Dense // N x m
	A      *mat.Dense // N x m
	Htrain *mat.Dense // nu x N, PCA-whitened training data transposed
	KDE    *kde.Params
	F0     float64
	Dr     float64
	Steps  int
}

// New builds an Integrator. H is the N x nu whitened training data (PCA
// output); g and a are the DMAPS basis and reduction matrix.
func New(g, a, H *mat.Dense, cfg Config) (*Integrator, error) {
	N, m := g.Dims()
	an, am := a.Dims()
	if an != N || am != m {
		return nil, &errs.ShapeError{Stage: "isde.New", Want: [2]int{N, m}, Got: [2]int{an, am}}
	}
	hn, nu := H.Dims()
	if hn != N {
		return nil, &errs.ShapeError{Stage: "isde.New", Want: [2]int{N, nu}, Got: [2]int{hn, nu}}
	}
	if cfg.F0 <= 0 || cfg.Dr <= 0 {
		return nil, &errs.ConfigError{Stage: "isde.New", Key: "ito_f0/ito_dr", Err: fmt.Errorf("f0 and dr must be positive")}
	}

	params, err := kde.NewParams(N, nu, cfg.BetaKDE)
	if err != nil {
		return nil, err
	}

	steps := cfg.Steps
	if steps <= 0 {
		steps = DefaultStepCount(cfg.F0, cfg.Dr)
	}

	return &Integrator{
		G:      mat.DenseCopyOf(g),
		A:      mat.DenseCopyOf(a),
		Htrain: mat.DenseCopyOf(H.T()),
		KDE:    params,
		F0:     cfg.F0,
		Dr:     cfg.Dr,
		Steps:  steps,
	}, nil
}

// DefaultStepCount implements the heuristic time-to-relax-by-100x: T =
// ceil(4*ln(100)/(f0*dr)) + 1.
func DefaultStepCount(f0, dr float64) int {
	return int(math.Ceil(4*math.Log(100)/(f0*dr))) + 1
}

// force evaluates L(Z) = grad_log_q(Z g^T) * a, the KDE force projected
// back into the reduced basis.
func (it *Integrator) force(Z *mat.Dense) (*mat.Dense, error) {
	U := new(mat.Dense)
	U.Mul(Z, it.G.T())

	grad, err := kde.GradLogQ(it.Htrain, U, it.KDE)
	if err != nil {
		return nil, err
	}

	L := new(mat.Dense)
	L.Mul(grad, it.A)
	return L, nil
}

// Step advances (Z, Y) by one leapfrog-with-dissipation step, drawing a
// fresh process-noise sample from rng.
func (it *Integrator) Step(Z, Y *mat.Dense, rng *rand.Rand) (*mat.Dense, *mat.Dense, error) {
	nu, m := Z.Dims()

	Zhalf := new(mat.Dense)
	Zhalf.Scale(it.Dr/2, Y)
	Zhalf.Add(Z, Zhalf)

	L, err := it.force(Zhalf)
	if err != nil {
		return nil, nil, err
	}

	dW := it.drawNoise(nu, rng)

	return StepRaw(Z, Y, Zhalf, L, dW, it.F0, it.Dr)
}

// drawNoise draws R ~ N(0,I)^{nu x N} and returns sqrt(dr) * R * a (nu x m).
func (it *Integrator) drawNoise(nu int, rng *rand.Rand) *mat.Dense {
	N, _ := it.A.Dims()
	R := mat.NewDense(nu, N, nil)
	for r := 0; r < nu; r++ {
		for c := 0; c < N; c++ {
			R.Set(r, c, rng.NormFloat64())
		}
	}

	dW := new(mat.Dense)
	dW.Mul(R, it.A)
	dW.Scale(math.Sqrt(it.Dr), dW)
	return dW
}

// StepRaw implements the pure leapfrog-with-dissipation recurrence given a
// precomputed half-step position, force, and noise increment. It is
// exported separately from Step so the kinematic recurrence can be
// exercised without going through the KDE force evaluation or RNG.
//
//	b = f0*dr/4
//	Y_next = ((1-b)/(1+b))*Y + (dr/(1+b))*L + (sqrt(f0)/(1+b))*dW
//	Z_next = Zhalf + (dr/2)*Y_next
func StepRaw(Z, Y, Zhalf, L, dW *mat.Dense, f0, dr float64) (*mat.Dense, *mat.Dense, error) {
	b := f0 * dr / 4

	Ynext := new(mat.Dense)
	Ynext.Scale((1-b)/(1+b), Y)

	lTerm := new(mat.Dense)
	lTerm.Scale(dr/(1+b), L)
	Ynext.Add(Ynext, lTerm)

	wTerm := new(mat.Dense)
	wTerm.Scale(math.Sqrt(f0)/(1+b), dW)
	Ynext.Add(Ynext, wTerm)

	Znext := new(mat.Dense)
	Znext.Scale(dr/2, Ynext)
	Znext.Add(Zhalf, Znext)

	return Znext, Ynext, nil
}

// initY draws the auxiliary momentum Y = R*a with R ~ N(0,I)^{nu x N}.
func (it *Integrator) initY(nu int, rng *rand.Rand) *mat.Dense {
	N, _ := it.A.Dims()
	R := mat.NewDense(nu, N, nil)
	for r := 0; r < nu; r++ {
		for c := 0; c < N; c++ {
			R.Set(r, c, rng.NormFloat64())
		}
	}
	Y := new(mat.Dense)
	Y.Mul(R, it.A)
	return Y
}

// Sample runs one independent walk of it.Steps steps starting from Z0 and
// returns the final Z.
func (it *Integrator) Sample(Z0 *mat.Dense, rng *rand.Rand) (*mat.Dense, error) {
	nu, _ := Z0.Dims()

	Z := mat.DenseCopyOf(Z0)
	Y := it.initY(nu, rng)

	for t := 0; t < it.Steps; t++ {
		var err error
		Z, Y, err = it.Step(Z, Y, rng)
		if err != nil {
			return nil, fmt.Errorf("isde: step %d: %w", t, err)
		}
	}

	return Z, nil
}

// RunK runs K independent sampler walks, each with its own RNG seeded from
// seed+k so no two walks ever share RNG state, and returns their final Z
// matrices in deterministic k order. When workers <= 1, walks run
// sequentially in this goroutine.
func (it *Integrator) RunK(Z0 *mat.Dense, k int, seed uint64, workers int) ([]*mat.Dense, error) {
	if k <= 0 {
		return nil, &errs.ConfigError{Stage: "isde.RunK", Key: "num_samples", Err: fmt.Errorf("K must be positive, got %d", k)}
	}
	if workers <= 1 {
		out := make([]*mat.Dense, k)
		for i := 0; i < k; i++ {
			rng := rand.New(rand.NewSource(seed + uint64(i)))
			z, err := it.Sample(Z0, rng)
			if err != nil {
				return nil, err
			}
			out[i] = z
		}
		return out, nil
	}

	out := make([]*mat.Dense, k)
	errOut := make([]error, k)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i := 0; i < k; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			rng := rand.New(rand.NewSource(seed + uint64(idx)))
			z, err := it.Sample(Z0, rng)
			if err != nil {
				errOut[idx] = err
				return
			}
			out[idx] = z
		}(i)
	}
	wg.Wait()

	for _, err := range errOut {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
