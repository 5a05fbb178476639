// Package noise draws fixed-mean, fixed-covariance Gaussian vectors,
// used by test fixtures that need synthetic training data instead of
// hand-rolled per-axis rng loops.
package noise

import (
	"fmt"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian draws vectors from a fixed multivariate normal distribution.
type Gaussian struct {
	dist *distmv.Normal
	mean []float64
	cov  mat.Symmetric
}

// NewGaussian builds a Gaussian distribution with the given mean and
// covariance. It fails if cov is not positive semi-definite.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	dist, ok := newGaussianDist(mean, cov)
	if !ok {
		return nil, fmt.Errorf("noise: failed to build Gaussian distribution")
	}

	return &Gaussian{
		dist: dist,
		mean: mean,
		cov:  cov,
	}, nil
}

// Sample draws one vector from the distribution.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Cov returns the distribution's covariance.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// Mean returns the distribution's mean.
func (g *Gaussian) Mean() []float64 {
	return g.mean
}

// Reset redraws the underlying RNG source, decorrelating subsequent
// samples from a fixture's earlier reseeding.
func (g *Gaussian) Reset() error {
	dist, ok := newGaussianDist(g.mean, g.cov)
	if !ok {
		return fmt.Errorf("noise: failed to reset Gaussian distribution")
	}
	g.dist = dist

	return nil
}

func newGaussianDist(mean []float64, cov mat.Symmetric) (*distmv.Normal, bool) {
	src := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	return distmv.NewNormal(mean, cov, src)
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
