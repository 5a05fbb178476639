// Package pca implements C2: linear whitening of the (already scaled)
// training matrix via eigendecomposition of its covariance, truncated by
// one of three rules.
package pca

import (
	"fmt"
	"math"
	"sort"

	"github.com/plomsys/plom/errs"
	"github.com/plomsys/plom/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Rule selects how many principal components to retain.
type Rule int

const (
	// CumEnergy retains the smallest number of components whose
	// cumulative eigenvalue share reaches Param (a fraction in (0,1]).
	CumEnergy Rule = iota
	// EigvCutoff retains every component whose eigenvalue exceeds Param.
	EigvCutoff
	// FixedDim retains the top int(Param) components. A value <= 0, or one
	// above the number of eigenvalues over the numerical floor, retains
	// every eigenvalue over the floor instead.
	FixedDim
)

// Config selects the truncation rule and whether the forward/inverse
// operators are eigenvalue-scaled (whitened) or left unscaled.
type Config struct {
	Rule       Rule
	Param      float64
	ScaleEvecs bool
}

// Model is a fitted PCA: the retained eigenvalues (ascending), their
// eigenvectors, and the forward/inverse projection operators derived from
// them.
type Model struct {
	Eigenvalues []float64  // length ν, ascending
	V           *mat.Dense // n x ν
	ScaleEvecs  bool
	mean        []float64 // length n
}

// epsZero is the numerical floor below which an eigenvalue is treated as
// exactly zero and therefore never retained.
const epsZero = 1e-12

// Fit computes Σ = Cov(X-mean), eigendecomposes it, and truncates per cfg.
func Fit(X *mat.Dense, cfg Config) (*Model, error) {
	_, n := X.Dims()

	cov, err := matrix.FeatureCov(X)
	if err != nil {
		return nil, &errs.NumericalError{Stage: "pca.Fit", Err: err}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(cov, true)
	if !ok {
		return nil, &errs.NumericalError{Stage: "pca.Fit", Err: fmt.Errorf("eigendecomposition failed")}
	}

	vals := eig.Values(nil) // ascending
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for _, v := range vals {
		if v < -1e-8 {
			return nil, &errs.NumericalError{Stage: "pca.Fit", Err: fmt.Errorf("negative eigenvalue %g below tolerance", v)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &errs.NumericalError{Stage: "pca.Fit", Err: fmt.Errorf("non-finite eigenvalue")}
		}
	}

	keep, err := selectIndices(vals, cfg)
	if err != nil {
		return nil, err
	}

	nu := len(keep)
	trunc := make([]float64, nu)
	V := mat.NewDense(n, nu, nil)
	for j, idx := range keep {
		trunc[j] = vals[idx]
		for r := 0; r < n; r++ {
			V.Set(r, j, vecs.At(r, idx))
		}
	}

	colMean := matrix.RowsMean(X)

	return &Model{
		Eigenvalues: trunc,
		V:           V,
		ScaleEvecs:  cfg.ScaleEvecs,
		mean:        colMean,
	}, nil
}

// selectIndices returns the ascending-order indices into vals (length n,
// ascending) to retain, themselves kept in ascending order, after dropping
// anything at or below the numerical floor.
func selectIndices(vals []float64, cfg Config) ([]int, error) {
	n := len(vals)

	// vals ascending; largest is at the end.
	nonZero := 0
	for _, v := range vals {
		if v > epsZero {
			nonZero++
		}
	}

	switch cfg.Rule {
	case FixedDim:
		k := int(cfg.Param)
		if k <= 0 || k > nonZero {
			k = nonZero
		}
		idx := make([]int, k)
		for i := 0; i < k; i++ {
			idx[i] = n - k + i
		}
		return idx, nil

	case EigvCutoff:
		var idx []int
		for i := n - 1; i >= 0; i-- {
			if vals[i] > cfg.Param && vals[i] > epsZero {
				idx = append(idx, i)
			}
		}
		sort.Ints(idx)
		if len(idx) == 0 {
			return nil, &errs.NumericalError{Stage: "pca.selectIndices", Err: fmt.Errorf("no eigenvalues exceed cutoff %g", cfg.Param)}
		}
		return idx, nil

	case CumEnergy:
		if cfg.Param <= 0 || cfg.Param > 1 {
			return nil, &errs.ConfigError{Stage: "pca.selectIndices", Key: "pca_cum_energy", Err: fmt.Errorf("must be in (0,1], got %g", cfg.Param)}
		}
		// clip negative/near-zero noise before computing the energy total
		clipped := make([]float64, n)
		for i, v := range vals {
			if v > epsZero {
				clipped[i] = v
			}
		}
		total := floats.Sum(clipped)
		if total <= 0 {
			return nil, &errs.NumericalError{Stage: "pca.selectIndices", Err: fmt.Errorf("zero total eigenvalue energy")}
		}
		// Equivalent tail test: drop the smallest prefix whose cumulative
		// share is <= 1-E, scanning ascending (smallest eigenvalues first).
		target := 1 - cfg.Param
		var running float64
		drop := 0
		for i := 0; i < n; i++ {
			running += clipped[i]
			if running/total <= target {
				drop = i + 1
			} else {
				break
			}
		}
		var idx []int
		for i := drop; i < n; i++ {
			if vals[i] > epsZero {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			idx = []int{n - 1}
		}
		return idx, nil
	}

	return nil, &errs.ConfigError{Stage: "pca.selectIndices", Key: "pca_method", Err: fmt.Errorf("unknown rule %d", cfg.Rule)}
}

// Transform whitens X (N x n) into H (N x ν): H = (X-mean) * Pf where
// Pf = V/sqrt(lambda) when ScaleEvecs, else Pf = V.
func (m *Model) Transform(X *mat.Dense) (*mat.Dense, error) {
	rows, n := X.Dims()
	vn, _ := m.V.Dims()
	if n != vn {
		return nil, &errs.ShapeError{Stage: "pca.Transform", Want: [2]int{rows, vn}, Got: [2]int{rows, n}}
	}

	Xc := mat.NewDense(rows, n, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < n; c++ {
			Xc.Set(r, c, X.At(r, c)-m.mean[c])
		}
	}

	Pf := m.forwardOperator()
	H := new(mat.Dense)
	H.Mul(Xc, Pf)
	return H, nil
}

// Inverse maps H (N x ν) back to X (N x n): X = H * Pi^T + mean, where
// Pi = V*sqrt(lambda) when ScaleEvecs, else Pi = V.
func (m *Model) Inverse(H *mat.Dense) (*mat.Dense, error) {
	rows, nu := H.Dims()
	_, vnu := m.V.Dims()
	if nu != vnu {
		return nil, &errs.ShapeError{Stage: "pca.Inverse", Want: [2]int{rows, vnu}, Got: [2]int{rows, nu}}
	}

	Pi := m.inverseOperator()
	X := new(mat.Dense)
	X.Mul(H, Pi.T())

	n, _ := Pi.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < n; c++ {
			X.Set(r, c, X.At(r, c)+m.mean[c])
		}
	}
	return X, nil
}

func (m *Model) forwardOperator() *mat.Dense {
	n, nu := m.V.Dims()
	if !m.ScaleEvecs {
		return mat.DenseCopyOf(m.V)
	}
	P := mat.NewDense(n, nu, nil)
	for j := 0; j < nu; j++ {
		inv := 1 / math.Sqrt(m.Eigenvalues[j])
		for r := 0; r < n; r++ {
			P.Set(r, j, m.V.At(r, j)*inv)
		}
	}
	return P
}

func (m *Model) inverseOperator() *mat.Dense {
	n, nu := m.V.Dims()
	if !m.ScaleEvecs {
		return mat.DenseCopyOf(m.V)
	}
	P := mat.NewDense(n, nu, nil)
	for j := 0; j < nu; j++ {
		sq := math.Sqrt(m.Eigenvalues[j])
		for r := 0; r < n; r++ {
			P.Set(r, j, m.V.At(r, j)*sq)
		}
	}
	return P
}

// Dim returns the retained dimension ν.
func (m *Model) Dim() int {
	return len(m.Eigenvalues)
}
