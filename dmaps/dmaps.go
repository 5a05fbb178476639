// Package dmaps implements C3: diffusion-maps basis construction with
// automatic Gaussian-kernel bandwidth selection.
package dmaps

import (
	"fmt"
	"math"

	"github.com/plomsys/plom/errs"
	"github.com/plomsys/plom/matrix"
	"gonum.org/v1/gonum/mat"
)

// Config selects the kernel bandwidth, diffusion exponent, and manifold
// dimension policy.
type Config struct {
	// Epsilon is the kernel bandwidth. If <= 0, Fit runs the automatic
	// epsilon search (§ AutoEpsilon) instead.
	Epsilon float64
	// Kappa is the diffusion-time exponent applied to the eigenvalues.
	Kappa int
	// L is the scale-separation cutoff used to pick m. Default 0.1.
	L float64
	// FirstEvec, when true, retains the trivial eigenvector in the
	// reduced basis (columns [0:m] instead of [1:m+1]).
	//
	// Whether this is intended to coexist with MOverride>0 is an open
	// question in the source this system was distilled from. This
	// implementation applies MOverride directly with no implicit
	// decrement when FirstEvec is also set; callers combining the two
	// should treat the result as unverified.
	FirstEvec bool
	// MOverride, when > 0, fixes the manifold dimension instead of
	// deriving it from L.
	MOverride int
}

// Model is a fitted diffusion-maps basis.
type Model struct {
	Epsilon     float64
	Kappa       int
	L           float64
	Eigenvalues []float64  // descending, full N, mu[0]==1
	G           *mat.Dense // full N x N basis
	M           int
	Reduced     *mat.Dense // N x m reduced basis g

	// EpsVsM records every (epsilon, m) pair probed by AutoEpsilon's search,
	// in probe order, for diagnostic reporting. Empty when Epsilon was fixed
	// by the caller instead of searched for.
	EpsVsM [][2]float64
}

// Fit builds the diffusion-maps model from H, an N x ν matrix of (already
// PCA-whitened) reduced coordinates.
func Fit(H *mat.Dense, cfg Config) (*Model, error) {
	if cfg.Kappa < 1 {
		return nil, &errs.ConfigError{Stage: "dmaps.Fit", Key: "dmaps_kappa", Err: fmt.Errorf("kappa must be >= 1, got %d", cfg.Kappa)}
	}
	L := cfg.L
	if L <= 0 {
		L = 0.1
	}

	eps := cfg.Epsilon
	var epsVsM [][2]float64
	if eps <= 0 {
		var err error
		eps, epsVsM, err = autoEpsilonTrace(H, L)
		if err != nil {
			return nil, err
		}
	}

	mu, V, d, err := kernelEigen(H, eps)
	if err != nil {
		return nil, err
	}

	N := len(mu)
	m := cfg.MOverride
	if m <= 0 {
		m = selectM(mu, L)
	}
	if m < 1 || m > N-1 {
		return nil, &errs.NumericalError{Stage: "dmaps.Fit", Err: fmt.Errorf("invalid manifold dimension m=%d for N=%d", m, N)}
	}

	G := diffusionBasis(mu, V, d, cfg.Kappa)

	var reduced *mat.Dense
	if cfg.FirstEvec {
		reduced = sliceColumns(G, 0, m)
	} else {
		reduced = sliceColumns(G, 1, m+1)
	}

	return &Model{
		Epsilon:     eps,
		Kappa:       cfg.Kappa,
		L:           L,
		Eigenvalues: mu,
		G:           G,
		M:           m,
		Reduced:     reduced,
		EpsVsM:      epsVsM,
	}, nil
}

// Distances returns the pairwise Euclidean distance matrix over the model's
// diffusion-maps basis: the reduced basis by default, or the full basis
// (excluding the trivial first eigenvector) when fullBasis is set.
func Distances(m *Model, fullBasis bool) *mat.Dense {
	basis := m.Reduced
	if fullBasis {
		_, cols := m.G.Dims()
		basis = sliceColumns(m.G, 1, cols)
	}

	sq := matrix.PairwiseSqDist(basis)
	rows, _ := sq.Dims()
	D := mat.NewDense(rows, rows, nil)
	for i := 0; i < rows; i++ {
		for j := i + 1; j < rows; j++ {
			d := math.Sqrt(sq.At(i, j))
			D.Set(i, j, d)
			D.Set(j, i, d)
		}
	}
	return D
}

// kernelEigen builds the symmetric-normalized Gaussian affinity kernel on H
// and returns its eigenvalues (descending), eigenvectors (columns, same
// order), and the unnormalized row degrees d.
func kernelEigen(H *mat.Dense, eps float64) (mu []float64, V *mat.Dense, d []float64, err error) {
	if eps <= 0 {
		return nil, nil, nil, &errs.ConfigError{Stage: "dmaps.kernelEigen", Key: "dmaps_epsilon", Err: fmt.Errorf("epsilon must be positive, got %g", eps)}
	}

	D := matrix.PairwiseSqDist(H)
	N, _ := D.Dims()

	K := mat.NewDense(N, N, nil)
	for i := 0; i < N; i++ {
		for j := i; j < N; j++ {
			v := math.Exp(-D.At(i, j) / eps)
			K.Set(i, j, v)
			K.Set(j, i, v)
		}
	}

	d = make([]float64, N)
	for i := 0; i < N; i++ {
		var sum float64
		for j := 0; j < N; j++ {
			sum += K.At(i, j)
		}
		d[i] = sum
	}

	sym := mat.NewSymDense(N, nil)
	for i := 0; i < N; i++ {
		for j := i; j < N; j++ {
			sym.SetSym(i, j, K.At(i, j)/(math.Sqrt(d[i])*math.Sqrt(d[j])))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, nil, &errs.NumericalError{Stage: "dmaps.kernelEigen", Err: fmt.Errorf("eigendecomposition of normalized kernel failed")}
	}

	valsAsc := eig.Values(nil)
	var vecsAsc mat.Dense
	eig.VectorsTo(&vecsAsc)

	mu = make([]float64, N)
	V = mat.NewDense(N, N, nil)
	for i := 0; i < N; i++ {
		mu[i] = valsAsc[N-1-i]
		for r := 0; r < N; r++ {
			V.Set(r, i, vecsAsc.At(r, N-1-i))
		}
	}

	return mu, V, d, nil
}

// diffusionBasis computes g_i = (v_i / sqrt(d)) * mu_i^kappa for every
// column i.
func diffusionBasis(mu []float64, V *mat.Dense, d []float64, kappa int) *mat.Dense {
	N, _ := V.Dims()
	G := mat.NewDense(N, N, nil)
	for i := 0; i < N; i++ {
		scale := math.Pow(mu[i], float64(kappa))
		for r := 0; r < N; r++ {
			G.Set(r, i, V.At(r, i)/math.Sqrt(d[r])*scale)
		}
	}
	return G
}

func sliceColumns(M *mat.Dense, from, to int) *mat.Dense {
	rows, _ := M.Dims()
	cols := to - from
	out := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			out.Set(r, c, M.At(r, from+c))
		}
	}
	return out
}

// selectM picks the manifold dimension m from the descending eigenvalue
// spectrum mu (mu[0]==1) using the scale-separation cutoff L: scanning
// a=2..N-1, the first a with mu[a]/mu[1] < L gives m = a-1; absent a gap,
// m defaults to N-1.
func selectM(mu []float64, L float64) int {
	N := len(mu)
	m := N - 1
	for a := 2; a < N; a++ {
		if mu[a]/mu[1] < L {
			m = a - 1
			break
		}
	}
	return m
}

// AutoEpsilon implements the bisection-based automatic bandwidth search
// from the source this system was distilled from. Thresholds (the probe
// lists and the 0.5-unit bisection floor) are preserved verbatim; they are
// tuned to small N and should not be changed.
func AutoEpsilon(H *mat.Dense, L float64) (float64, error) {
	eps, _, err := autoEpsilonTrace(H, L)
	return eps, err
}

// autoEpsilonTrace runs the same search as AutoEpsilon but also returns every
// (epsilon, m) pair probed along the way, in probe order, for the ε-vs-m
// diagnostic record.
func autoEpsilonTrace(H *mat.Dense, L float64) (float64, [][2]float64, error) {
	var trace [][2]float64
	mOf := func(eps float64) (int, error) {
		mu, _, _, err := kernelEigen(H, eps)
		if err != nil {
			return 0, err
		}
		m := selectM(mu, L)
		trace = append(trace, [2]float64{eps, float64(m)})
		return m, nil
	}

	probe1 := []float64{1, 10, 100, 1000, 10000}
	mStar := -1
	epsUpper := probe1[0]
	for _, eps := range probe1 {
		m, err := mOf(eps)
		if err != nil {
			return 0, nil, err
		}
		if mStar < 0 || m < mStar {
			mStar = m
			epsUpper = eps
		}
	}

	probe2 := []float64{0.1, 1, 2, 8, 16, 32, 64, 100, 10000}
	epsLower := probe2[0]
	epsUpper = probe2[len(probe2)-1]
	foundUpper := false
	for _, eps := range probe2 {
		m, err := mOf(eps)
		if err != nil {
			return 0, nil, err
		}
		if m > mStar {
			epsLower = eps
		}
		if m <= mStar && !foundUpper {
			epsUpper = eps
			foundUpper = true
		}
	}

	for epsUpper-epsLower > 0.5 {
		mid := (epsLower + epsUpper) / 2
		m, err := mOf(mid)
		if err != nil {
			return 0, nil, err
		}
		if m <= mStar {
			epsUpper = mid
		} else {
			epsLower = mid
		}
	}

	for {
		m, err := mOf(epsLower)
		if err != nil {
			return 0, nil, err
		}
		if m <= mStar {
			break
		}
		epsLower += 0.1
	}

	return epsLower, trace, nil
}
