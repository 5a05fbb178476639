// Package condition implements C7: weighted conditional expectation and
// conditional PDF estimators over a generated (or training) dataset.
package condition

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/plomsys/plom/errs"
	plomrand "github.com/plomsys/plom/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mode selects the conditional-density algorithm. Only ModeJointKDE is
// implemented; the other two are kept as distinct, explicitly labeled
// members so a caller can never silently get joint-KDE semantics while
// asking for the Nadaraya-Watson or tanh-marginal family.
type Mode int

const (
	// ModeJointKDE is the canonical path: a Gaussian-kernel joint density
	// weighted conditioning, per spec.
	ModeJointKDE Mode = iota
	// ModeTanhMarginal is an experimental variant not implemented here.
	ModeTanhMarginal
	// ModeNadarayaWatson is an experimental variant not implemented here.
	ModeNadarayaWatson
)

// ErrModeNotImplemented is returned by PDF for any Mode other than
// ModeJointKDE.
var ErrModeNotImplemented = fmt.Errorf("condition: mode not implemented")

// Conditioner precomputes the conditioning columns, their standard
// deviations, and the qoi columns of a dataset X (N x n) for repeated
// E[Q|W=w0]/p(Q|W=w0) queries. W keeps the raw values; Weights divides by
// StdevW at query time.
type Conditioner struct {
	N      int
	W      *mat.Dense // N x n_w, raw conditioning values
	StdevW []float64
	Q      *mat.Dense // N x n_q, raw qoi values
	NW, NQ int
	Sw     float64 // conditioning-kernel bandwidth
}

// New builds a Conditioner selecting condCols as the conditioning (W)
// columns and qoiCols as the quantity-of-interest (Q) columns of X.
func New(X *mat.Dense, condCols, qoiCols []int) (*Conditioner, error) {
	rows, cols := X.Dims()
	nw, nq := len(condCols), len(qoiCols)
	if nw == 0 || nq == 0 {
		return nil, &errs.ConfigError{Stage: "condition.New", Err: fmt.Errorf("cond_cols and qoi_cols must both be non-empty")}
	}

	W := mat.NewDense(rows, nw, nil)
	for j, col := range condCols {
		if col < 0 || col >= cols {
			return nil, &errs.ConfigError{Stage: "condition.New", Key: "cond_cols", Err: fmt.Errorf("column %d out of range", col)}
		}
		for r := 0; r < rows; r++ {
			W.Set(r, j, X.At(r, col))
		}
	}

	Q := mat.NewDense(rows, nq, nil)
	for j, col := range qoiCols {
		if col < 0 || col >= cols {
			return nil, &errs.ConfigError{Stage: "condition.New", Key: "qoi_cols", Err: fmt.Errorf("column %d out of range", col)}
		}
		for r := 0; r < rows; r++ {
			Q.Set(r, j, X.At(r, col))
		}
	}

	stdevW := make([]float64, nw)
	for j := 0; j < nw; j++ {
		col := mat.Col(nil, j, W)
		sd := stat.StdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		stdevW[j] = sd
	}

	sw := math.Pow(4.0/(float64(rows)*(2.0+float64(nw)+float64(nq))), 1.0/(4.0+float64(nw)+float64(nq)))

	return &Conditioner{
		N:      rows,
		W:      W,
		StdevW: stdevW,
		Q:      Q,
		NW:     nw,
		NQ:     nq,
		Sw:     sw,
	}, nil
}

// Weights computes the normalized conditioning weights alpha_i for query
// point w0 (length NW), subtracting the largest exponent over all samples
// before exponentiating to avoid underflow.
func (c *Conditioner) Weights(w0 []float64) ([]float64, error) {
	if len(w0) != c.NW {
		return nil, &errs.ShapeError{Stage: "condition.Weights", Want: [2]int{1, c.NW}, Got: [2]int{1, len(w0)}}
	}

	exponent := make([]float64, c.N)
	maxExp := math.Inf(-1)
	denom := 2 * c.Sw * c.Sw

	for i := 0; i < c.N; i++ {
		var sq float64
		for j := 0; j < c.NW; j++ {
			d := (c.W.At(i, j) - w0[j]) / c.StdevW[j]
			sq += d * d
		}
		e := -sq / denom
		exponent[i] = e
		if e > maxExp {
			maxExp = e
		}
	}

	alpha := make([]float64, c.N)
	for i := range alpha {
		alpha[i] = math.Exp(exponent[i] - maxExp)
	}
	total := floats.Sum(alpha)
	if total == 0 {
		return nil, &errs.NumericalError{Stage: "condition.Weights", Err: fmt.Errorf("weights underflowed to zero")}
	}
	floats.Scale(1/total, alpha)

	return alpha, nil
}

// Expectation returns E[Q|W=w0] and Var[Q|W=w0], each length NQ.
func (c *Conditioner) Expectation(w0 []float64) (mean, variance []float64, err error) {
	alpha, err := c.Weights(w0)
	if err != nil {
		return nil, nil, err
	}

	mean = make([]float64, c.NQ)
	meanSq := make([]float64, c.NQ)
	for i := 0; i < c.N; i++ {
		for j := 0; j < c.NQ; j++ {
			q := c.Q.At(i, j)
			mean[j] += alpha[i] * q
			meanSq[j] += alpha[i] * q * q
		}
	}

	variance = make([]float64, c.NQ)
	for j := 0; j < c.NQ; j++ {
		variance[j] = meanSq[j] - mean[j]*mean[j]
	}

	return mean, variance, nil
}

// Resample draws k row indices into c.Q/c.W, weighted by the conditional
// membership weights at w0, via a roulette-wheel (fitness-proportionate)
// draw. Unlike Expectation, which summarizes the conditional distribution,
// Resample lets a caller build an explicit conditional sub-sample of rows.
func (c *Conditioner) Resample(w0 []float64, k int) ([]int, error) {
	alpha, err := c.Weights(w0)
	if err != nil {
		return nil, err
	}
	idx, err := plomrand.RouletteDrawN(alpha, k)
	if err != nil {
		return nil, &errs.NumericalError{Stage: "condition.Resample", Err: err}
	}
	return idx, nil
}

// silvermanBandwidths returns the per-dimension Silverman bandwidths for
// the NQ qoi columns, isotropic-fallback when a column is degenerate.
func (c *Conditioner) silvermanBandwidths() []float64 {
	h := make([]float64, c.NQ)
	factor := math.Pow(4.0/(float64(c.N)*(2.0+float64(c.NQ))), 1.0/(float64(c.NQ)+4.0))
	for j := 0; j < c.NQ; j++ {
		col := mat.Col(nil, j, c.Q)
		sd := stat.StdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		h[j] = factor * sd
	}
	return h
}

// Grid builds the tensor-product grid over [mins[j], maxs[j]] with npts
// points per axis, returned as a flat list of NQ-length points in
// row-major axis order.
func Grid(mins, maxs []float64, npts int) [][]float64 {
	nq := len(mins)
	axes := make([][]float64, nq)
	for j := 0; j < nq; j++ {
		axes[j] = make([]float64, npts)
		if npts == 1 {
			axes[j][0] = (mins[j] + maxs[j]) / 2
			continue
		}
		step := (maxs[j] - mins[j]) / float64(npts-1)
		for k := 0; k < npts; k++ {
			axes[j][k] = mins[j] + float64(k)*step
		}
	}

	total := 1
	for range axes {
		total *= npts
	}

	points := make([][]float64, total)
	idx := make([]int, nq)
	for p := 0; p < total; p++ {
		pt := make([]float64, nq)
		for j := 0; j < nq; j++ {
			pt[j] = axes[j][idx[j]]
		}
		points[p] = pt

		for j := nq - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < npts {
				break
			}
			idx[j] = 0
		}
	}

	return points
}

// PDF evaluates p(Q=q|W=w0) at every point in grid, using a diagonal
// Gaussian kernel with Silverman per-dimension bandwidths. Only
// ModeJointKDE is implemented; any other mode returns
// ErrModeNotImplemented.
func (c *Conditioner) PDF(w0 []float64, grid [][]float64, mode Mode, parallel bool) ([]float64, error) {
	if mode != ModeJointKDE {
		return nil, ErrModeNotImplemented
	}

	alpha, err := c.Weights(w0)
	if err != nil {
		return nil, err
	}

	h := c.silvermanBandwidths()
	norm := 1.0
	for _, hv := range h {
		norm *= hv * math.Sqrt(2*math.Pi)
	}

	evalPoint := func(pt []float64) float64 {
		var density float64
		for i := 0; i < c.N; i++ {
			var sq float64
			for j := 0; j < c.NQ; j++ {
				d := (c.Q.At(i, j) - pt[j]) / h[j]
				sq += d * d
			}
			density += alpha[i] * math.Exp(-sq/2)
		}
		return density / norm
	}

	out := make([]float64, len(grid))
	if !parallel {
		for p, pt := range grid {
			out[p] = evalPoint(pt)
		}
		return out, nil
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(grid) {
		workers = len(grid)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for p := range grid {
		wg.Add(1)
		sem <- struct{}{}
		go func(p int) {
			defer wg.Done()
			defer func() { <-sem }()
			out[p] = evalPoint(grid[p])
		}(p)
	}
	wg.Wait()

	return out, nil
}
