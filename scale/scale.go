// Package scale implements C1: per-column centering and scaling of the
// training matrix, with an exact inverse.
package scale

import (
	"fmt"
	"math"

	"github.com/plomsys/plom/errs"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Method selects the scaling rule.
type Method int

const (
	// MinMax maps each column to (x-min)/(max-min).
	MinMax Method = iota
	// Standardize maps each column to (x-mean)/stdev.
	Standardize
)

// String names the method for logging and summaries.
func (m Method) String() string {
	switch m {
	case MinMax:
		return "minmax"
	case Standardize:
		return "standardize"
	default:
		return "unknown"
	}
}

// Params holds the per-column center and scale fitted from training data,
// plus the mean (recorded separately since MinMax's center is the min, not
// the mean, but downstream summaries want the mean regardless of method).
type Params struct {
	Method Method
	Center []float64
	Scale  []float64
	Mean   []float64
}

// Fit computes Params for X (N x n, rows are samples). Columns with zero
// range (or zero stdev) get scale=1 so the column passes through unchanged
// and inversion stays exact.
func Fit(X *mat.Dense, method Method) (*Params, error) {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return nil, &errs.NumericalError{Stage: "scale.Fit", Err: fmt.Errorf("empty matrix")}
	}

	center := make([]float64, cols)
	sc := make([]float64, cols)
	mean := make([]float64, cols)

	for c := 0; c < cols; c++ {
		col := make([]float64, rows)
		for r := 0; r < rows; r++ {
			col[r] = X.At(r, c)
			if math.IsNaN(col[r]) {
				return nil, &errs.NumericalError{Stage: "scale.Fit", Err: fmt.Errorf("NaN in column %d", c)}
			}
		}
		mean[c] = stat.Mean(col, nil)

		switch method {
		case MinMax:
			lo, hi := minMax(col)
			center[c] = lo
			span := hi - lo
			if span == 0 {
				sc[c] = 1
			} else {
				sc[c] = span
			}
		case Standardize:
			center[c] = mean[c]
			sd := stat.StdDev(col, nil)
			if sd == 0 {
				sc[c] = 1
			} else {
				sc[c] = sd
			}
		default:
			return nil, &errs.ConfigError{Stage: "scale.Fit", Key: "scaling_method", Err: fmt.Errorf("unknown method %d", method)}
		}
	}

	return &Params{Method: method, Center: center, Scale: sc, Mean: mean}, nil
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Transform applies p to X, returning (X-center)/scale elementwise.
func (p *Params) Transform(X *mat.Dense) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != len(p.Center) {
		return nil, &errs.ShapeError{Stage: "scale.Transform", Want: [2]int{rows, len(p.Center)}, Got: [2]int{rows, cols}}
	}

	Y := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			Y.Set(r, c, (X.At(r, c)-p.Center[c])/p.Scale[c])
		}
	}
	return Y, nil
}

// Inverse maps Y back to the original column units: Y*scale + center.
func (p *Params) Inverse(Y *mat.Dense) (*mat.Dense, error) {
	rows, cols := Y.Dims()
	if cols != len(p.Center) {
		return nil, &errs.ShapeError{Stage: "scale.Inverse", Want: [2]int{rows, len(p.Center)}, Got: [2]int{rows, cols}}
	}

	X := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			X.Set(r, c, Y.At(r, c)*p.Scale[c]+p.Center[c])
		}
	}
	return X, nil
}
