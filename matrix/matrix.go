package matrix

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Format returns matrix formatter for printing matrices
func Format(m mat.Matrix) fmt.Formatter {
	return mat.Formatted(m, mat.Prefix(""), mat.Squeeze())
}

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// RowsMean returns a slice containing m row mean values.
// It panics if m is nil
func RowsMean(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	mean := ColSums(m)

	floats.Scale(1/float64(rows), mean)

	return mean
}

// ColsMean returns a slice containing m column mean values.
// It panics if m is nil
func ColsMean(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	mean := RowSums(m)

	floats.Scale(1/float64(cols), mean)

	return mean
}

// Cov calculates a covariance matrix of data stored across dim dimension.
// It returns error if the covariance could not be calculated.
func Cov(m *mat.Dense, dim string) (*mat.SymDense, error) {
	// 1. We will calculate zero mean matrix x of the data
	// 2. 1/(n-1)(x * x^T) will give us covariance of the data
	rows, cols := m.Dims()

	// calculate mean data vector across dimension dim
	var mean []float64
	var count float64
	if strings.EqualFold(dim, "rows") {
		mean = RowsMean(m)
		count = float64(rows)
	} else {
		mean = ColsMean(m)
		count = float64(cols)
	}

	// x is zero-mean matrix of data stored in dimension dim
	x := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if strings.EqualFold(dim, "rows") {
				x.Set(r, c, m.At(r, c)-mean[c])
			} else {
				x.Set(r, c, m.At(r, c)-mean[r])
			}
		}
	}

	cov := new(mat.Dense)
	cov.Mul(x, x.T())
	cov.Scale(1/(count-1.0), cov)

	return ToSymDense(cov)
}

// ToSymDense converts m to SymDense (symmetric Dense matrix) if possible.
// It returns error if the provided Dense matrix is not symmetric.
func ToSymDense(m *mat.Dense) (*mat.SymDense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, errors.New("Matrix must be square")
	}

	mT := m.T()
	vals := make([]float64, r*c)
	idx := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i != j && !floats.EqualWithinAbsOrRel(mT.At(i, j), m.At(i, j), 1e-6, 1e-2) {
				return nil, fmt.Errorf("Matrix not symmetric (%d, %d): %.40f != %.40f\n%v",
					i, j, mT.At(i, j), m.At(i, j), Format(m))
			}
			vals[idx] = m.At(i, j)
			idx++
		}
	}

	return mat.NewSymDense(r, vals), nil
}

// FeatureCov computes the n x n sample covariance matrix of X, a N x n
// matrix whose rows are samples and whose columns are features. It returns
// error if X has fewer than two rows.
func FeatureCov(X *mat.Dense) (*mat.SymDense, error) {
	rows, cols := X.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("FeatureCov: need at least 2 samples, got %d", rows)
	}

	mean := RowsMean(X)

	xc := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			xc.Set(r, c, X.At(r, c)-mean[c])
		}
	}

	cov := new(mat.Dense)
	cov.Mul(xc.T(), xc)
	cov.Scale(1/(float64(rows)-1.0), cov)

	return ToSymDense(cov)
}

// PairwiseSqDist returns the N x N matrix of squared Euclidean distances
// between the rows of H, a N x ν matrix. The diagonal is exactly zero.
func PairwiseSqDist(H *mat.Dense) *mat.Dense {
	rows, _ := H.Dims()
	D := mat.NewDense(rows, rows, nil)

	for i := 0; i < rows; i++ {
		hi := H.RawRowView(i)
		for j := i + 1; j < rows; j++ {
			hj := H.RawRowView(j)
			var sum float64
			for k := range hi {
				d := hi[k] - hj[k]
				sum += d * d
			}
			D.Set(i, j, sum)
			D.Set(j, i, sum)
		}
	}

	return D
}

// StackRows vertically concatenates blocks, which must all share the same
// column count, into a single (sum of rows) x cols matrix, in order. An
// empty input returns a 0x0 matrix.
func StackRows(blocks []*mat.Dense) *mat.Dense {
	if len(blocks) == 0 {
		return mat.NewDense(0, 0, nil)
	}
	_, cols := blocks[0].Dims()
	totalRows := 0
	for _, b := range blocks {
		r, c := b.Dims()
		if c != cols {
			panic("StackRows: column count mismatch")
		}
		totalRows += r
	}

	out := mat.NewDense(totalRows, cols, nil)
	offset := 0
	for _, b := range blocks {
		r, _ := b.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < cols; j++ {
				out.Set(offset+i, j, b.At(i, j))
			}
		}
		offset += r
	}
	return out
}

// Symmetrize averages m with its transpose in place, cancelling the
// round-off asymmetry that elementwise kernel evaluation can introduce.
func Symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	if r != c {
		panic("Symmetrize: matrix must be square")
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			avg := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}
