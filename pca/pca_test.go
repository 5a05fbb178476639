package pca

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func lineData() *mat.Dense {
	data := make([]float64, 0, 200)
	for i := 1; i <= 100; i++ {
		x := float64(i)
		y := 2*x + 1
		data = append(data, x, y)
	}
	return mat.NewDense(100, 2, data)
}

func TestFitFixedDimInverseIdentity(t *testing.T) {
	assert := assert.New(t)

	// lineData is exactly collinear, so its second eigenvalue is zero and
	// FixedDim=2 is clamped to the single non-zero component.
	X := lineData()
	m, err := Fit(X, Config{Rule: FixedDim, Param: 2, ScaleEvecs: false})
	assert.NoError(err)
	assert.Equal(1, m.Dim())

	H, err := m.Transform(X)
	assert.NoError(err)

	Xr, err := m.Inverse(H)
	assert.NoError(err)

	rows, cols := X.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			assert.InDelta(X.At(r, c), Xr.At(r, c), 1e-8)
		}
	}
}

func TestFitCumEnergyDropsDegenerateDim(t *testing.T) {
	assert := assert.New(t)

	// perfectly collinear data: only 1 real degree of freedom
	X := lineData()
	m, err := Fit(X, Config{Rule: CumEnergy, Param: 1 - 1e-12, ScaleEvecs: true})
	assert.NoError(err)
	assert.Equal(1, m.Dim())

	H, err := m.Transform(X)
	assert.NoError(err)
	Xr, err := m.Inverse(H)
	assert.NoError(err)

	rows, cols := X.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			assert.InDelta(X.At(r, c), Xr.At(r, c), 1e-6)
		}
	}
}

func TestFitEigvCutoff(t *testing.T) {
	assert := assert.New(t)

	X := lineData()
	m, err := Fit(X, Config{Rule: EigvCutoff, Param: 1.0})
	assert.NoError(err)
	assert.GreaterOrEqual(m.Dim(), 1)
	for _, v := range m.Eigenvalues {
		assert.Greater(v, 1.0)
	}
}

func TestFitRejectsBadCumEnergy(t *testing.T) {
	assert := assert.New(t)
	X := lineData()
	_, err := Fit(X, Config{Rule: CumEnergy, Param: 1.5})
	assert.Error(err)
}
