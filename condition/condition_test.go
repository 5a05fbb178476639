package condition

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func bivariateGaussian(n int, rho float64, seed int64) *mat.Dense {
	r := rand.New(rand.NewSource(seed))
	data := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		z1 := r.NormFloat64()
		z2 := r.NormFloat64()
		x1 := z1
		x2 := rho*z1 + math.Sqrt(1-rho*rho)*z2
		data = append(data, x1, x2)
	}
	return mat.NewDense(n, 2, data)
}

func TestExpectationBivariateGaussian(t *testing.T) {
	assert := assert.New(t)

	X := bivariateGaussian(5000, 0.7, 11)
	c, err := New(X, []int{1}, []int{0})
	assert.NoError(err)

	mean, _, err := c.Expectation([]float64{1.0})
	assert.NoError(err)
	assert.InDelta(0.7, mean[0], 0.05)
}

func TestWeightsSumToOneAndNonNegative(t *testing.T) {
	assert := assert.New(t)

	X := bivariateGaussian(500, 0.3, 13)
	c, err := New(X, []int{1}, []int{0})
	assert.NoError(err)

	w, err := c.Weights([]float64{0.2})
	assert.NoError(err)

	var sum float64
	for _, v := range w {
		assert.GreaterOrEqual(v, 0.0)
		sum += v
	}
	assert.InDelta(1.0, sum, 1e-9)
}

func TestExpectationConvergesAtTrainingRow(t *testing.T) {
	assert := assert.New(t)

	X := bivariateGaussian(2000, 0.5, 17)
	c, err := New(X, []int{1}, []int{0})
	assert.NoError(err)

	row := 42
	w0 := X.At(row, 1)
	mean, _, err := c.Expectation([]float64{w0})
	assert.NoError(err)
	// bandwidth isn't zero so this is approximate, not exact
	assert.InDelta(X.At(row, 0), mean[0], 1.0)
}

func TestGridTensorProductShape(t *testing.T) {
	assert := assert.New(t)

	grid := Grid([]float64{0, 10}, []float64{1, 20}, 3)
	assert.Len(grid, 9)
	assert.Equal([]float64{0, 10}, grid[0])
	assert.Equal([]float64{1, 20}, grid[8])
}

func TestPDFIntegratesToRoughlyOne(t *testing.T) {
	assert := assert.New(t)

	X := bivariateGaussian(2000, 0.0, 19)
	c, err := New(X, []int{1}, []int{0})
	assert.NoError(err)

	grid := Grid([]float64{-4}, []float64{4}, 200)
	dens, err := c.PDF([]float64{0.0}, grid, ModeJointKDE, false)
	assert.NoError(err)

	step := 8.0 / 199.0
	var total float64
	for _, d := range dens {
		total += d * step
	}
	assert.InDelta(1.0, total, 0.1)
}

func TestResampleDrawsRequestedCount(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	X := bivariateGaussian(500, 0.2, 29)
	c, err := New(X, []int{1}, []int{0})
	require.NoError(err)

	idx, err := c.Resample([]float64{0.0}, 20)
	require.NoError(err)
	assert.Len(idx, 20)
	for _, i := range idx {
		assert.GreaterOrEqual(i, 0)
		assert.Less(i, 500)
	}
}

func TestPDFRejectsUnimplementedModes(t *testing.T) {
	assert := assert.New(t)

	X := bivariateGaussian(100, 0.0, 23)
	c, err := New(X, []int{1}, []int{0})
	assert.NoError(err)

	_, err = c.PDF([]float64{0.0}, Grid([]float64{-1}, []float64{1}, 2), ModeTanhMarginal, false)
	assert.ErrorIs(err, ErrModeNotImplemented)

	_, err = c.PDF([]float64{0.0}, Grid([]float64{-1}, []float64{1}, 2), ModeNadarayaWatson, false)
	assert.ErrorIs(err, ErrModeNotImplemented)
}
