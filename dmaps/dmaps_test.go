package dmaps

import (
	"math"
	"testing"

	plomrand "github.com/plomsys/plom/rand"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// circleData builds N points on the unit circle with isotropic Gaussian
// noise, drawn via rand.WithCovN's covariance-square-root sampler rather
// than hand-rolled per-axis jitter. The seed argument is not used:
// WithCovN draws from math/rand's global source, so the noise differs from
// run to run.
func circleData(n int, seed int64) *mat.Dense {
	cov := mat.NewSymDense(2, []float64{0.01 * 0.01, 0, 0, 0.01 * 0.01})
	noise, err := plomrand.WithCovN(cov, n)
	if err != nil {
		panic(err)
	}

	data := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		x := math.Cos(theta) + noise.At(0, i)
		y := math.Sin(theta) + noise.At(1, i)
		data = append(data, x, y)
	}
	return mat.NewDense(n, 2, data)
}

func TestFitMuZeroIsOneAndDescending(t *testing.T) {
	assert := assert.New(t)

	H := circleData(200, 1)
	m, err := Fit(H, Config{Epsilon: 1.0, Kappa: 1, L: 0.1})
	assert.NoError(err)

	assert.InDelta(1.0, m.Eigenvalues[0], 1e-9)
	for _, v := range m.Eigenvalues {
		assert.GreaterOrEqual(v, -1e-9)
		assert.LessOrEqual(v, 1+1e-9)
	}
	for i := 1; i < len(m.Eigenvalues); i++ {
		assert.LessOrEqual(m.Eigenvalues[i], m.Eigenvalues[i-1]+1e-12)
	}
}

func TestFitMOverride(t *testing.T) {
	assert := assert.New(t)

	H := circleData(200, 2)
	m, err := Fit(H, Config{Epsilon: 1.0, Kappa: 1, L: 0.1, MOverride: 3})
	assert.NoError(err)
	assert.Equal(3, m.M)
	rows, cols := m.Reduced.Dims()
	assert.Equal(200, rows)
	assert.Equal(3, cols)
}

func TestFitFirstEvecKeepsTrivialColumn(t *testing.T) {
	assert := assert.New(t)

	H := circleData(150, 3)
	m, err := Fit(H, Config{Epsilon: 1.0, Kappa: 1, L: 0.1, MOverride: 2, FirstEvec: true})
	assert.NoError(err)

	_, cols := m.Reduced.Dims()
	assert.Equal(2, cols)
	for r := 0; r < 150; r++ {
		assert.InDelta(m.G.At(r, 0), m.Reduced.At(r, 0), 1e-12)
	}
}

func TestAutoEpsilonCircleManifoldDim(t *testing.T) {
	assert := assert.New(t)

	H := circleData(400, 4)
	eps, err := AutoEpsilon(H, 0.1)
	assert.NoError(err)
	assert.Greater(eps, 0.0)

	m, err := Fit(H, Config{Epsilon: eps, Kappa: 1, L: 0.1})
	assert.NoError(err)
	assert.Equal(1, m.M)
}

func TestAutoEpsilonMonotonicity(t *testing.T) {
	assert := assert.New(t)

	H := circleData(300, 5)
	probe := []float64{0.1, 1, 2, 8, 16, 32, 64, 100, 10000}
	prevM := -1
	for _, eps := range probe {
		mdl, err := Fit(H, Config{Epsilon: eps, Kappa: 1, L: 0.1})
		assert.NoError(err)
		if prevM >= 0 {
			assert.LessOrEqual(mdl.M, prevM)
		}
		prevM = mdl.M
	}
}

func TestFitRejectsBadKappa(t *testing.T) {
	assert := assert.New(t)
	H := circleData(50, 6)
	_, err := Fit(H, Config{Epsilon: 1.0, Kappa: 0, L: 0.1})
	assert.Error(err)
}

func TestSelectMTestsUnshiftedIndexWithNMinus1Default(t *testing.T) {
	assert := assert.New(t)

	mu := []float64{1, 0.9, 0.8, 0.05, 0.01}
	assert.Equal(2, selectM(mu, 0.1))

	noGap := []float64{1, 0.9, 0.8, 0.7, 0.6}
	assert.Equal(len(noGap)-1, selectM(noGap, 0.1))
}

func TestDistancesReducedBasisIsSymmetricZeroDiagonal(t *testing.T) {
	assert := assert.New(t)

	H := circleData(100, 7)
	m, err := Fit(H, Config{Epsilon: 1.0, Kappa: 1, L: 0.1})
	assert.NoError(err)

	D := Distances(m, false)
	rows, cols := D.Dims()
	assert.Equal(rows, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(0, D.At(i, i), 1e-12)
		for j := i + 1; j < rows; j++ {
			assert.InDelta(D.At(i, j), D.At(j, i), 1e-12)
			assert.GreaterOrEqual(D.At(i, j), 0.0)
		}
	}
}

func TestDistancesFullBasisMatchesPointCount(t *testing.T) {
	assert := assert.New(t)

	H := circleData(100, 8)
	m, err := Fit(H, Config{Epsilon: 1.0, Kappa: 1, L: 0.1})
	assert.NoError(err)

	full := Distances(m, true)
	rows, cols := full.Dims()
	gRows, _ := m.G.Dims()
	assert.Equal(gRows, rows)
	assert.Equal(rows, cols)
}

func TestAutoEpsilonRecordsEpsVsMTrace(t *testing.T) {
	assert := assert.New(t)

	H := circleData(200, 9)
	m, err := Fit(H, Config{Kappa: 1, L: 0.1})
	assert.NoError(err)
	assert.NotEmpty(m.EpsVsM)
	for _, pair := range m.EpsVsM {
		assert.Greater(pair[0], 0.0)
	}
}
