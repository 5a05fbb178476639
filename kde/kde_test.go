package kde

import (
	"testing"

	"github.com/plomsys/plom/noise"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// gaussian1D draws an N-point 1-D standard Gaussian training set using
// noise.Gaussian rather than hand-rolled rng calls. The seed argument is
// not used: noise.Gaussian seeds its source from the clock, so the draws
// differ from run to run.
func gaussian1D(n int, seed int64) *mat.Dense {
	g, err := noise.NewGaussian([]float64{0}, mat.NewSymDense(1, []float64{1}))
	if err != nil {
		panic(err)
	}

	data := make([]float64, n)
	for i := range data {
		data[i] = g.Sample().AtVec(0)
	}
	return mat.NewDense(1, n, data)
}

func TestGradLogQStandardGaussian(t *testing.T) {
	assert := assert.New(t)

	H := gaussian1D(2000, 42)
	p, err := NewParams(2000, 1, 1.0)
	assert.NoError(err)

	U := mat.NewDense(1, 5, []float64{-2, -1, 0, 1, 2})
	grad, err := GradLogQ(H, U, p)
	assert.NoError(err)

	want := []float64{2, 1, 0, -1, -2}
	for l, w := range want {
		assert.InDelta(w, grad.At(0, l), 0.2)
	}
}

func TestGradLogQFiniteAtTrainingPoints(t *testing.T) {
	assert := assert.New(t)

	H := gaussian1D(500, 7)
	p, err := NewParams(500, 1, 1.0)
	assert.NoError(err)

	grad, err := GradLogQ(H, H, p)
	assert.NoError(err)

	_, m := grad.Dims()
	for l := 0; l < m; l++ {
		v := grad.At(0, l)
		assert.False(isNonFinite(v))
	}
}

func isNonFinite(v float64) bool {
	return v != v || v > 1e300 || v < -1e300
}

func TestNewParamsRejectsSmallN(t *testing.T) {
	assert := assert.New(t)
	_, err := NewParams(1, 1, 1.0)
	assert.Error(err)
}
