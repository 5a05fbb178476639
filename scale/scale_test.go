package scale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestFitMinMaxAndInverse(t *testing.T) {
	assert := assert.New(t)

	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	p, err := Fit(X, MinMax)
	assert.NoError(err)
	assert.InDelta(1.0, p.Center[0], 1e-12)
	assert.InDelta(3.0, p.Scale[0], 1e-12)
	// constant column: scale fixed to 1, center = the constant value
	assert.InDelta(1.0, p.Scale[1], 1e-12)

	Y, err := p.Transform(X)
	assert.NoError(err)
	assert.InDelta(0.0, Y.At(0, 0), 1e-12)
	assert.InDelta(1.0, Y.At(3, 0), 1e-12)
	assert.InDelta(0.0, Y.At(0, 1), 1e-12)

	Xr, err := p.Inverse(Y)
	assert.NoError(err)
	for r := 0; r < 4; r++ {
		for c := 0; c < 2; c++ {
			assert.InDelta(X.At(r, c), Xr.At(r, c), 1e-12)
		}
	}
}

func TestFitStandardizeAndInverse(t *testing.T) {
	assert := assert.New(t)

	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	p, err := Fit(X, Standardize)
	assert.NoError(err)
	assert.InDelta(3.0, p.Center[0], 1e-12)

	Y, err := p.Transform(X)
	assert.NoError(err)

	Xr, err := p.Inverse(Y)
	assert.NoError(err)
	for r := 0; r < 5; r++ {
		assert.InDelta(X.At(r, 0), Xr.At(r, 0), 1e-10)
	}
}

func TestFitRejectsNaN(t *testing.T) {
	assert := assert.New(t)

	X := mat.NewDense(2, 1, []float64{1, math.NaN()})
	_, err := Fit(X, MinMax)
	assert.Error(err)
}

func TestTransformShapeMismatch(t *testing.T) {
	assert := assert.New(t)

	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	p, err := Fit(X, MinMax)
	assert.NoError(err)

	bad := mat.NewDense(3, 3, nil)
	_, err = p.Transform(bad)
	assert.Error(err)
}
