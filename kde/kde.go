// Package kde implements C5: the gradient of the log-density of a
// Gaussian kernel-density estimate over the training data, evaluated at
// arbitrary query points.
package kde

import (
	"fmt"
	"math"

	"github.com/plomsys/plom/errs"
	"gonum.org/v1/gonum/mat"
)

// Params holds the Silverman bandwidth (s) and its ISDE-stationary
// companion (sHat) for a training set of size N in nu dimensions.
type Params struct {
	N    int
	Nu   int
	S    float64
	SHat float64
}

// NewParams computes the Silverman rule-of-thumb bandwidth scaled by beta,
// and its companion sHat = s/sqrt(s^2 + (N-1)/N).
func NewParams(n, nu int, beta float64) (*Params, error) {
	if n < 2 || nu < 1 {
		return nil, &errs.NumericalError{Stage: "kde.NewParams", Err: fmt.Errorf("invalid N=%d, nu=%d", n, nu)}
	}
	if beta <= 0 {
		beta = 1
	}

	s := math.Pow(4.0/(float64(n)*(2.0+float64(nu))), 1.0/(float64(nu)+4.0)) * beta
	sHat := s / math.Sqrt(s*s+(float64(n)-1)/float64(n))

	return &Params{N: n, Nu: nu, S: s, SHat: sHat}, nil
}

// GradLogQ evaluates grad log q(u) at every column of U (nu x M), where q
// is the Gaussian KDE over the training set Htrain (nu x N). It returns a
// nu x M matrix.
func GradLogQ(Htrain, U *mat.Dense, p *Params) (*mat.Dense, error) {
	nu, n := Htrain.Dims()
	if nu != p.Nu || n != p.N {
		return nil, &errs.ShapeError{Stage: "kde.GradLogQ", Want: [2]int{p.Nu, p.N}, Got: [2]int{nu, n}}
	}
	uNu, m := U.Dims()
	if uNu != nu {
		return nil, &errs.ShapeError{Stage: "kde.GradLogQ", Want: [2]int{nu, m}, Got: [2]int{uNu, m}}
	}

	ratio := p.SHat / p.S
	sHat2 := p.SHat * p.SHat

	grad := mat.NewDense(nu, m, nil)

	exponent := make([]float64, n)

	for l := 0; l < m; l++ {
		maxExp := math.Inf(-1)
		for k := 0; k < n; k++ {
			var sqNorm float64
			for d := 0; d < nu; d++ {
				rd := ratio*Htrain.At(d, k) - U.At(d, l)
				sqNorm += rd * rd
			}
			e := -sqNorm / (2 * sHat2)
			exponent[k] = e
			if e > maxExp {
				maxExp = e
			}
		}

		var qSum float64
		gradSum := make([]float64, nu)
		for k := 0; k < n; k++ {
			w := math.Exp(exponent[k] - maxExp)
			qSum += w
			for d := 0; d < nu; d++ {
				rd := ratio*Htrain.At(d, k) - U.At(d, l)
				gradSum[d] += rd * w
			}
		}

		if qSum == 0 {
			return nil, &errs.NumericalError{Stage: "kde.GradLogQ", Err: fmt.Errorf("density underflowed to zero at query column %d", l)}
		}

		for d := 0; d < nu; d++ {
			grad.Set(d, l, gradSum[d]/(sHat2*qSum))
		}
	}

	return grad, nil
}
