// Package project implements C4: the reduction matrix a = g(gᵀg)⁻¹ tying
// the DMAPS basis g to the PCA-whitened data H, and its inverse.
package project

import (
	"fmt"
	"math"

	"github.com/plomsys/plom/errs"
	"gonum.org/v1/gonum/mat"
)

// Reduction holds the reduction matrix a and the basis g it was derived
// from.
type Reduction struct {
	G *mat.Dense // N x m
	A *mat.Dense // N x m
}

// Fit solves the m x m SPD system (gᵀg) aᵀ = gᵀ for a = g(gᵀg)⁻¹.
func Fit(g *mat.Dense) (*Reduction, error) {
	N, m := g.Dims()
	if N == 0 || m == 0 {
		return nil, &errs.NumericalError{Stage: "project.Fit", Err: fmt.Errorf("empty basis")}
	}

	gtg := new(mat.Dense)
	gtg.Mul(g.T(), g)

	inv := new(mat.Dense)
	if err := inv.Inverse(gtg); err != nil {
		return nil, &errs.NumericalError{Stage: "project.Fit", Err: fmt.Errorf("singular g^T g: %w", err)}
	}

	a := new(mat.Dense)
	a.Mul(g, inv)

	return &Reduction{G: mat.DenseCopyOf(g), A: a}, nil
}

// Project computes Z0 = H^T * a (nu x m) from the whitened data H (N x nu).
func (r *Reduction) Project(H *mat.Dense) (*mat.Dense, error) {
	N, _ := r.A.Dims()
	hn, _ := H.Dims()
	if hn != N {
		return nil, &errs.ShapeError{Stage: "project.Project", Want: [2]int{N, 0}, Got: [2]int{hn, 0}}
	}

	Z := new(mat.Dense)
	Z.Mul(H.T(), r.A)
	return Z, nil
}

// Invert maps Z (nu x m) back to H-space: H~ = g * Z^T (N x nu).
func (r *Reduction) Invert(Z *mat.Dense) *mat.Dense {
	H := new(mat.Dense)
	H.Mul(r.G, Z.T())
	return H
}

// ReconstructionError returns the relative Frobenius-norm reconstruction
// error ||g*Z0^T - H||_F / ||H||_F, the invariant-check baseline that seeds
// RMSE reporting.
func ReconstructionError(r *Reduction, H, Z0 *mat.Dense) float64 {
	recon := r.Invert(Z0)

	rows, cols := H.Dims()
	var num, den float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			diff := recon.At(i, j) - H.At(i, j)
			num += diff * diff
			den += H.At(i, j) * H.At(i, j)
		}
	}
	if den == 0 {
		return 0
	}
	return math.Sqrt(num / den)
}
