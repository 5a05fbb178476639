package ioformat

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary is the set of pipeline choices and results a run reports, per
// the exit contract: scaling/PCA/DMAPS/sampling choices, epsilon used,
// manifold eigenvalues, manifold dimension, projected shape, sample count,
// and reconstruction RMSE.
type Summary struct {
	JobDesc       string
	ScalingMethod string
	PCAMethod     string
	PCADim        int
	DMAPSEpsilon  float64
	DMAPSKappa    int
	ManifoldDim   int
	Eigenvalues   []float64
	ProjectedRows int
	ProjectedCols int
	NumSamples    int
	ReconstRMSE   float64
	HasRMSE       bool
}

// WriteSummary renders s as a human-readable text report.
func WriteSummary(w io.Writer, s Summary) error {
	p := message.NewPrinter(language.English)

	if _, err := p.Fprintf(w, "PLoM run summary: %s\n", orDefault(s.JobDesc, "(unnamed job)")); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  scaling:         %s\n", s.ScalingMethod); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  pca method:      %s (dim=%d)\n", s.PCAMethod, s.PCADim); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  dmaps epsilon:   %.6g (kappa=%d)\n", s.DMAPSEpsilon, s.DMAPSKappa); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  manifold dim m:  %d\n", s.ManifoldDim); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  eigenvalues:     %v\n", truncate(s.Eigenvalues, 10)); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  projected shape: %d x %d\n", s.ProjectedRows, s.ProjectedCols); err != nil {
		return err
	}
	if _, err := p.Fprintf(w, "  num samples:     %d\n", s.NumSamples); err != nil {
		return err
	}
	if s.HasRMSE {
		if _, err := p.Fprintf(w, "  reconstruction RMSE: %.6g\n", s.ReconstRMSE); err != nil {
			return err
		}
	}
	return nil
}

// WriteEpsVsM renders the epsilon-vs-manifold-dimension probe trace
// recorded by an automatic-bandwidth DMAPS search as a fixed-width table,
// one "epsilon  m" row per probe, in probe order.
func WriteEpsVsM(w io.Writer, epsVsM [][2]float64) error {
	if _, err := fmt.Fprint(w, "Eps         m\n-------------\n"); err != nil {
		return err
	}
	for _, pair := range epsVsM {
		e := fmt.Sprintf("%.2f", pair[0])
		m := fmt.Sprintf("%d", int(pair[1]))
		pad := 12 - len(e)
		if pad < 1 {
			pad = 1
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", e, spaces(pad), m); err != nil {
			return err
		}
	}
	return nil
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(xs []float64, n int) []float64 {
	if len(xs) <= n {
		return xs
	}
	out := make([]float64, n)
	copy(out, xs[:n])
	return out
}
