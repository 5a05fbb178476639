package main

import (
	"image/color"
	"strings"

	"github.com/plomsys/plom/plom"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// writeDiagnosticPlot saves the DMAPS eigenvalue spectrum to path, and, when
// the latent space has at least two dimensions, a second PNG (path with a
// "_latent" suffix before the extension) scattering Z0's first two
// coordinates. Generalizes sim/plot.go's single-plot-per-file scatter shape
// rather than attempting a multi-pane layout.
func writeDiagnosticPlot(o *plom.Orchestrator, path string) error {
	if o.DMAPS == nil {
		return &missingDMAPSError{}
	}

	spec, err := spectrumPlot(o.DMAPS.Eigenvalues)
	if err != nil {
		return err
	}
	if err := spec.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return err
	}

	if o.Z0 != nil {
		_, m := o.Z0.Dims()
		if m >= 2 {
			latent, err := latentScatterPlot(o.Z0)
			if err != nil {
				return err
			}
			if err := latent.Save(8*vg.Inch, 6*vg.Inch, withSuffix(path, "_latent")); err != nil {
				return err
			}
		}
	}

	return nil
}

type missingDMAPSError struct{}

func (e *missingDMAPSError) Error() string {
	return "cmd/plom: diagnostic plot requires a DMAPS model (run the full or dmaps pipeline first)"
}

func spectrumPlot(eigenvalues []float64) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = "DMAPS eigenvalue spectrum"
	p.X.Label.Text = "index"
	p.Y.Label.Text = "mu"

	pts := make(plotter.XYs, len(eigenvalues))
	for i, v := range eigenvalues {
		pts[i].X = float64(i)
		pts[i].Y = v
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Color = color.RGBA{R: 200, A: 255}

	p.Add(line)
	return p, nil
}

func latentScatterPlot(Z0 *mat.Dense) (*plot.Plot, error) {
	p, err := plot.New()
	if err != nil {
		return nil, err
	}
	p.Title.Text = "Latent coordinates Z0[:, 0:2]"
	p.X.Label.Text = "z1"
	p.Y.Label.Text = "z2"

	rows, _ := Z0.Dims()
	pts := make(plotter.XYs, rows)
	for i := 0; i < rows; i++ {
		pts[i].X = Z0.At(i, 0)
		pts[i].Y = Z0.At(i, 1)
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	scatter.GlyphStyle.Color = color.RGBA{B: 200, A: 200}
	scatter.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(scatter)
	return p, nil
}

func withSuffix(path, suffix string) string {
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		return path[:idx] + suffix + path[idx:]
	}
	return path + suffix
}
