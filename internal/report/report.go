// Package report writes the training artifacts: a loss-curve plot, a
// predicted-versus-actual parity plot, and a numeric summary of test
// performance.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Summary aggregates test-set statistics.
type Summary struct {
	MSE     float64
	RMSE    float64
	Pearson float64
}

// Summarize computes MSE, RMSE and the Pearson correlation between
// predicted and actual values.
func Summarize(predicted, actual []float64) (Summary, error) {
	if len(predicted) == 0 || len(predicted) != len(actual) {
		return Summary{}, fmt.Errorf("mismatched prediction slices: %d predicted, %d actual", len(predicted), len(actual))
	}
	mse := 0.0
	for i := range predicted {
		diff := predicted[i] - actual[i]
		mse += diff * diff
	}
	mse /= float64(len(predicted))
	return Summary{
		MSE:     mse,
		RMSE:    math.Sqrt(mse),
		Pearson: stat.Correlation(predicted, actual, nil),
	}, nil
}

// WriteLossCurve plots the per-epoch training loss as a line and saves it
// as a PNG.
func WriteLossCurve(path string, losses []float64) error {
	if len(losses) == 0 {
		return fmt.Errorf("no losses to plot")
	}
	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "mean MSE"

	xys := make(plotter.XYs, len(losses))
	for i, l := range losses {
		xys[i] = plotter.XY{X: float64(i), Y: l}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("loss line: %w", err)
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	line.Width = vg.Points(1.2)
	p.Add(line, plotter.NewGrid())

	return save(p, path)
}

// WriteParity plots predicted against actual values with the identity
// diagonal for reference.
func WriteParity(path string, predicted, actual []float64) error {
	if len(predicted) == 0 || len(predicted) != len(actual) {
		return fmt.Errorf("mismatched prediction slices: %d predicted, %d actual", len(predicted), len(actual))
	}
	p := plot.New()
	p.Title.Text = "Free energy of solvation: predicted vs actual"
	p.X.Label.Text = "actual (kcal/mol)"
	p.Y.Label.Text = "predicted (kcal/mol)"

	xys := make(plotter.XYs, len(predicted))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range predicted {
		xys[i] = plotter.XY{X: actual[i], Y: predicted[i]}
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}
	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("parity scatter: %w", err)
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 200}
	scatter.GlyphStyle.Radius = vg.Points(2)

	diagonal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("parity diagonal: %w", err)
	}
	diagonal.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}

	p.Add(scatter, diagonal, plotter.NewGrid())
	p.Legend.Add("molecules", scatter)

	return save(p, path)
}

func save(p *plot.Plot, path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
