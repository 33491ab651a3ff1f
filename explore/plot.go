package explore

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// PlotSize is the edge length of saved figures.
var PlotSize = 5 * vg.Inch

// PlotHistogram saves a histogram of values to path. The image format follows
// the file extension (png, svg, pdf).
func PlotHistogram(path string, values []float64, bins int, xLabel string) error {
	if len(values) == 0 {
		return errors.NewDataError("plot histogram", "", 0, errors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = "Distribution of " + xLabel
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		return errors.Wrap(err, "build histogram")
	}
	p.Add(h)
	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return errors.NewArtifactError("plot", "histogram", path, err)
	}
	return nil
}

// PlotParity saves an observed-versus-predicted scatter plot with the y = x
// reference line.
func PlotParity(path string, observed, predicted []float64, title string) error {
	if len(observed) != len(predicted) {
		return errors.NewDimensionError("plot parity", len(observed), len(predicted), 0)
	}
	if len(observed) == 0 {
		return errors.NewDataError("plot parity", "", 0, errors.ErrEmptyData)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Observed"
	p.Y.Label.Text = "Predicted"

	pts := make(plotter.XYs, len(observed))
	lo, hi := observed[0], observed[0]
	for i := range observed {
		pts[i].X, pts[i].Y = observed[i], predicted[i]
		lo = min(lo, observed[i], predicted[i])
		hi = max(hi, observed[i], predicted[i])
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "build scatter")
	}
	diag := plotter.NewFunction(func(x float64) float64 { return x })
	diag.XMin, diag.XMax = lo, hi
	diag.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p.Add(sc, diag, plotter.NewGrid())
	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	if err := p.Save(PlotSize, PlotSize, path); err != nil {
		return errors.NewArtifactError("plot", "parity", path, err)
	}
	return nil
}
