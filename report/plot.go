// Package report renders convergence data of a reduced model.
package report

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("report: no data")

// Series is one named curve, Y[i] plotted at N = i.
type Series struct {
	Name string
	Y    []float64
}

// ConvergencePlot plots each series against N on a logarithmic Y axis.
// Non-positive values cannot be drawn on a log scale and are raised to a
// floor below the smallest positive value.
func ConvergencePlot(title string, series ...Series) (*plot.Plot, error) {
	floor := math.Inf(1)
	for _, s := range series {
		for _, y := range s.Y {
			if y > 0 && !math.IsInf(y, 0) {
				floor = math.Min(floor, y)
			}
		}
	}
	if math.IsInf(floor, 1) {
		return nil, ErrNoData
	}
	floor /= 10

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "N"
	p.Y.Label.Text = "error bound"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	for i, s := range series {
		pts := make(plotter.XYs, len(s.Y))
		for n, y := range s.Y {
			if !(y > 0) || math.IsInf(y, 0) {
				y = floor
			}
			pts[n].X, pts[n].Y = float64(n), y
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		if i > 0 {
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line, points)
		p.Legend.Add(s.Name, line, points)
	}
	return p, nil
}

// SaveConvergencePlot writes ConvergencePlot to path; the format follows
// the extension (.png, .svg, .pdf, ...).
func SaveConvergencePlot(path, title string, series ...Series) error {
	p, err := ConvergencePlot(title, series...)
	if err != nil {
		return err
	}
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
