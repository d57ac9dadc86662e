package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/report"
	"github.com/CK6170/rbeval-go/theta"
	"github.com/CK6170/rbeval-go/ui"
)

var (
	plotMu  []string
	plotOut string

	plotCmd = &cobra.Command{
		Use:     "plot",
		Short:   "Plot the error bound against N for one or more parameters",
		Example: "  rbeval plot --mu 0.5,2 --mu 5,0.2 --out bound.png",
		RunE:    runPlot,
	}
)

func init() {
	plotCmd.Flags().StringArrayVar(&plotMu, "mu", nil, "parameter values, comma separated (repeatable; default: greedy parameters)")
	plotCmd.Flags().StringVarP(&plotOut, "out", "o", "convergence.png", "output image (.png, .svg or .pdf)")
}

func runPlot(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	e := m.eval
	var params []theta.Parameters
	for _, s := range plotMu {
		mu, err := parseMu(s)
		if err != nil {
			return err
		}
		params = append(params, mu)
	}
	if len(params) == 0 {
		params = e.GreedyParams
	}

	var series []report.Series
	for _, mu := range params {
		if err := e.SetCurrent(mu); err != nil {
			return err
		}
		hist, err := e.ErrorBoundHistory(e.NBasisFunctions())
		if err != nil {
			return err
		}
		ui.Debugf(m.debug(), "mu=(%s) bound(N=%d)=%.6e\n", mu, len(hist)-1, hist[len(hist)-1])
		series = append(series, report.Series{Name: "mu=(" + mu.String() + ")", Y: hist})
	}
	if len(series) > 0 {
		series = append(series, maxSeries(series))
	}
	title := fmt.Sprintf("%s: error bound", m.cfg.Name)
	if err := report.SaveConvergencePlot(plotOut, title, series...); err != nil {
		return err
	}
	ui.Greenf("plot written to %s\n", plotOut)
	return nil
}

// maxSeries is the pointwise maximum of series over N.
func maxSeries(series []report.Series) report.Series {
	out := report.Series{Name: "max", Y: make([]float64, len(series[0].Y))}
	for i := range out.Y {
		out.Y[i] = math.Inf(-1)
		for _, s := range series {
			if i < len(s.Y) {
				out.Y[i] = math.Max(out.Y[i], s.Y[i])
			}
		}
	}
	return out
}
