package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/internal/demo"
	"github.com/CK6170/rbeval-go/report"
	"github.com/CK6170/rbeval-go/ui"
)

var (
	demoOut  string
	demoOpts = demo.DefaultOptions
	demoPlot bool

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Build a 1-D two-region diffusion model and write its offline data",
		Long: `demo assembles a finite element diffusion problem with conductivities
mu = (k_left, k_right), runs a greedy basis construction on a log-spaced
training grid and writes the offline bundle, the basis vectors and an
rbeval.yaml to --out. The result can be evaluated with

  rbeval --config <out>/rbeval.yaml solve --mu 1,3`,
		RunE: runDemo,
	}
)

func init() {
	demoCmd.Flags().StringVarP(&demoOut, "out", "o", "demo", "output directory")
	demoCmd.Flags().IntVar(&demoOpts.NElems, "nelems", demoOpts.NElems, "number of finite elements (even)")
	demoCmd.Flags().IntVar(&demoOpts.NMax, "nmax", demoOpts.NMax, "maximum number of basis functions")
	demoCmd.Flags().Float64Var(&demoOpts.Tol, "tol", demoOpts.Tol, "greedy stopping tolerance on the relative bound")
	demoCmd.Flags().IntVar(&demoOpts.TrainPerDim, "train", demoOpts.TrainPerDim, "training points per parameter")
	demoCmd.Flags().BoolVar(&demoOpts.Binary, "binary", demoOpts.Binary, "write basis vectors in binary form")
	demoCmd.Flags().BoolVar(&demoPlot, "plot", true, "write greedy.png with the greedy bound history")
}

func runDemo(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = "info"
	}
	logger := ui.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	model, err := demo.Build(ctx, demoOut, demoOpts, logger)
	if err != nil {
		return err
	}
	ui.Greenf("%s: %d basis functions written to %s\n", model.Config.Name, model.Eval.NBasisFunctions(), demoOut)
	if demoPlot && len(model.History) > 0 {
		path := filepath.Join(demoOut, "greedy.png")
		if err := report.SaveConvergencePlot(path, "greedy max bound", report.Series{Name: "max bound", Y: model.History}); err != nil {
			return err
		}
		ui.Greenf("greedy history plotted to %s\n", path)
	}
	return nil
}
