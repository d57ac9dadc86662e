package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/rb"
	"github.com/CK6170/rbeval-go/theta"
	"github.com/CK6170/rbeval-go/ui"
)

var (
	sweepSamples string
	sweepGrid    int
	sweepN       int
	sweepOut     string

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Evaluate a list or grid of parameters and write CSV",
		Long: `sweep solves the reduced model for every parameter in --samples (one
comma separated vector per line, '#' starts a comment) or, with --grid k,
on a uniform k^P grid over the parameter domain. One CSV row per point is
written to --out or stdout: mu..., N, bound, outputs..., output bounds...`,
		RunE: runSweep,
	}
)

func init() {
	sweepCmd.Flags().StringVar(&sweepSamples, "samples", "", "file with one parameter vector per line (- for stdin)")
	sweepCmd.Flags().IntVar(&sweepGrid, "grid", 0, "points per parameter of a uniform grid over the domain")
	sweepCmd.Flags().IntVar(&sweepN, "n", -1, "number of basis functions (default all)")
	sweepCmd.Flags().StringVarP(&sweepOut, "out", "o", "", "CSV output file (default stdout)")
	sweepCmd.MarkFlagsMutuallyExclusive("samples", "grid")
	sweepCmd.MarkFlagsOneRequired("samples", "grid")
}

func runSweep(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	var params []theta.Parameters
	if sweepGrid > 0 {
		params = uniformGrid(m.eval.Ranges(), sweepGrid)
	} else if params, err = readSamples(sweepSamples); err != nil {
		return err
	}
	if len(params) == 0 {
		return fmt.Errorf("no sweep points")
	}

	out := io.Writer(os.Stdout)
	progress := false
	if sweepOut != "" {
		f, err := os.Create(sweepOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
		progress = true
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = m.eval.Sweep(ctx, params, m.resolveN(sweepN), func(res rb.SweepResult) error {
		if progress {
			ui.PrintSweepLine(res, len(params))
		}
		_, err := fmt.Fprintln(w, csvRow(res.Result))
		return err
	})
	if progress {
		fmt.Println()
	}
	if err != nil {
		return err
	}
	if progress {
		ui.Greenf("%d points written to %s\n", len(params), sweepOut)
	}
	return nil
}

func csvRow(res rb.Result) string {
	parts := make([]string, 0, len(res.Params)+2+2*len(res.Outputs))
	for _, v := range res.Params {
		parts = append(parts, matrix.FormatFloat(v))
	}
	parts = append(parts, fmt.Sprint(res.N), matrix.FormatFloat(res.Bound))
	for _, v := range res.Outputs {
		parts = append(parts, matrix.FormatFloat(v))
	}
	for _, v := range res.OutputBounds {
		parts = append(parts, matrix.FormatFloat(v))
	}
	return strings.Join(parts, ",")
}

func readSamples(path string) ([]theta.Parameters, error) {
	in := io.Reader(os.Stdin)
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	var params []theta.Parameters
	sc := bufio.NewScanner(in)
	for line := 1; sc.Scan(); line++ {
		s := sc.Text()
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		mu, err := theta.ParseParameters(s)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		params = append(params, mu)
	}
	return params, sc.Err()
}

// uniformGrid returns the tensor grid with k points per parameter, the
// last parameter varying fastest.
func uniformGrid(ranges []theta.Range, k int) []theta.Parameters {
	axes := make([][]float64, len(ranges))
	for i, r := range ranges {
		if k == 1 || r.Min == r.Max {
			axes[i] = []float64{(r.Min + r.Max) / 2}
			continue
		}
		axes[i] = floats.Span(make([]float64, k), r.Min, r.Max)
	}
	grid := []theta.Parameters{{}}
	for _, axis := range axes {
		next := make([]theta.Parameters, 0, len(grid)*len(axis))
		for _, p := range grid {
			for _, v := range axis {
				mu := append(p.Clone(), v)
				next = append(next, mu)
			}
		}
		grid = next
	}
	return grid
}

