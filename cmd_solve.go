package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/internal/results"
	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/ui"
)

var (
	solveMu     string
	solveN      int
	solveRecord bool

	solveCmd = &cobra.Command{
		Use:   "solve",
		Short: "Run one online solve and print outputs with their error bounds",
		Example: `  rbeval solve --mu 1.5,0.3
  rbeval solve --mu 1.5,0.3 --n 4 --record`,
		RunE: runSolve,
	}
)

func init() {
	solveCmd.Flags().StringVar(&solveMu, "mu", "", "parameter values, comma separated")
	solveCmd.Flags().IntVar(&solveN, "n", -1, "number of basis functions (default all)")
	solveCmd.Flags().BoolVar(&solveRecord, "record", false, "save the result to the configured results database")
	_ = solveCmd.MarkFlagRequired("mu")
}

func runSolve(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	mu, err := parseMu(solveMu)
	if err != nil {
		return err
	}
	res, err := m.eval.SolveAt(mu, m.resolveN(solveN))
	if err != nil {
		return err
	}
	ui.PrintResult(res, paramNames(m.eval), m.debug())

	if m.debug() {
		matrix.PrintVector(matrix.NewVectorFrom(res.Solution), "SOLUTION", true)
		matrix.PrintBitsIEEE(matrix.NewVectorFrom(res.Outputs), "OUTPUTS")
		debug := ""
		debug = file.RecordData(debug, matrix.NewVectorFrom(res.Params), "MU", "%.6g")
		debug = file.RecordData(debug, matrix.NewVectorFrom(res.Solution), "SOLUTION", "%.9e")
		debug = file.RecordData(debug, matrix.NewVectorFrom(res.Outputs), "OUTPUTS", "%.9e")
		debug = file.RecordData(debug, matrix.NewVectorFrom(res.OutputBounds), "OUTPUT BOUNDS", "%.6e")
		file.AppendToFile(debugFile(), debug)
	}

	if solveRecord {
		if m.cfg.Results.Path == "" {
			return fmt.Errorf("--record: no results.path configured")
		}
		rs, err := results.NewStore(m.cfg.Results.Path)
		if err != nil {
			return err
		}
		defer rs.Close()
		rec, err := rs.Save(m.cfg.Name, res)
		if err != nil {
			return err
		}
		ui.Greenf("recorded %s\n", rec.ID)
	}
	return nil
}
