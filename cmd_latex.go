package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/matrix"
)

var (
	latexQ      int
	latexFormat string
	latexRow    bool

	latexCmd = &cobra.Command{
		Use:   "latex",
		Short: "Print reduced operators as LaTeX pmatrix blocks",
		Long: `latex prints the reduced operator A_q and load vector F_q (all terms
when --q is negative) together with the basis Gram matrix, restricted to
the loaded basis functions.`,
		RunE: runLatex,
	}
)

func init() {
	latexCmd.Flags().IntVar(&latexQ, "q", -1, "affine term (default all)")
	latexCmd.Flags().StringVar(&latexFormat, "format", "%0.6g", "printf format of the entries")
	latexCmd.Flags().BoolVar(&latexRow, "row", false, "print load vectors as row vectors")
}

func runLatex(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	e := m.eval
	n := e.NBasisFunctions()
	if latexQ >= e.NumA() && latexQ >= e.NumF() {
		return fmt.Errorf("--q %d: model has Q_a=%d Q_f=%d", latexQ, e.NumA(), e.NumF())
	}
	for q := 0; q < e.NumA(); q++ {
		if latexQ >= 0 && q != latexQ {
			continue
		}
		fmt.Printf("%% A_%d\n%s\n", q, matrix.MatrixToLaTeX(e.Aq[q], n, latexFormat))
	}
	for q := 0; q < e.NumF(); q++ {
		if latexQ >= 0 && q != latexQ {
			continue
		}
		tex := matrix.VectorToLaTeX(e.Fq[q], n, latexFormat)
		if latexRow {
			tex = matrix.VectorToLaTeXTranspose(e.Fq[q], n, latexFormat)
		}
		fmt.Printf("%% F_%d\n%s\n", q, tex)
	}
	if latexQ < 0 && e.InnerProduct != nil {
		fmt.Printf("%% Gram\n%s\n", matrix.MatrixToLaTeX(e.InnerProduct, n, latexFormat))
	}
	return nil
}
