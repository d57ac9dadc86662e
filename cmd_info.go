package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CK6170/rbeval-go/file"
	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/ui"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the loaded reduced model",
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	m, err := loadModel()
	if err != nil {
		return err
	}
	e := m.eval
	ui.Greenf("%s\n", m.cfg.Name)
	fmt.Printf("basis functions  %d (capacity %d)\n", e.NBasisFunctions(), e.MaxN())
	fmt.Printf("affine terms     Q_a=%d Q_f=%d\n", e.NumA(), e.NumF())
	for n := 0; n < e.NumOutputs(); n++ {
		fmt.Printf("output %-3d       Q_l=%d\n", n, e.NumOutputTerms(n))
	}
	fmt.Printf("bound policy     %s (disabled=%v)\n", m.cfg.Bound.Policy, m.cfg.Bound.Disabled)
	for _, r := range e.Ranges() {
		fmt.Printf("parameter        %s in [%g, %g]\n", r.Name, r.Min, r.Max)
	}
	if n := e.NBasisFunctions(); n > 0 && e.InnerProduct != nil {
		fmt.Printf("cond(Gram)       %.6e\n", e.InnerProduct.Cond(n))
	}
	if _, err := e.BasisFunction(0); err == nil {
		fmt.Printf("basis vectors    loaded from %s\n", m.cfg.Bundle.BasisDir)
	}
	for i, mu := range e.GreedyParams {
		ui.Debugf(m.debug(), "greedy %03d       %s\n", i, mu)
	}
	if !m.debug() {
		return nil
	}
	for q, a := range e.Aq {
		ui.Debugf(true, "|A_%d|_F          %.6e\n", q, a.Norm())
	}
	if e.InnerProduct != nil {
		matrix.PrintMatrix(e.InnerProduct, "GRAM", true)
		_, csv := e.InnerProduct.ToStrings("GRAM", "")
		file.AppendToFile(debugFile(), "GRAM\n"+csv)
	}
	return nil
}
