package ui

import (
	"fmt"

	"github.com/CK6170/rbeval-go/rb"
)

// PrintSweepLine prints a single in-place (carriage-return) progress line
// while a parameter sweep runs.
func PrintSweepLine(res rb.SweepResult, total int) {
	line := fmt.Sprintf("\r\033[96m[SWEEP %04d/%04d] mu=(%s) bound=% .6e", res.Index+1, total, res.Params, res.Bound)
	for k, s := range res.Outputs {
		line += fmt.Sprintf("  s%d=% .6e", k, s)
	}
	line += "          \033[0m"
	fmt.Print(line)
}

// PrintResult prints one online solve: the parameter, the error bound and
// each output with its bound. Coefficients are listed only when debug is set.
func PrintResult(res rb.Result, names []string, debug bool) {
	fmt.Print("\033[34m")
	fmt.Printf("mu   ")
	for i, v := range res.Params {
		name := fmt.Sprintf("mu%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		fmt.Printf(" %s=%g", name, v)
	}
	fmt.Printf("\nN     %d\n", res.N)
	fmt.Printf("bound % .12e\n", res.Bound)
	for k, s := range res.Outputs {
		b := 0.0
		if k < len(res.OutputBounds) {
			b = res.OutputBounds[k]
		}
		fmt.Printf("s%-3d  % .12e  +/- %.6e\n", k, s, b)
	}
	fmt.Print("\033[0m")
	if debug {
		for i, u := range res.Solution {
			Debugf(true, "u[%03d] % .17e\n", i, u)
		}
	}
}
