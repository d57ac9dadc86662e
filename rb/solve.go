package rb

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/CK6170/rbeval-go/matrix"
	"github.com/CK6170/rbeval-go/theta"
)

// Result is a copy of the online state after one Solve.
type Result struct {
	Params       theta.Parameters `json:"params"`
	N            int              `json:"n"`
	Bound        float64          `json:"bound"`
	Solution     []float64        `json:"solution"`
	Outputs      []float64        `json:"outputs"`
	OutputBounds []float64        `json:"outputBounds"`
}

// Solve performs the online solve with the first n basis functions at the
// current parameter and returns the absolute error bound of the reduced
// solution. With n == 0 the solution is the zero vector and the bound comes
// from the forcing terms alone.
//
// Solution, OutputValues and OutputBounds are overwritten on success and left
// untouched on failure. When EvaluateErrorBound is false the returned bound
// and the output bounds are zero.
func (e *Evaluation) Solve(n int) (float64, error) {
	exp, err := e.checkExpansion()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > len(e.basis) || n > e.nMax {
		return 0, fmt.Errorf("%w: N=%d with %d basis functions", ErrInvalidArgument, n, len(e.basis))
	}
	mu, err := e.Current()
	if err != nil {
		return 0, err
	}

	u := matrix.NewVector(n)
	if n > 0 {
		a := mat.NewDense(n, n, nil)
		for q := 0; q < e.qa; q++ {
			e.Aq[q].AddScaledBlock(a, exp.EvalA(q, mu), n)
		}
		f := mat.NewVecDense(n, nil)
		for q := 0; q < e.qf; q++ {
			th := exp.EvalF(q, mu)
			for i := 0; i < n; i++ {
				f.SetVec(i, f.AtVec(i)+th*e.Fq[q].Values[i])
			}
		}
		x, err := matrix.SolveLU(a, f)
		if err != nil {
			return 0, fmt.Errorf("%w: N=%d mu=%s: %w", ErrSingularSystem, n, mu, err)
		}
		copy(u.Values, x.RawVector().Data)
	}

	outputs := make([]float64, len(e.ql))
	for k := range e.ql {
		for q := 0; q < e.ql[k]; q++ {
			outputs[k] += exp.EvalOutput(k, q, mu) * e.Outputs[k][q].Dot(u.Values, n)
		}
	}

	bound := 0.0
	outputBounds := make([]float64, len(e.ql))
	if e.EvaluateErrorBound {
		eps, err := e.residualDualNorm(exp, mu, u.Values, n)
		if err != nil {
			return 0, err
		}
		denom, err := e.policy.ScalingDenom(e.policy.StabilityLowerBound(mu))
		if err != nil {
			return 0, fmt.Errorf("mu=%s: %w", mu, err)
		}
		bound = eps / denom
		for k := range outputBounds {
			dual, err := e.outputDualNorm(exp, k, mu)
			if err != nil {
				return 0, err
			}
			outputBounds[k] = e.policy.OutputBound(bound, dual)
		}
	}

	e.Solution = u
	e.OutputValues = outputs
	e.OutputBounds = outputBounds
	e.logger.Debug("rb solve", "n", n, "mu", mu.String(), "bound", bound)
	return bound, nil
}

// Result copies the current online state. bound is the value returned by
// the Solve that produced it.
func (e *Evaluation) Result(bound float64) Result {
	mu, _ := e.Current()
	return Result{
		Params:       mu.Clone(),
		N:            e.Solution.Length,
		Bound:        bound,
		Solution:     append([]float64(nil), e.Solution.Values...),
		Outputs:      append([]float64(nil), e.OutputValues...),
		OutputBounds: append([]float64(nil), e.OutputBounds...),
	}
}

// SolveAt sets the current parameter, solves with n basis functions and
// returns a copy of the result.
func (e *Evaluation) SolveAt(mu theta.Parameters, n int) (Result, error) {
	if err := e.SetCurrent(mu); err != nil {
		return Result{}, err
	}
	bound, err := e.Solve(n)
	if err != nil {
		return Result{}, err
	}
	return e.Result(bound), nil
}

// SolutionNorm returns the Euclidean norm of the reduced coefficient vector.
func (e *Evaluation) SolutionNorm() float64 {
	return e.Solution.Norm()
}

// SolutionXNorm returns sqrt(u^T G u), the natural norm of the reduced
// solution, using the stored inner-product matrix G.
func (e *Evaluation) SolutionXNorm() (float64, error) {
	n := e.Solution.Length
	if !e.ComputeInnerProduct || e.InnerProduct == nil || e.InnerProduct.Rows < n {
		return 0, fmt.Errorf("%w: inner-product matrix not available for N=%d", ErrInvalidArgument, n)
	}
	return clampedSqrt("solution norm", e.InnerProduct.QuadForm(e.Solution.Values, n), 0)
}

// ErrorBoundHistory solves for N = 0..nMax at the current parameter and
// returns the bound of each. The online state afterwards is that of N = nMax.
func (e *Evaluation) ErrorBoundHistory(nMax int) ([]float64, error) {
	if nMax < 0 {
		return nil, fmt.Errorf("%w: N=%d", ErrInvalidArgument, nMax)
	}
	saved := e.EvaluateErrorBound
	e.EvaluateErrorBound = true
	defer func() { e.EvaluateErrorBound = saved }()

	bounds := make([]float64, 0, nMax+1)
	for n := 0; n <= nMax; n++ {
		b, err := e.Solve(n)
		if err != nil {
			return bounds, fmt.Errorf("N=%d: %w", n, err)
		}
		bounds = append(bounds, b)
	}
	return bounds, nil
}

// SweepResult is one evaluated point of a parameter sweep.
type SweepResult struct {
	Index int `json:"index"`
	Result
}

// Sweep evaluates every parameter of params with n basis functions and
// hands each result to fn. The context is checked between points; a single
// solve is never interrupted. The first error stops the sweep.
func (e *Evaluation) Sweep(ctx context.Context, params []theta.Parameters, n int, fn func(SweepResult) error) error {
	for i, mu := range params {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := e.SolveAt(mu, n)
		if err != nil {
			return fmt.Errorf("sweep point %d: %w", i, err)
		}
		if err := fn(SweepResult{Index: i, Result: res}); err != nil {
			return err
		}
	}
	return nil
}
