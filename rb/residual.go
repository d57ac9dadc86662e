package rb

import (
	"fmt"
	"math"

	"github.com/CK6170/rbeval-go/theta"
)

// cancellationTol is the relative size, against the sum of absolute term
// contributions, below which a negative squared dual norm is treated as
// round-off and clamped to zero.
const cancellationTol = 1e-8

// ResidualDualNorm returns the dual norm of the full-order residual of the
// current Solution restricted to its first n entries, at the current
// parameter. No full-order vector is formed.
func (e *Evaluation) ResidualDualNorm(n int) (float64, error) {
	exp, err := e.checkExpansion()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > e.nMax || n > e.Solution.Length {
		return 0, fmt.Errorf("%w: N=%d, reduced dimension %d, solution length %d",
			ErrInvalidArgument, n, e.nMax, e.Solution.Length)
	}
	mu, err := e.Current()
	if err != nil {
		return 0, err
	}
	return e.residualDualNorm(exp, mu, e.Solution.Values, n)
}

// residualDualNorm evaluates
//
//	|R|^2 = sum_{q,q'} thF_q thF_q' Fq[q,q']
//	      + 2 sum_{q,q',j} thF_q thA_q' u_j FqAq[q,q',j]
//	      + sum_{q,q',i,j} thA_q thA_q' u_i u_j AqAq[q,q',i,j]
//
// over the packed upper triangles (off-diagonal pairs counted twice).
func (e *Evaluation) residualDualNorm(exp theta.Expansion, mu theta.Parameters, u []float64, n int) (float64, error) {
	thF := make([]float64, e.qf)
	for q := range thF {
		thF[q] = exp.EvalF(q, mu)
	}
	thA := make([]float64, e.qa)
	for q := range thA {
		thA[q] = exp.EvalA(q, mu)
	}

	var sum, scale float64
	add := func(v float64) {
		sum += v
		scale += math.Abs(v)
	}

	for q1 := 0; q1 < e.qf; q1++ {
		for q2 := q1; q2 < e.qf; q2++ {
			add(delta(q1, q2) * thF[q1] * thF[q2] * e.FqNorms.At(q1, q2))
		}
	}

	for qf := 0; qf < e.qf; qf++ {
		for qa := 0; qa < e.qa; qa++ {
			s := 0.0
			for j := 0; j < n; j++ {
				s += u[j] * e.FqAqNorms.At(qf, qa, j)
			}
			add(2 * thF[qf] * thA[qa] * s)
		}
	}

	stride := e.AqAqNorms.N
	for q1 := 0; q1 < e.qa; q1++ {
		for q2 := q1; q2 < e.qa; q2++ {
			block := e.AqAqNorms.Block(q1, q2)
			s := 0.0
			for i := 0; i < n; i++ {
				row := block[i*stride : i*stride+n]
				for j, v := range row {
					s += u[i] * u[j] * v
				}
			}
			add(delta(q1, q2) * thA[q1] * thA[q2] * s)
		}
	}

	return clampedSqrt("residual", sum, scale)
}

// OutputDualNorm returns the dual norm of output functional n at mu. It
// depends only on the output representor norms, not on N or the solution.
func (e *Evaluation) OutputDualNorm(n int, mu theta.Parameters) (float64, error) {
	exp, err := e.checkExpansion()
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= len(e.ql) {
		return 0, fmt.Errorf("%w: output %d of %d", ErrOutOfRange, n, len(e.ql))
	}
	if err := e.Validate(mu); err != nil {
		return 0, err
	}
	return e.outputDualNorm(exp, n, mu)
}

func (e *Evaluation) outputDualNorm(exp theta.Expansion, n int, mu theta.Parameters) (float64, error) {
	terms := e.ql[n]
	th := make([]float64, terms)
	for q := range th {
		th[q] = exp.EvalOutput(n, q, mu)
	}
	var sum, scale float64
	for q1 := 0; q1 < terms; q1++ {
		for q2 := q1; q2 < terms; q2++ {
			v := delta(q1, q2) * th[q1] * th[q2] * e.OutputDualNorms[n].At(q1, q2)
			sum += v
			scale += math.Abs(v)
		}
	}
	return clampedSqrt(fmt.Sprintf("output %d", n), sum, scale)
}

func delta(q1, q2 int) float64 {
	if q1 == q2 {
		return 1
	}
	return 2
}

// clampedSqrt returns sqrt(sq), clamping negative values within
// cancellationTol*scale to zero. Anything more negative, or not finite,
// is reported as ErrNegativeResidual.
func clampedSqrt(what string, sq, scale float64) (float64, error) {
	if math.IsNaN(sq) || math.IsInf(sq, 0) {
		return 0, fmt.Errorf("%w: %s squared norm is %v", ErrNegativeResidual, what, sq)
	}
	if sq < 0 {
		if -sq <= cancellationTol*scale {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s squared norm %g (scale %g)", ErrNegativeResidual, what, sq, scale)
	}
	return math.Sqrt(sq), nil
}
