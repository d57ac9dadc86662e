package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a dense system cannot be solved reliably.
var ErrSingular = errors.New("matrix: singular or ill-conditioned system")

// SolveLU solves a x = b with partial-pivoting LU. Systems whose condition
// estimate exceeds mat.ConditionTolerance, or whose solution is not finite,
// are rejected with an error wrapping ErrSingular.
func SolveLU(a *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	r, c := a.Dims()
	if r != c || r != b.Len() {
		return nil, fmt.Errorf("matrix: solve dimension mismatch %dx%d vs %d", r, c, b.Len())
	}
	var lu mat.LU
	lu.Factorize(a)
	if cond := lu.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > mat.ConditionTolerance {
		return nil, fmt.Errorf("%w: %w", ErrSingular, mat.Condition(cond))
	}
	x := mat.NewVecDense(r, nil)
	if err := lu.SolveVecTo(x, false, b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSingular, err)
	}
	for i := 0; i < r; i++ {
		if v := x.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite solution entry %d", ErrSingular, i)
		}
	}
	return x, nil
}
