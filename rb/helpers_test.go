package rb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/CK6170/rbeval-go/theta"
)

// A small full-order problem on R^3 with the Euclidean inner product:
// A(mu) = mu*A0 + A1, f = (1,1,1), s(u) = f.u. Its coercivity constant
// exceeds 1 on [0.5, 4].
var (
	testA = []*mat.SymDense{
		mat.NewSymDense(3, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}),
		mat.NewSymDense(3, []float64{2, -1, 0, -1, 2, -1, 0, -1, 2}),
	}
	testF = mat.NewVecDense(3, []float64{1, 1, 1})

	testBasis = [][]float64{{1, 1, 1}, {1, 0, -1}, {0, 1, 0}}
)

func testExpansion() *theta.Funcs {
	return &theta.Funcs{
		A:       []theta.Func{theta.Component(0), theta.Constant(1)},
		F:       []theta.Func{theta.Constant(1)},
		Outputs: [][]theta.Func{{theta.Constant(1)}},
	}
}

// newTestModel projects the full-order problem onto basis and fills every
// reduced structure the way an offline stage would.
func newTestModel(t *testing.T, basis ...[]float64) *Evaluation {
	t.Helper()
	e := New(WithExpansion(testExpansion()), WithBoundPolicy(EnergyNorm(ConstantStability(1))))
	e.SetRanges([]theta.Range{{Name: "k", Min: 0.5, Max: 4}})
	e.ComputeInnerProduct = true
	require.NoError(t, e.Resize(0))
	for i, v := range basis {
		_, err := e.AddBasisFunction(v, theta.Parameters{float64(i + 1)})
		require.NoError(t, err)
	}

	n := len(basis)
	xi := make([]*mat.VecDense, n)
	axi := make([][]*mat.VecDense, len(testA))
	for i, v := range basis {
		xi[i] = mat.NewVecDense(3, append([]float64(nil), v...))
	}
	for q, a := range testA {
		axi[q] = make([]*mat.VecDense, n)
		for i := range xi {
			axi[q][i] = mat.NewVecDense(3, nil)
			axi[q][i].MulVec(a, xi[i])
		}
	}

	ff := mat.Dot(testF, testF)
	e.FqNorms.Set(0, 0, ff)
	e.OutputDualNorms[0].Set(0, 0, ff)
	for i := 0; i < n; i++ {
		e.Fq[0].Values[i] = mat.Dot(testF, xi[i])
		e.Outputs[0][0].Values[i] = mat.Dot(testF, xi[i])
		for j := 0; j < n; j++ {
			e.InnerProduct.Values[i][j] = mat.Dot(xi[i], xi[j])
		}
		for q := range testA {
			e.FqAqNorms.Set(0, q, i, -mat.Dot(testF, axi[q][i]))
			rep := mat.NewVecDense(3, nil)
			rep.ScaleVec(-1, axi[q][i])
			e.AqRepresentors[i][q] = rep.RawVector().Data
			for j := 0; j < n; j++ {
				e.Aq[q].Values[i][j] = mat.Dot(xi[i], axi[q][j])
			}
		}
	}
	for q1 := range testA {
		for q2 := q1; q2 < len(testA); q2++ {
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					e.AqAqNorms.Set(q1, q2, i, j, mat.Dot(axi[q1][i], axi[q2][j]))
				}
			}
		}
	}
	return e
}

func testOperator(mu float64) *mat.SymDense {
	a := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			a.SetSym(i, j, mu*testA[0].At(i, j)+testA[1].At(i, j))
		}
	}
	return a
}

func truthSolve(t *testing.T, mu float64) *mat.VecDense {
	t.Helper()
	var u mat.VecDense
	require.NoError(t, u.SolveVec(testOperator(mu), testF))
	return &u
}

func reconstruct(basis [][]float64, u []float64) *mat.VecDense {
	v := mat.NewVecDense(3, nil)
	for i, c := range u {
		v.AddScaledVec(v, c, mat.NewVecDense(3, append([]float64(nil), basis[i]...)))
	}
	return v
}

// fullResidualNorm is ||f - A(mu) V u|| computed in the full space.
func fullResidualNorm(mu float64, basis [][]float64, u []float64) float64 {
	var r mat.VecDense
	r.MulVec(testOperator(mu), reconstruct(basis, u))
	r.SubVec(testF, &r)
	return mat.Norm(&r, 2)
}

func energyNorm(mu float64, v *mat.VecDense) float64 {
	return math.Sqrt(mat.Inner(v, testOperator(mu), v))
}
