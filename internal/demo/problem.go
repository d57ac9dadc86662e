// Package demo builds a small synthetic reduced basis model offline: 1-D
// steady diffusion on (0,1) with two conductivity regions, discretised with
// linear finite elements and homogeneous Dirichlet ends.
//
//	-(k(x) u')' = 1,  k = mu0 on (0, 1/2), mu1 on (1/2, 1)
//
// The compliant output is s(mu) = F(u). The X inner product is the energy
// inner product at mu = (1, 1), so alpha_LB(mu) = min(mu0, mu1) is exact.
package demo

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/CK6170/rbeval-go/theta"
)

// ErrMesh is returned for an unusable element count.
var ErrMesh = errors.New("demo: number of elements must be even and at least 4")

// Parameter range of both conductivities.
const (
	MuMin = 0.1
	MuMax = 10.0
)

// Problem holds the full-order affine operators.
type Problem struct {
	NElems int
	NDofs  int

	A []*mat.SymDense
	F []*mat.VecDense
	L [][]*mat.VecDense
	X *mat.SymDense

	xChol mat.Cholesky
}

// NewProblem assembles the operators on a uniform mesh of nElems elements.
func NewProblem(nElems int) (*Problem, error) {
	if nElems < 4 || nElems%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrMesh, nElems)
	}
	n := nElems - 1
	h := 1.0 / float64(nElems)
	p := &Problem{
		NElems: nElems,
		NDofs:  n,
		A:      []*mat.SymDense{mat.NewSymDense(n, nil), mat.NewSymDense(n, nil)},
		F:      []*mat.VecDense{mat.NewVecDense(n, nil)},
	}
	for el := 0; el < nElems; el++ {
		region := 0
		if el >= nElems/2 {
			region = 1
		}
		a := p.A[region]
		// Element el joins nodes el and el+1; node k is dof k-1.
		i, j := el-1, el
		if i >= 0 {
			a.SetSym(i, i, a.At(i, i)+1/h)
		}
		if j < n {
			a.SetSym(j, j, a.At(j, j)+1/h)
		}
		if i >= 0 && j < n {
			a.SetSym(i, j, a.At(i, j)-1/h)
		}
	}
	for i := 0; i < n; i++ {
		p.F[0].SetVec(i, h)
	}
	p.L = [][]*mat.VecDense{{p.F[0]}}

	p.X = mat.NewSymDense(n, nil)
	p.X.AddSym(p.A[0], p.A[1])
	if ok := p.xChol.Factorize(p.X); !ok {
		return nil, errors.New("demo: inner-product matrix not positive definite")
	}
	return p, nil
}

// Expansion returns theta_A = (mu0, mu1), theta_F = 1 and a single compliant
// output with theta_L = 1.
func (p *Problem) Expansion() *theta.Affine {
	return &theta.Affine{
		A: []theta.Monomial{
			{Coeff: 1, Powers: []float64{1, 0}},
			{Coeff: 1, Powers: []float64{0, 1}},
		},
		F:       []theta.Monomial{{Coeff: 1}},
		Outputs: [][]theta.Monomial{{{Coeff: 1}}},
	}
}

// Ranges returns the parameter domain.
func (p *Problem) Ranges() []theta.Range {
	return []theta.Range{
		{Name: "k_left", Min: MuMin, Max: MuMax},
		{Name: "k_right", Min: MuMin, Max: MuMax},
	}
}

func (p *Problem) operator(mu theta.Parameters) *mat.SymDense {
	a := mat.NewSymDense(p.NDofs, nil)
	for i := 0; i < p.NDofs; i++ {
		for j := i; j < p.NDofs; j++ {
			v := 0.0
			for q, aq := range p.A {
				v += mu[q] * aq.At(i, j)
			}
			a.SetSym(i, j, v)
		}
	}
	return a
}

// TruthSolve solves the full-order problem at mu.
func (p *Problem) TruthSolve(mu theta.Parameters) ([]float64, error) {
	if len(mu) != 2 {
		return nil, fmt.Errorf("%w: got %d, want 2", theta.ErrParameterDimension, len(mu))
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(p.operator(mu)); !ok {
		return nil, fmt.Errorf("demo: operator not positive definite at mu=%s", mu)
	}
	var u mat.VecDense
	if err := chol.SolveVecTo(&u, p.F[0]); err != nil {
		return nil, err
	}
	return append([]float64(nil), u.RawVector().Data...), nil
}

// Output returns the compliant output F(u).
func (p *Problem) Output(u []float64) float64 {
	return floats.Dot(p.F[0].RawVector().Data, u)
}

// EnergyNorm returns sqrt(v^T A(mu) v).
func (p *Problem) EnergyNorm(v []float64, mu theta.Parameters) float64 {
	x := mat.NewVecDense(len(v), v)
	return math.Sqrt(mat.Inner(x, p.operator(mu), x))
}

// XInner returns u^T X v.
func (p *Problem) XInner(u, v []float64) float64 {
	return mat.Inner(mat.NewVecDense(len(u), u), p.X, mat.NewVecDense(len(v), v))
}

// Riesz solves X r = b.
func (p *Problem) Riesz(b *mat.VecDense) ([]float64, error) {
	var r mat.VecDense
	if err := p.xChol.SolveVecTo(&r, b); err != nil {
		return nil, err
	}
	return append([]float64(nil), r.RawVector().Data...), nil
}

// Reconstruct returns sum_i u_i basis_i.
func Reconstruct(basis [][]float64, u []float64) []float64 {
	if len(basis) == 0 {
		return nil
	}
	out := make([]float64, len(basis[0]))
	for i, c := range u {
		floats.AddScaled(out, c, basis[i])
	}
	return out
}
