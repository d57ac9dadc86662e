// Package theta holds the parameter-dependent side of an affine reduced
// model: the parameter vector, the theta coefficient functions of the
// affine decomposition and the admissible parameter ranges.
//
//	A(mu) = sum_q thetaA_q(mu) A_q
//	F(mu) = sum_q thetaF_q(mu) F_q
//	s_n(mu) = sum_q thetaL_{n,q}(mu) L_{n,q}
package theta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CK6170/rbeval-go/matrix"
)

var (
	// ErrParameterDimension indicates a parameter vector of the wrong length.
	ErrParameterDimension = errors.New("theta: parameter dimension mismatch")

	// ErrParameterBounds indicates a parameter outside its admissible range.
	ErrParameterBounds = errors.New("theta: parameter out of range")

	// ErrNoParameters indicates that no current parameter has been set.
	ErrNoParameters = errors.New("theta: current parameters not set")
)

// Parameters is an ordered parameter vector mu.
type Parameters []float64

// Clone returns an independent copy.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	c := make(Parameters, len(p))
	copy(c, p)
	return c
}

// String renders p as a comma separated list with round-trip precision.
func (p Parameters) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = matrix.FormatFloat(v)
	}
	return strings.Join(parts, ",")
}

// ParseParameters parses the String form. Whitespace around entries is
// ignored; the empty string yields an empty vector.
func ParseParameters(s string) (Parameters, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Parameters{}, nil
	}
	fields := strings.Split(s, ",")
	p := make(Parameters, len(fields))
	for i, f := range fields {
		v, err := matrix.ParseFloat(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		p[i] = v
	}
	return p, nil
}

// Expansion supplies the theta coefficients of the affine decomposition.
// Implementations must be pure functions of mu.
type Expansion interface {
	IsInitialized() bool
	NumA() int
	NumF() int
	NumOutputs() int
	NumOutputTerms(n int) int
	EvalA(q int, mu Parameters) float64
	EvalF(q int, mu Parameters) float64
	EvalOutput(n, q int, mu Parameters) float64
}

// Func is a single theta coefficient function.
type Func func(mu Parameters) float64

// Funcs is an Expansion backed by Go closures.
type Funcs struct {
	A       []Func
	F       []Func
	Outputs [][]Func
}

func (f *Funcs) IsInitialized() bool {
	if f == nil || len(f.A) == 0 || len(f.F) == 0 {
		return false
	}
	for _, fn := range f.A {
		if fn == nil {
			return false
		}
	}
	for _, fn := range f.F {
		if fn == nil {
			return false
		}
	}
	for _, out := range f.Outputs {
		if len(out) == 0 {
			return false
		}
		for _, fn := range out {
			if fn == nil {
				return false
			}
		}
	}
	return true
}

func (f *Funcs) NumA() int                { return len(f.A) }
func (f *Funcs) NumF() int                { return len(f.F) }
func (f *Funcs) NumOutputs() int          { return len(f.Outputs) }
func (f *Funcs) NumOutputTerms(n int) int { return len(f.Outputs[n]) }

func (f *Funcs) EvalA(q int, mu Parameters) float64 { return f.A[q](mu) }
func (f *Funcs) EvalF(q int, mu Parameters) float64 { return f.F[q](mu) }
func (f *Funcs) EvalOutput(n, q int, mu Parameters) float64 {
	return f.Outputs[n][q](mu)
}

// Constant returns a Func that ignores mu.
func Constant(c float64) Func {
	return func(Parameters) float64 { return c }
}

// Component returns a Func selecting mu[k].
func Component(k int) Func {
	return func(mu Parameters) float64 { return mu[k] }
}
