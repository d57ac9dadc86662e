package theta

import (
	"fmt"
	"math"

	"github.com/CK6170/rbeval-go/models"
)

// Monomial is theta(mu) = Coeff * prod_k mu[k]^Powers[k]. Powers shorter than
// mu are padded with zeros.
type Monomial struct {
	Coeff  float64
	Powers []float64
}

// Eval evaluates the monomial at mu.
func (m Monomial) Eval(mu Parameters) float64 {
	v := m.Coeff
	for k, p := range m.Powers {
		if k >= len(mu) {
			if p != 0 {
				return math.NaN()
			}
			continue
		}
		switch p {
		case 0:
		case 1:
			v *= mu[k]
		default:
			v *= math.Pow(mu[k], p)
		}
	}
	return v
}

// Affine is a declarative Expansion built from monomials, so that a stored
// model can be evaluated from configuration alone.
type Affine struct {
	A       []Monomial
	F       []Monomial
	Outputs [][]Monomial
}

func (a *Affine) IsInitialized() bool {
	return a != nil && len(a.A) > 0 && len(a.F) > 0
}

func (a *Affine) NumA() int                { return len(a.A) }
func (a *Affine) NumF() int                { return len(a.F) }
func (a *Affine) NumOutputs() int          { return len(a.Outputs) }
func (a *Affine) NumOutputTerms(n int) int { return len(a.Outputs[n]) }

func (a *Affine) EvalA(q int, mu Parameters) float64 { return a.A[q].Eval(mu) }
func (a *Affine) EvalF(q int, mu Parameters) float64 { return a.F[q].Eval(mu) }
func (a *Affine) EvalOutput(n, q int, mu Parameters) float64 {
	return a.Outputs[n][q].Eval(mu)
}

// FromSpec builds an Affine expansion and the parameter ranges from a config
// section. Powers longer than the parameter list are rejected.
func FromSpec(spec models.ThetaSpec) (*Affine, []Range, error) {
	np := len(spec.Parameters)
	conv := func(kind string, terms []models.TermSpec) ([]Monomial, error) {
		out := make([]Monomial, len(terms))
		for q, t := range terms {
			if len(t.Powers) > np {
				return nil, fmt.Errorf("theta %s[%d]: %d powers for %d parameters: %w",
					kind, q, len(t.Powers), np, ErrParameterDimension)
			}
			out[q] = Monomial{Coeff: t.Coeff, Powers: append([]float64(nil), t.Powers...)}
		}
		return out, nil
	}
	a := &Affine{}
	var err error
	if a.A, err = conv("a", spec.A); err != nil {
		return nil, nil, err
	}
	if a.F, err = conv("f", spec.F); err != nil {
		return nil, nil, err
	}
	for n, terms := range spec.Outputs {
		m, err := conv(fmt.Sprintf("outputs[%d]", n), terms)
		if err != nil {
			return nil, nil, err
		}
		a.Outputs = append(a.Outputs, m)
	}
	ranges := make([]Range, np)
	for i, p := range spec.Parameters {
		ranges[i] = Range{Name: p.Name, Min: p.Min, Max: p.Max}
	}
	return a, ranges, nil
}

// Spec converts a back into its configuration form.
func (a *Affine) Spec(ranges []Range) models.ThetaSpec {
	conv := func(ms []Monomial) []models.TermSpec {
		out := make([]models.TermSpec, len(ms))
		for i, m := range ms {
			out[i] = models.TermSpec{Coeff: m.Coeff, Powers: append([]float64(nil), m.Powers...)}
		}
		return out
	}
	spec := models.ThetaSpec{A: conv(a.A), F: conv(a.F)}
	for _, out := range a.Outputs {
		spec.Outputs = append(spec.Outputs, conv(out))
	}
	for _, r := range ranges {
		spec.Parameters = append(spec.Parameters, models.ParameterSpec{Name: r.Name, Min: r.Min, Max: r.Max})
	}
	return spec
}
