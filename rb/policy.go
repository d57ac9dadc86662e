package rb

import (
	"fmt"
	"math"

	"github.com/CK6170/rbeval-go/models"
	"github.com/CK6170/rbeval-go/theta"
)

// minStability is the smallest stability lower bound accepted by the
// built-in policies.
const minStability = 1e-14

// StabilityFunc returns a lower bound for the coercivity (or inf-sup)
// constant at mu.
type StabilityFunc func(mu theta.Parameters) float64

// ConstantStability returns a StabilityFunc that always yields alpha.
func ConstantStability(alpha float64) StabilityFunc {
	return func(theta.Parameters) float64 { return alpha }
}

// MinThetaStability implements the min-theta lower bound
//
//	alpha_LB(mu) = refAlpha * min_q thetaA_q(mu) / thetaA_q(ref)
//
// valid for coercive problems whose A_q are all positive semi-definite and
// whose thetaA_q are positive on the domain.
func MinThetaStability(exp theta.Expansion, ref theta.Parameters, refAlpha float64) StabilityFunc {
	ref = ref.Clone()
	return func(mu theta.Parameters) float64 {
		ratio := math.Inf(1)
		for q := 0; q < exp.NumA(); q++ {
			den := exp.EvalA(q, ref)
			if den == 0 {
				return math.NaN()
			}
			ratio = math.Min(ratio, exp.EvalA(q, mu)/den)
		}
		return refAlpha * ratio
	}
}

// BoundPolicy turns a residual dual norm into error bounds. Swapping the
// policy changes the bound formula without touching the solve.
type BoundPolicy interface {
	// StabilityLowerBound returns alpha_LB(mu).
	StabilityLowerBound(mu theta.Parameters) float64
	// ScalingDenom returns the denominator of the solution bound
	// eps_N / ScalingDenom(alpha_LB).
	ScalingDenom(alphaLB float64) (float64, error)
	// OutputBound returns the bound of output n given the solution bound and
	// the output dual norm.
	OutputBound(solutionBound, outputDualNorm float64) float64
}

// Policy is a BoundPolicy assembled from functions. Nil fields fall back to
// the energy-norm behaviour: the default stability constant, sqrt(alpha_LB)
// and the product output bound.
type Policy struct {
	Name      string
	Stability StabilityFunc
	Denom     func(alphaLB float64) float64
	Output    func(solutionBound, outputDualNorm float64) float64
}

func (p *Policy) StabilityLowerBound(mu theta.Parameters) float64 {
	if p.Stability == nil {
		return models.DefaultStability
	}
	return p.Stability(mu)
}

// ScalingDenom rejects alpha_LB values that are NaN, infinite or not above
// minStability, and any non-positive or non-finite denominator.
func (p *Policy) ScalingDenom(alphaLB float64) (float64, error) {
	if math.IsNaN(alphaLB) || math.IsInf(alphaLB, 0) || alphaLB <= minStability {
		return 0, fmt.Errorf("%w: alpha_LB=%g (policy %s)", ErrNonPositiveStability, alphaLB, p.Name)
	}
	denom := p.Denom
	if denom == nil {
		denom = math.Sqrt
	}
	d := denom(alphaLB)
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0, fmt.Errorf("%w: denominator %g for alpha_LB=%g (policy %s)", ErrNonPositiveStability, d, alphaLB, p.Name)
	}
	return d, nil
}

func (p *Policy) OutputBound(solutionBound, outputDualNorm float64) float64 {
	if p.Output == nil {
		return productOutputBound(solutionBound, outputDualNorm)
	}
	return p.Output(solutionBound, outputDualNorm)
}

func productOutputBound(b, dual float64) float64 { return b * dual }

// EnergyNorm bounds the energy norm of the error, eps/sqrt(alpha_LB); output
// bounds are the solution bound times the output dual norm.
func EnergyNorm(stab StabilityFunc) *Policy {
	return &Policy{Name: models.ENERGY.String(), Stability: stab, Denom: math.Sqrt, Output: productOutputBound}
}

// XNorm bounds the natural-norm error, eps/alpha_LB.
func XNorm(stab StabilityFunc) *Policy {
	return &Policy{
		Name:      models.XNORM.String(),
		Stability: stab,
		Denom:     func(a float64) float64 { return a },
		Output:    productOutputBound,
	}
}

// Compliant is EnergyNorm with the compliant output bound eps^2/alpha_LB,
// the square of the energy bound, valid when the output functional equals
// the right-hand side.
func Compliant(stab StabilityFunc) *Policy {
	return &Policy{
		Name:      models.COMPLIANT.String(),
		Stability: stab,
		Denom:     math.Sqrt,
		Output:    func(b, _ float64) float64 { return b * b },
	}
}

// DefaultPolicy is the energy-norm policy with the conservative constant
// stability bound.
func DefaultPolicy() BoundPolicy {
	return EnergyNorm(ConstantStability(models.DefaultStability))
}

// PolicyFromConfig builds the policy described by cfg.
func PolicyFromConfig(cfg models.BoundConfig, exp theta.Expansion) (BoundPolicy, error) {
	kind, err := models.ParsePolicyKind(cfg.Policy)
	if err != nil {
		return nil, err
	}
	stab := ConstantStability(cfg.Stability)
	if len(cfg.Reference) > 0 {
		if exp == nil {
			return nil, ErrNoExpansion
		}
		stab = MinThetaStability(exp, theta.Parameters(cfg.Reference), cfg.RefAlpha)
	}
	switch kind {
	case models.XNORM:
		return XNorm(stab), nil
	case models.COMPLIANT:
		return Compliant(stab), nil
	default:
		return EnergyNorm(stab), nil
	}
}
