package theta

import (
	"fmt"
	"math"
)

// Range is the admissible interval of one named parameter.
type Range struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Parametrized tracks the parameter domain and the current parameter. The
// zero value has no ranges, in which case any finite vector is accepted.
type Parametrized struct {
	ranges  []Range
	current Parameters
}

// SetRanges replaces the parameter domain and forgets the current parameter.
func (p *Parametrized) SetRanges(r []Range) {
	p.ranges = append([]Range(nil), r...)
	p.current = nil
}

// Ranges returns a copy of the parameter domain.
func (p *Parametrized) Ranges() []Range {
	return append([]Range(nil), p.ranges...)
}

// NumParameters returns the number of ranged parameters.
func (p *Parametrized) NumParameters() int { return len(p.ranges) }

// Validate checks mu against the domain without storing it.
func (p *Parametrized) Validate(mu Parameters) error {
	if len(p.ranges) > 0 && len(mu) != len(p.ranges) {
		return fmt.Errorf("%w: got %d, want %d", ErrParameterDimension, len(mu), len(p.ranges))
	}
	for i, v := range mu {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %d is %v", ErrParameterBounds, i, v)
		}
		if len(p.ranges) == 0 {
			continue
		}
		r := p.ranges[i]
		if v < r.Min || v > r.Max {
			return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrParameterBounds, r.Name, v, r.Min, r.Max)
		}
	}
	return nil
}

// SetCurrent validates and stores a copy of mu.
func (p *Parametrized) SetCurrent(mu Parameters) error {
	if err := p.Validate(mu); err != nil {
		return err
	}
	p.current = mu.Clone()
	if p.current == nil {
		p.current = Parameters{}
	}
	return nil
}

// Current returns the current parameter, or ErrNoParameters.
func (p *Parametrized) Current() (Parameters, error) {
	if p.current == nil {
		return nil, ErrNoParameters
	}
	return p.current, nil
}
