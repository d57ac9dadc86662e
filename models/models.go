// Package models defines the YAML/JSON-serialized configuration structures
// shared between the rbeval CLI and the online evaluation server.
//
// These types mirror the shape of `rbeval.yaml` and the declarative theta
// expansion that lets a stored reduced model be evaluated without Go code.
package models

import (
	"fmt"
	"strings"
)

// Defaults applied by Config.ApplyDefaults.
const (
	// DefaultBundleDir is the directory name used by the offline writer when
	// none is configured.
	DefaultBundleDir = "offline_data"

	// DefaultAddr is the HTTP listen address of the online server.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultStability is the conservative stability lower bound used when
	// neither a constant nor a min-theta reference is configured.
	DefaultStability = 1.0
)

// PolicyKind selects how the residual dual norm is turned into error bounds.
type PolicyKind int

const (
	// ENERGY bounds the energy norm: denominator sqrt(alpha_LB), output bound
	// = solution bound × output dual norm.
	ENERGY PolicyKind = iota
	// XNORM bounds the natural (X) norm: denominator alpha_LB.
	XNORM
	// COMPLIANT bounds compliant outputs: output bound = eps^2/alpha_LB.
	COMPLIANT
)

// String implements fmt.Stringer.
func (p PolicyKind) String() string {
	switch p {
	case ENERGY:
		return "energy"
	case XNORM:
		return "xnorm"
	case COMPLIANT:
		return "compliant"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(p))
	}
}

// ParsePolicyKind is the inverse of PolicyKind.String. The empty string maps
// to ENERGY.
func ParsePolicyKind(s string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "energy":
		return ENERGY, nil
	case "xnorm", "x":
		return XNORM, nil
	case "compliant":
		return COMPLIANT, nil
	default:
		return ENERGY, fmt.Errorf("unknown bound policy %q", s)
	}
}

// Config is the primary configuration model (the typical `rbeval.yaml`).
type Config struct {
	// Name identifies the reduced model in logs, the result store and the
	// server's model list.
	Name string `json:"name" yaml:"name"`

	Bundle  BundleConfig  `json:"bundle" yaml:"bundle"`
	Theta   ThetaSpec     `json:"theta" yaml:"theta"`
	Bound   BoundConfig   `json:"bound" yaml:"bound"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	Results ResultsConfig `json:"results" yaml:"results"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	DEBUG    bool   `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// BundleConfig locates the offline data on disk.
type BundleConfig struct {
	Dir string `json:"dir" yaml:"dir"`
	// BasisDir holds the full-order basis vectors. Empty means the basis is
	// not shipped (online-only deployment).
	BasisDir    string `json:"basis_dir,omitempty" yaml:"basis_dir,omitempty"`
	BinaryBasis bool   `json:"binary_basis" yaml:"binary_basis"`
	// NDofs is the full-order dimension, used to validate basis vectors.
	NDofs int `json:"ndofs,omitempty" yaml:"ndofs,omitempty"`
}

// ThetaSpec describes an affine expansion as sums of monomials in the
// parameters: theta(mu) = coeff * prod_k mu_k^powers[k].
type ThetaSpec struct {
	Parameters []ParameterSpec `json:"parameters" yaml:"parameters"`
	A          []TermSpec      `json:"a" yaml:"a"`
	F          []TermSpec      `json:"f" yaml:"f"`
	Outputs    [][]TermSpec    `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// ParameterSpec names one parameter and its admissible range.
type ParameterSpec struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// TermSpec is one monomial coefficient function. Missing powers are zero.
type TermSpec struct {
	Coeff  float64   `json:"coeff" yaml:"coeff"`
	Powers []float64 `json:"powers,omitempty" yaml:"powers,omitempty"`
}

// BoundConfig selects the bound policy and the stability lower bound.
//
// When Reference is set the min-theta bound
// alpha_LB(mu) = RefAlpha * min_q theta_q(mu)/theta_q(Reference) is used,
// otherwise the constant Stability.
type BoundConfig struct {
	Policy    string    `json:"policy" yaml:"policy"`
	Stability float64   `json:"stability,omitempty" yaml:"stability,omitempty"`
	Reference []float64 `json:"reference,omitempty" yaml:"reference,omitempty"`
	RefAlpha  float64   `json:"ref_alpha,omitempty" yaml:"ref_alpha,omitempty"`
	Disabled  bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// ServerConfig holds the online HTTP service settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	// MaxSweepPoints limits a single /api/sweep request.
	MaxSweepPoints int `json:"max_sweep_points,omitempty" yaml:"max_sweep_points,omitempty"`
}

// ResultsConfig points at the SQLite database that records online solves.
// Empty Path disables recording.
type ResultsConfig struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "rb-model"
	}
	if c.Bundle.Dir == "" {
		c.Bundle.Dir = DefaultBundleDir
	}
	if c.Bound.Stability == 0 && len(c.Bound.Reference) == 0 {
		c.Bound.Stability = DefaultStability
	}
	if len(c.Bound.Reference) > 0 && c.Bound.RefAlpha == 0 {
		c.Bound.RefAlpha = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MaxSweepPoints <= 0 {
		c.Server.MaxSweepPoints = 10000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
		if c.DEBUG {
			c.LogLevel = "debug"
		}
	}
}

// Validate checks the parts of the config that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Theta.A) == 0 {
		return fmt.Errorf("theta: no bilinear-form terms")
	}
	if len(c.Theta.F) == 0 {
		return fmt.Errorf("theta: no right-hand-side terms")
	}
	for i, out := range c.Theta.Outputs {
		if len(out) == 0 {
			return fmt.Errorf("theta: output %d has no terms", i)
		}
	}
	for i, p := range c.Theta.Parameters {
		if p.Min > p.Max {
			return fmt.Errorf("theta: parameter %d (%s): min %g > max %g", i, p.Name, p.Min, p.Max)
		}
	}
	if _, err := ParsePolicyKind(c.Bound.Policy); err != nil {
		return err
	}
	if len(c.Bound.Reference) > 0 && len(c.Bound.Reference) != len(c.Theta.Parameters) {
		return fmt.Errorf("bound: reference has %d entries, expected %d", len(c.Bound.Reference), len(c.Theta.Parameters))
	}
	return nil
}
