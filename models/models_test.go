package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyKind(t *testing.T) {
	for _, k := range []PolicyKind{ENERGY, XNORM, COMPLIANT} {
		got, err := ParsePolicyKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParsePolicyKind(" Compliant ")
	require.NoError(t, err)
	assert.Equal(t, COMPLIANT, got)
	got, err = ParsePolicyKind("")
	require.NoError(t, err)
	assert.Equal(t, ENERGY, got)

	_, err = ParsePolicyKind("nope")
	assert.Error(t, err)
	assert.Equal(t, "PolicyKind(9)", PolicyKind(9).String())
}

func validConfig() *Config {
	return &Config{
		Theta: ThetaSpec{
			Parameters: []ParameterSpec{{Name: "k", Min: 1, Max: 2}},
			A:          []TermSpec{{Coeff: 1}},
			F:          []TermSpec{{Coeff: 1}},
		},
	}
}

func TestApplyDefaults(t *testing.T) {
	c := validConfig()
	c.ApplyDefaults()
	assert.Equal(t, "rb-model", c.Name)
	assert.Equal(t, DefaultBundleDir, c.Bundle.Dir)
	assert.Equal(t, DefaultStability, c.Bound.Stability)
	assert.Equal(t, DefaultAddr, c.Server.Addr)
	assert.Equal(t, 10000, c.Server.MaxSweepPoints)
	assert.Equal(t, "info", c.LogLevel)

	c = validConfig()
	c.DEBUG = true
	c.Bound.Reference = []float64{1.5}
	c.ApplyDefaults()
	assert.Equal(t, "debug", c.LogLevel)
	assert.Zero(t, c.Bound.Stability, "min-theta bound needs no constant")
	assert.Equal(t, 1.0, c.Bound.RefAlpha)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(c *Config){
		"no a terms":     func(c *Config) { c.Theta.A = nil },
		"no f terms":     func(c *Config) { c.Theta.F = nil },
		"empty output":   func(c *Config) { c.Theta.Outputs = [][]TermSpec{{}} },
		"inverted range": func(c *Config) { c.Theta.Parameters[0].Min = 3 },
		"bad policy":     func(c *Config) { c.Bound.Policy = "strict" },
		"reference size": func(c *Config) { c.Bound.Reference = []float64{1, 2} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
