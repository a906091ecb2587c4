package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() ParentOrderConfig {
	return ParentOrderConfig{
		Symbol:         "BTCUSDT",
		Quantity:       100,
		Side:           OrderSideBuy,
		Algorithm:      AlgoTWAP,
		TimeWindow:     30 * time.Minute,
		Aggressiveness: AggressivenessNeutral,
	}
}

func TestParentOrderConfigValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*ParentOrderConfig)
	}{
		{"empty symbol", func(c *ParentOrderConfig) { c.Symbol = "" }},
		{"zero quantity", func(c *ParentOrderConfig) { c.Quantity = 0 }},
		{"negative quantity", func(c *ParentOrderConfig) { c.Quantity = -1 }},
		{"zero window", func(c *ParentOrderConfig) { c.TimeWindow = 0 }},
		{"bad side", func(c *ParentOrderConfig) { c.Side = "hold" }},
		{"bad algorithm", func(c *ParentOrderConfig) { c.Algorithm = "povwap" }},
		{"negative slippage", func(c *ParentOrderConfig) { c.MaxSlippage = -0.01 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestExecutionStatusIsTerminal(t *testing.T) {
	assert.False(t, ExecutionActive.IsTerminal())
	assert.True(t, ExecutionCompleted.IsTerminal())
	assert.True(t, ExecutionCancelled.IsTerminal())
	assert.True(t, ExecutionFailed.IsTerminal())
}

func TestAggressivenessMultiplier(t *testing.T) {
	assert.Equal(t, 0.7, AggressivenessPassive.Multiplier())
	assert.Equal(t, 1.0, AggressivenessNeutral.Multiplier())
	assert.Equal(t, 1.5, AggressivenessAggressive.Multiplier())
}

func TestFillRatio(t *testing.T) {
	e := ParentOrderExecution{
		Slices: []OrderSlice{
			{Quantity: 60},
			{Quantity: 40},
		},
		FilledQuantity: 75,
	}
	assert.InDelta(t, 0.75, e.FillRatio(), 1e-9)

	assert.Zero(t, ParentOrderExecution{}.FillRatio())
}
