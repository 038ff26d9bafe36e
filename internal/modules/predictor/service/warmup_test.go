package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"magic_bot/internal/models"
)

func TestEvaluateWarmupGate(t *testing.T) {
	thresholds := map[string]int{"1m": 200, "5m": 200, "15m": 100}

	t.Run("blocks with deficits when enabled and blocking", func(t *testing.T) {
		report := EvaluateWarmupGate(WarmupInput{
			Lengths:     map[string]int{"1m": 10, "5m": 80, "15m": 90},
			Thresholds:  thresholds,
			Enabled:     true,
			BlockTrades: true,
		})
		assert.True(t, report.Skip)
		assert.Equal(t, models.ReasonPredictorWarmup, report.Reason)
		require.Len(t, report.Missing, 3)
		assert.Equal(t, models.WarmupDeficit{Timeframe: "1m", Have: 10, Need: 200, Deficit: 190}, report.Missing[0])
	})

	t.Run("passes when all timeframes warmed", func(t *testing.T) {
		report := EvaluateWarmupGate(WarmupInput{
			Lengths:     map[string]int{"1m": 250, "5m": 201, "15m": 100},
			Thresholds:  thresholds,
			Enabled:     true,
			BlockTrades: true,
		})
		assert.False(t, report.Skip)
		assert.Empty(t, report.Missing)
	})

	t.Run("reports but does not block when blocking disabled", func(t *testing.T) {
		report := EvaluateWarmupGate(WarmupInput{
			Lengths:     map[string]int{"1m": 10, "5m": 10, "15m": 10},
			Thresholds:  thresholds,
			Enabled:     true,
			BlockTrades: false,
		})
		assert.False(t, report.Skip)
		assert.NotEmpty(t, report.Missing)
	})

	t.Run("disabled gate never blocks", func(t *testing.T) {
		report := EvaluateWarmupGate(WarmupInput{
			Lengths:     map[string]int{"1m": 0, "5m": 0, "15m": 0},
			Thresholds:  thresholds,
			Enabled:     false,
			BlockTrades: true,
		})
		assert.False(t, report.Skip)
		assert.Len(t, report.Missing, 3)
	})
}
