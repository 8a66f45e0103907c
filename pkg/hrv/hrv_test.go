package hrv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdaptiveParameters_Bands(t *testing.T) {
	controller, monitor := NewMockController()
	cfg := DefaultConfig()
	ctx := context.Background()

	tests := []struct {
		state          State
		wantThreshold  float64
		wantRefines    int
		wantPathsAbove int
	}{
		{StateVeryHigh, 0.85, 5, 1},
		{StateHigh, 0.85, 5, 1},
		{StateNominal, 0.80, 4, 0},
		{StateLow, 0.70, 3, 0},
		{StateVeryLow, 0.60, 2, 0},
	}

	for _, tt := range tests {
		monitor.SetState(tt.state)
		params := controller.AdaptiveParameters(ctx, cfg)

		assert.Equal(t, tt.wantThreshold, params.QualityThreshold, "state %s", tt.state)
		assert.Equal(t, tt.wantRefines, params.MaxRefinements, "state %s", tt.state)
		if tt.wantPathsAbove > 0 {
			assert.Greater(t, params.NumPaths, tt.wantPathsAbove, "state %s should ensemble", tt.state)
		} else {
			assert.Equal(t, 1, params.NumPaths, "state %s should not ensemble", tt.state)
		}
		assert.Equal(t, tt.state, params.State)
	}
}

func TestAdaptiveParameters_TokenScaling(t *testing.T) {
	controller, monitor := NewMockController()
	cfg := DefaultConfig()
	ctx := context.Background()

	monitor.SetState(StateVeryHigh)
	full := controller.AdaptiveParameters(ctx, cfg)
	assert.Equal(t, 8192, full.MaxTokens, "full intensity keeps the whole budget")

	monitor.SetState(StateVeryLow)
	low := controller.AdaptiveParameters(ctx, cfg)
	assert.Equal(t, 4915, low.MaxTokens, "0.5 + 0.5*0.2 of the base budget")
	assert.Less(t, low.Temperature, cfg.BaseTemperature)
}

func TestAdaptiveParameters_Disabled(t *testing.T) {
	controller, monitor := NewMockController()
	monitor.SetState(StateVeryLow)

	cfg := DefaultConfig()
	cfg.Enabled = false

	params := controller.AdaptiveParameters(context.Background(), cfg)
	assert.Equal(t, NeutralParameters(), params)
}

func TestStateCategory(t *testing.T) {
	assert.Equal(t, PeakFlow, StateVeryHigh.Category())
	assert.Equal(t, PeakFlow, StateHigh.Category())
	assert.Equal(t, Nominal, StateNominal.Category())
	assert.Equal(t, Stressed, StateLow.Category())
	assert.Equal(t, Stressed, StateVeryLow.Category())
}

func TestController_RecordQuality(t *testing.T) {
	controller, _ := NewMockController()

	controller.RecordQuality(PeakFlow, 0.8)
	controller.RecordQuality(PeakFlow, 0.9)
	controller.RecordQuality(Nominal, 0.7)
	controller.RecordQuality(Stressed, 0.5)

	m := controller.Metrics()
	assert.Equal(t, uint64(2), m.QueriesPeakFlow)
	assert.InDelta(t, 0.85, m.AvgQualityPeakFlow, 1e-9)
	assert.Equal(t, uint64(1), m.QueriesNominal)
	assert.InDelta(t, 0.7, m.AvgQualityNominal, 1e-9)
	assert.Equal(t, uint64(1), m.QueriesStressed)
	require.NotNil(t, m.LastUpdated)
}

func TestStateEnsembleAdvisor(t *testing.T) {
	monitor := NewMockMonitor()
	advisor := NewStateEnsembleAdvisor(monitor)
	ctx := context.Background()

	monitor.SetState(StateVeryHigh)
	assert.True(t, advisor.ShouldUseEnsemble(ctx))
	assert.Equal(t, 5, advisor.NumPaths(ctx))
	assert.InDelta(t, 0.92, advisor.AdaptiveTemperature(ctx, 0.8), 1e-9)

	monitor.SetState(StateVeryLow)
	assert.False(t, advisor.ShouldUseEnsemble(ctx))
	assert.InDelta(t, 0.56, advisor.AdaptiveTemperature(ctx, 0.8), 1e-9)
}
