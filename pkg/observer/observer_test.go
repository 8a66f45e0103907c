package observer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: spo2=88, hrv=25, hr=120, resp=8, skin_temp=32 aggregates to
// Severe and journals one alert line mentioning spo2_percent.
func TestPhysioEvent_CriticalSpO2(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir)
	require.NoError(t, err)

	severity, err := obs.RecordPhysioEvent(PhysioEvent{
		Timestamp:    time.Now().UTC(),
		Source:       "test_watch",
		SessionID:    "test_session_1",
		HRVMs:        Float(25),
		HeartRateBPM: Float(120),
		SpO2Percent:  Float(88),
		RespRateBPM:  Float(8),
		SkinTempC:    Float(32),
	})
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, severity, "critical SpO2 dominates")

	raw, err := os.ReadFile(filepath.Join(dir, "alerts", "physio.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"severity":"Severe"`)
	assert.Contains(t, lines[0], "spo2_percent")
}

func TestPhysioEvent_NominalWritesNothing(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir)
	require.NoError(t, err)

	severity, err := obs.RecordPhysioEvent(PhysioEvent{
		Timestamp:    time.Now().UTC(),
		Source:       "test_watch",
		HRVMs:        Float(65),
		HeartRateBPM: Float(62),
		SpO2Percent:  Float(98),
	})
	require.NoError(t, err)
	assert.Equal(t, SeverityInfo, severity)

	_, statErr := os.Stat(filepath.Join(dir, "alerts", "physio.jsonl"))
	assert.True(t, os.IsNotExist(statErr), "no alert file for nominal events")
}

func TestEnvEvent_ModerateAltitude(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir)
	require.NoError(t, err)

	severity, err := obs.RecordEnvEvent(EnvEvent{
		Timestamp:       time.Now().UTC(),
		Source:          "test_iphone",
		AltitudeM:       Float(2500),
		BaroPressureHPa: Float(970),
		AmbientTempC:    Float(5),
		UVIndex:         Float(8),
	})
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, severity)

	raw, err := os.ReadFile(filepath.Join(dir, "alerts", "env.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "altitude_m")
	assert.Contains(t, string(raw), `"severity":"Moderate"`)
}

func TestSpaceWeatherEvent_Storm(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir)
	require.NoError(t, err)

	severity, err := obs.RecordSpaceWeatherEvent(SpaceWeatherEvent{
		Timestamp: time.Now().UTC(),
		Source:    "noaa",
		KpIndex:   Float(7.5),
	})
	require.NoError(t, err)
	assert.Equal(t, SeveritySevere, severity)

	raw, err := os.ReadFile(filepath.Join(dir, "alerts", "space.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "kp_index")
}

func TestAlertsAppend(t *testing.T) {
	dir := t.TempDir()
	obs, err := New(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := obs.RecordPhysioEvent(PhysioEvent{
			Timestamp:   time.Now().UTC(),
			Source:      "watch",
			SpO2Percent: Float(88),
		})
		require.NoError(t, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "alerts", "physio.jsonl"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(raw)), "\n"), 3)
}

func TestAggregator_Reductions(t *testing.T) {
	agg := NewAggregator()
	for _, v := range []float64{10, 20, 30} {
		agg.Record("latency", v)
	}

	assert.Equal(t, 60.0, agg.Aggregate("latency", AggSum).Value)
	assert.Equal(t, 20.0, agg.Aggregate("latency", AggAverage).Value)
	assert.Equal(t, 10.0, agg.Aggregate("latency", AggMin).Value)
	assert.Equal(t, 30.0, agg.Aggregate("latency", AggMax).Value)
	assert.Equal(t, 3.0, agg.Aggregate("latency", AggCount).Value)
	assert.InDelta(t, 10.0, agg.Aggregate("latency", AggStdDev).Value, 1e-9)
	assert.Equal(t, 3, agg.Aggregate("latency", AggSum).SampleCount)

	assert.Nil(t, agg.Aggregate("unknown", AggSum))
}

func TestAggregator_Percentile(t *testing.T) {
	agg := NewAggregator()
	for i := 1; i <= 100; i++ {
		agg.Record("score", float64(i))
	}

	p50 := agg.Percentile("score", 50)
	require.NotNil(t, p50)
	assert.InDelta(t, 50.0, p50.Value, 2.0)

	p99 := agg.Percentile("score", 99)
	require.NotNil(t, p99)
	assert.InDelta(t, 99.0, p99.Value, 2.0)
}

func TestAggregator_WindowExpiry(t *testing.T) {
	agg := NewAggregatorWithWindow(time.Minute)
	base := time.Now()
	agg.now = func() time.Time { return base }

	agg.Record("m", 5)

	// Move time beyond the window: the value no longer aggregates.
	agg.now = func() time.Time { return base.Add(2 * time.Minute) }
	assert.Nil(t, agg.Aggregate("m", AggSum))
}

func TestAggregator_ClearAndNames(t *testing.T) {
	agg := NewAggregator()
	agg.Record("a", 1)
	agg.Record("b", 2)
	assert.Equal(t, []string{"a", "b"}, agg.MetricNames())

	agg.Clear()
	assert.Empty(t, agg.MetricNames())
}
