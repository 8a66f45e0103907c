// Package observer ingests physiological, environmental and space-weather
// events, classifies their severity, and journals alerts under the data
// dir (alerts/{physio,env,space}.jsonl). Severity is returned to the
// caller; no other package in this module consumes it.
package observer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Severity classifies one indicator or an aggregated event.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityMild:     1,
	SeverityModerate: 2,
	SeveritySevere:   3,
}

func maxSeverity(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// PhysioEvent is one sample from a wearable.
type PhysioEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id,omitempty"`

	HRVMs        *float64 `json:"hrv_ms,omitempty"`
	HeartRateBPM *float64 `json:"heart_rate_bpm,omitempty"`
	SpO2Percent  *float64 `json:"spo2_percent,omitempty"`
	RespRateBPM  *float64 `json:"resp_rate_bpm,omitempty"`
	SkinTempC    *float64 `json:"skin_temp_c,omitempty"`
	BodyTempC    *float64 `json:"body_temp_c,omitempty"`
}

// EnvEvent is one environmental sample.
type EnvEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	SessionID string    `json:"session_id,omitempty"`

	AltitudeM       *float64 `json:"altitude_m,omitempty"`
	BaroPressureHPa *float64 `json:"baro_pressure_hpa,omitempty"`
	AmbientTempC    *float64 `json:"ambient_temp_c,omitempty"`
	HumidityPercent *float64 `json:"humidity_percent,omitempty"`
	UVIndex         *float64 `json:"uv_index,omitempty"`
	NoiseDB         *float64 `json:"noise_db,omitempty"`
}

// SpaceWeatherEvent is one space-weather sample.
type SpaceWeatherEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`

	KpIndex        *float64 `json:"kp_index,omitempty"`
	SolarFlareClass string  `json:"solar_flare_class,omitempty"`
}

// Alert is one journaled line in an alerts file.
type Alert struct {
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	SessionID  string    `json:"session_id,omitempty"`
	Severity   Severity  `json:"severity"`
	Indicators []string  `json:"indicators"`
}

// Observer classifies events and appends alerts to the journal files.
type Observer struct {
	dataDir string
	mu      sync.Mutex
}

// New creates an observer journaling under dataDir/alerts/.
func New(dataDir string) (*Observer, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "alerts"), 0o755); err != nil {
		return nil, fmt.Errorf("create alerts dir: %w", err)
	}
	return &Observer{dataDir: dataDir}, nil
}

// RecordPhysioEvent classifies the event, journals an alert when any
// indicator fires, and returns the aggregated severity.
func (o *Observer) RecordPhysioEvent(event PhysioEvent) (Severity, error) {
	severity, indicators := classifyPhysio(event)
	if len(indicators) > 0 {
		alert := Alert{
			Timestamp:  event.Timestamp,
			Kind:       "physio",
			Source:     event.Source,
			SessionID:  event.SessionID,
			Severity:   severity,
			Indicators: indicators,
		}
		if err := o.appendAlert("physio.jsonl", alert); err != nil {
			return severity, err
		}
	}
	return severity, nil
}

// RecordEnvEvent is the environmental counterpart.
func (o *Observer) RecordEnvEvent(event EnvEvent) (Severity, error) {
	severity, indicators := classifyEnv(event)
	if len(indicators) > 0 {
		alert := Alert{
			Timestamp:  event.Timestamp,
			Kind:       "env",
			Source:     event.Source,
			SessionID:  event.SessionID,
			Severity:   severity,
			Indicators: indicators,
		}
		if err := o.appendAlert("env.jsonl", alert); err != nil {
			return severity, err
		}
	}
	return severity, nil
}

// RecordSpaceWeatherEvent is the space-weather counterpart.
func (o *Observer) RecordSpaceWeatherEvent(event SpaceWeatherEvent) (Severity, error) {
	severity, indicators := classifySpace(event)
	if len(indicators) > 0 {
		alert := Alert{
			Timestamp:  event.Timestamp,
			Kind:       "space",
			Source:     event.Source,
			Severity:   severity,
			Indicators: indicators,
		}
		if err := o.appendAlert("space.jsonl", alert); err != nil {
			return severity, err
		}
	}
	return severity, nil
}

// classifyPhysio applies per-indicator thresholds; the aggregate is the
// maximum over fired indicators.
func classifyPhysio(e PhysioEvent) (Severity, []string) {
	severity := SeverityInfo
	var indicators []string

	if e.SpO2Percent != nil {
		switch {
		case *e.SpO2Percent < 90:
			severity = maxSeverity(severity, SeveritySevere)
			indicators = append(indicators, "spo2_percent")
		case *e.SpO2Percent < 94:
			severity = maxSeverity(severity, SeverityModerate)
			indicators = append(indicators, "spo2_percent")
		}
	}
	if e.HRVMs != nil && *e.HRVMs < 30 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "hrv_ms")
	}
	if e.HeartRateBPM != nil && *e.HeartRateBPM > 110 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "heart_rate_bpm")
	}
	if e.RespRateBPM != nil && *e.RespRateBPM < 10 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "resp_rate_bpm")
	}
	if e.SkinTempC != nil && *e.SkinTempC < 33 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "skin_temp_c")
	}
	if e.BodyTempC != nil && (*e.BodyTempC > 39 || *e.BodyTempC < 35) {
		severity = maxSeverity(severity, SeveritySevere)
		indicators = append(indicators, "body_temp_c")
	}

	return severity, indicators
}

func classifyEnv(e EnvEvent) (Severity, []string) {
	severity := SeverityInfo
	var indicators []string

	if e.AltitudeM != nil && *e.AltitudeM > 2000 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "altitude_m")
	}
	if e.BaroPressureHPa != nil && *e.BaroPressureHPa < 980 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "baro_pressure_hpa")
	}
	if e.AmbientTempC != nil && (*e.AmbientTempC < 10 || *e.AmbientTempC > 35) {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "ambient_temp_c")
	}
	if e.UVIndex != nil && *e.UVIndex >= 8 {
		severity = maxSeverity(severity, SeverityModerate)
		indicators = append(indicators, "uv_index")
	}
	if e.NoiseDB != nil && *e.NoiseDB > 85 {
		severity = maxSeverity(severity, SeverityMild)
		indicators = append(indicators, "noise_db")
	}

	return severity, indicators
}

func classifySpace(e SpaceWeatherEvent) (Severity, []string) {
	severity := SeverityInfo
	var indicators []string

	if e.KpIndex != nil {
		switch {
		case *e.KpIndex >= 7:
			severity = maxSeverity(severity, SeveritySevere)
			indicators = append(indicators, "kp_index")
		case *e.KpIndex >= 5:
			severity = maxSeverity(severity, SeverityModerate)
			indicators = append(indicators, "kp_index")
		}
	}
	if e.SolarFlareClass == "X" {
		severity = maxSeverity(severity, SeveritySevere)
		indicators = append(indicators, "solar_flare_class")
	}

	return severity, indicators
}

func (o *Observer) appendAlert(file string, alert Alert) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	path := filepath.Join(o.dataDir, "alerts", file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open alert journal: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("serialize alert: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

// Float is a pointer helper for optional event fields.
func Float(v float64) *float64 { return &v }
