package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ph-monitor/internal/oscillation"
)

func TestParseMonitors(t *testing.T) {
	doc := []byte(`
monitors:
  - name: Reef tank
    source_entity: sensor.reef_ph
    mode: streaming
    setpoint: 8.2
    noise_filter: 0.03
    min_amplitude: 0.15
    min_duration: 90s
    time_window: PT12H
    report_horizon: 6
    analysis_interval: 1
    count_mode: reversals
  - source_entity: sensor.sump_ph
`)

	monitors, err := ParseMonitors(doc)
	require.NoError(t, err)
	require.Len(t, monitors, 2)

	reef := monitors[0]
	require.Equal(t, "Reef tank", reef.Name)
	require.Equal(t, oscillation.ModeStreaming, reef.Mode)
	require.Equal(t, 8.2, reef.Params.Setpoint)
	require.Equal(t, 0.03, reef.Params.NoiseFilter)
	require.Equal(t, 0.15, reef.Params.MinAmplitude)
	require.Equal(t, 90*time.Second, reef.Params.MinDuration)
	require.Equal(t, 12*time.Hour, reef.Params.TimeWindow)
	require.Equal(t, 6*time.Hour, reef.Params.ReportHorizon)
	require.Equal(t, time.Minute, reef.AnalysisInterval)
	require.Equal(t, oscillation.CountReversals, reef.Params.CountMode)

	sump := monitors[1]
	require.Equal(t, "pH Control for sensor.sump_ph", sump.Name)
	require.Equal(t, oscillation.ModeWindowed, sump.Mode)
	require.Equal(t, oscillation.DefaultParams(), sump.Params)
	require.Equal(t, DefaultAnalysisInterval, sump.AnalysisInterval)
}

func TestParseMonitors_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		msg  string
	}{
		{"empty", "monitors: []", "no monitors"},
		{"missing source", "monitors:\n  - name: x", "source_entity is required"},
		{"duplicate", "monitors:\n  - source_entity: a\n  - source_entity: a", "configured twice"},
		{"bad mode", "monitors:\n  - source_entity: a\n    mode: hourly", "unknown mode"},
		{"bad duration", "monitors:\n  - source_entity: a\n    time_window: soon", "time_window"},
		{"bad iso duration", "monitors:\n  - source_entity: a\n    report_horizon: PXYZ", "report_horizon"},
		{"negative noise", "monitors:\n  - source_entity: a\n    noise_filter: -1", "noise_filter"},
		{"zero interval", "monitors:\n  - source_entity: a\n    analysis_interval: 0", "analysis_interval"},
		{"bad yaml", "monitors: [", "failed to parse"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseMonitors([]byte(test.doc))
			require.ErrorContains(t, err, test.msg)
		})
	}
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("", time.Hour, 3*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 3*time.Hour, d)

	d, err = parseDuration("1.5", time.Hour, 0)
	require.NoError(t, err)
	require.Equal(t, 90*time.Minute, d)

	d, err = parseDuration("pt30m", time.Hour, 0)
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, d)

	d, err = parseDuration("2h30m", time.Second, 0)
	require.NoError(t, err)
	require.Equal(t, 150*time.Minute, d)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SOURCE_ENTITY", "sensor.tank_ph")
	t.Setenv("DETECTOR_MODE", "streaming")
	t.Setenv("SETPOINT", "7.8")
	t.Setenv("TIME_WINDOW", "48")
	t.Setenv("HISTORY_BACKEND", "SQLite")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MONITORS_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.HistoryBackend)
	require.Equal(t, "sensor/+/ph", cfg.MQTTTopicPH)
	require.Equal(t, "DEBUG", cfg.LogLevel.String())
	require.Len(t, cfg.Monitors, 1)
	require.Equal(t, "sensor.tank_ph", cfg.Monitors[0].SourceEntity)
	require.Equal(t, oscillation.ModeStreaming, cfg.Monitors[0].Mode)
	require.Equal(t, 7.8, cfg.Monitors[0].Params.Setpoint)
	require.Equal(t, 48*time.Hour, cfg.Monitors[0].Params.TimeWindow)
}

func TestLoad_FromMonitorsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monitors:\n  - source_entity: sensor.a\n  - source_entity: sensor.b\n"), 0o600))
	t.Setenv("MONITORS_FILE", path)
	t.Setenv("HISTORY_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "clickhouse", cfg.HistoryBackend)
	require.Len(t, cfg.Monitors, 2)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("SOURCE_ENTITY", "sensor.tank_ph")
	t.Setenv("MONITORS_FILE", "")
	t.Setenv("HISTORY_BACKEND", "postgres")

	_, err := Load()
	require.ErrorContains(t, err, "HISTORY_BACKEND")
}
