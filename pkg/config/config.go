package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sosodev/duration"
	"gopkg.in/yaml.v3"

	"ph-monitor/internal/oscillation"
)

type Config struct {
	// MQTT Configuration
	MQTTBroker   string
	MQTTClientID string
	MQTTUsername string
	MQTTPassword string

	// Topics
	MQTTTopicPH     string // subscription filter, device id in the second segment
	MQTTTopicReport string // e.g. "ph/{source}/report"

	// History backend
	HistoryBackend string // "clickhouse" or "sqlite"
	ClickHouseAddr string
	ClickHouseDB   string
	ClickHouseUser string
	ClickHousePass string
	SQLitePath     string

	// Report sinks
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	HTTPAddr      string

	// Logging
	LogLevel  slog.Level
	LogFormat string

	// Monitors
	MonitorsFile string
	QueueSize    int
	Monitors     []Monitor
}

// Monitor is the configuration of one monitored pH source
type Monitor struct {
	Name             string
	SourceEntity     string
	Mode             oscillation.Mode
	Params           oscillation.Params
	AnalysisInterval time.Duration
}

// monitorFile mirrors one entry of MONITORS_FILE. Durations are strings so that
// Go ("90s"), ISO-8601 ("PT24H") and bare numbers are all accepted.
type monitorFile struct {
	Name             string   `yaml:"name"`
	SourceEntity     string   `yaml:"source_entity"`
	Mode             string   `yaml:"mode"`
	Setpoint         *float64 `yaml:"setpoint"`
	NoiseFilter      *float64 `yaml:"noise_filter"`
	MinAmplitude     *float64 `yaml:"min_amplitude"`
	MinDuration      string   `yaml:"min_duration"`
	TimeWindow       string   `yaml:"time_window"`
	ReportHorizon    string   `yaml:"report_horizon"`
	AnalysisInterval string   `yaml:"analysis_interval"`
	CountMode        string   `yaml:"count_mode"`
}

type monitorsDocument struct {
	Monitors []monitorFile `yaml:"monitors"`
}

const DefaultAnalysisInterval = 5 * time.Minute

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", "ph-monitor"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),

		MQTTTopicPH:     getEnv("MQTT_TOPIC_PH", "sensor/+/ph"),
		MQTTTopicReport: getEnv("MQTT_TOPIC_REPORT", "ph/{source}/report"),

		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", "clickhouse")),
		ClickHouseAddr: getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDB:   getEnv("CLICKHOUSE_DB", "aquarium"),
		ClickHouseUser: getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePass: getEnv("CLICKHOUSE_PASS", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "data/ph.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),

		LogLevel:  getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		MonitorsFile: getEnv("MONITORS_FILE", ""),
		QueueSize:    getEnvInt("SESSION_QUEUE_SIZE", 100),
	}

	switch cfg.HistoryBackend {
	case "clickhouse", "sqlite":
	default:
		return nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.HistoryBackend)
	}

	var err error
	if cfg.MonitorsFile != "" {
		cfg.Monitors, err = LoadMonitorsFile(cfg.MonitorsFile)
	} else {
		cfg.Monitors, err = monitorFromEnv()
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadMonitorsFile reads the YAML list of monitors
func LoadMonitorsFile(path string) ([]Monitor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitors file: %w", err)
	}
	return ParseMonitors(data)
}

// ParseMonitors decodes a YAML monitors document and applies defaults
func ParseMonitors(data []byte) ([]Monitor, error) {
	var doc monitorsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse monitors file: %w", err)
	}
	if len(doc.Monitors) == 0 {
		return nil, fmt.Errorf("monitors file defines no monitors")
	}

	monitors := make([]Monitor, 0, len(doc.Monitors))
	seen := make(map[string]bool)
	for i, mf := range doc.Monitors {
		m, err := mf.toMonitor()
		if err != nil {
			return nil, fmt.Errorf("monitor %d: %w", i, err)
		}
		if seen[m.SourceEntity] {
			return nil, fmt.Errorf("monitor %d: source_entity %q configured twice", i, m.SourceEntity)
		}
		seen[m.SourceEntity] = true
		monitors = append(monitors, m)
	}
	return monitors, nil
}

func (mf monitorFile) toMonitor() (Monitor, error) {
	if mf.SourceEntity == "" {
		return Monitor{}, fmt.Errorf("source_entity is required")
	}

	p := oscillation.DefaultParams()
	if mf.Setpoint != nil {
		p.Setpoint = *mf.Setpoint
	}
	if mf.NoiseFilter != nil {
		p.NoiseFilter = *mf.NoiseFilter
	}
	if mf.MinAmplitude != nil {
		p.MinAmplitude = *mf.MinAmplitude
	}
	if mf.CountMode != "" {
		p.CountMode = oscillation.CountMode(strings.ToLower(mf.CountMode))
	}

	var err error
	if p.MinDuration, err = parseDuration(mf.MinDuration, time.Second, p.MinDuration); err != nil {
		return Monitor{}, fmt.Errorf("min_duration: %w", err)
	}
	if p.TimeWindow, err = parseDuration(mf.TimeWindow, time.Hour, p.TimeWindow); err != nil {
		return Monitor{}, fmt.Errorf("time_window: %w", err)
	}
	if p.ReportHorizon, err = parseDuration(mf.ReportHorizon, time.Hour, p.ReportHorizon); err != nil {
		return Monitor{}, fmt.Errorf("report_horizon: %w", err)
	}
	interval, err := parseDuration(mf.AnalysisInterval, time.Minute, DefaultAnalysisInterval)
	if err != nil {
		return Monitor{}, fmt.Errorf("analysis_interval: %w", err)
	}
	if interval <= 0 {
		return Monitor{}, fmt.Errorf("analysis_interval must be positive")
	}

	mode, err := parseMode(mf.Mode)
	if err != nil {
		return Monitor{}, err
	}
	if err := p.Validate(); err != nil {
		return Monitor{}, err
	}
	if !p.NoiseBelowAmplitude() {
		slog.Warn("noise_filter is not below min_amplitude, oscillation results may be meaningless",
			"source", mf.SourceEntity, "noise_filter", p.NoiseFilter, "min_amplitude", p.MinAmplitude)
	}

	name := mf.Name
	if name == "" {
		name = "pH Control for " + mf.SourceEntity
	}

	return Monitor{
		Name:             name,
		SourceEntity:     mf.SourceEntity,
		Mode:             mode,
		Params:           p,
		AnalysisInterval: interval,
	}, nil
}

func monitorFromEnv() ([]Monitor, error) {
	mf := monitorFile{
		Name:             getEnv("MONITOR_NAME", ""),
		SourceEntity:     getEnv("SOURCE_ENTITY", ""),
		Mode:             getEnv("DETECTOR_MODE", ""),
		MinDuration:      getEnv("MIN_DURATION", ""),
		TimeWindow:       getEnv("TIME_WINDOW", ""),
		ReportHorizon:    getEnv("REPORT_HORIZON", ""),
		AnalysisInterval: getEnv("ANALYSIS_INTERVAL", ""),
		CountMode:        getEnv("COUNT_MODE", ""),
	}
	defaults := oscillation.DefaultParams()
	mf.Setpoint = floatPtr(getEnvFloat("SETPOINT", defaults.Setpoint))
	mf.NoiseFilter = floatPtr(getEnvFloat("NOISE_FILTER", defaults.NoiseFilter))
	mf.MinAmplitude = floatPtr(getEnvFloat("MIN_AMPLITUDE", defaults.MinAmplitude))

	m, err := mf.toMonitor()
	if err != nil {
		return nil, fmt.Errorf("monitor from environment: %w", err)
	}
	return []Monitor{m}, nil
}

func parseMode(s string) (oscillation.Mode, error) {
	switch strings.ToLower(s) {
	case "", string(oscillation.ModeWindowed):
		return oscillation.ModeWindowed, nil
	case string(oscillation.ModeStreaming):
		return oscillation.ModeStreaming, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// parseDuration accepts Go durations ("90s"), ISO-8601 durations ("PT24H")
// or a bare number interpreted in unit. Empty input yields fallback.
func parseDuration(s string, unit time.Duration, fallback time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(unit)), nil
	}
	if strings.HasPrefix(strings.ToUpper(s), "P") {
		d, err := duration.Parse(strings.ToUpper(s))
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", s, err)
		}
		return d.ToTimeDuration(), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

func floatPtr(v float64) *float64 { return &v }

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("failed to parse env as float, using default", "key", key, "error", err)
		return defaultValue
	}
	return floatValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("failed to parse env as int, using default", "key", key, "error", err)
		return defaultValue
	}
	return intValue
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		slog.Warn("failed to parse env as log level, using default", "key", key, "error", err)
		return defaultValue
	}
	return level
}
