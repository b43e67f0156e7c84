package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
// CLI flags may override individual fields after Load.
type Config struct {
	DataPath        string
	ReplaySpeed     float64
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	StatusInterval  time.Duration

	// Retraining cadence, in cumulative observation counts.
	InitialTrainCount    int
	WeeklyTrainCount     int
	MonthlyTrainInterval int

	// Anomaly severity thresholds on the deviation ratio.
	InfoThreshold    float64
	WarningThreshold float64

	// Confidence band half-width in residual standard deviations.
	ConfidenceZ float64

	// Model snapshot persistence.
	SnapshotDir       string
	SnapshotRetention int
	ResumeFromLatest  bool

	// Alert log persistence.
	AlertLogDir string

	// Kafka escalation for CRITICAL alerts (feature-flagged via
	// KAFKA_ENABLED / KAFKA_BROKERS).
	KafkaBrokers    []string
	KafkaAlertTopic string
	KafkaEnabled    bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	speed, err := parseFloatEnv("REPLAY_SPEED", 0)
	if err != nil || speed < 0 {
		return nil, errors.New("invalid REPLAY_SPEED")
	}

	statusInterval, err := parseDurationEnv("STATUS_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, errors.New("invalid STATUS_INTERVAL")
	}

	infoThreshold, err := parseFloatEnv("INFO_THRESHOLD", 0.25)
	if err != nil {
		return nil, errors.New("invalid INFO_THRESHOLD")
	}
	warningThreshold, err := parseFloatEnv("WARNING_THRESHOLD", 0.75)
	if err != nil {
		return nil, errors.New("invalid WARNING_THRESHOLD")
	}
	confidenceZ, err := parseFloatEnv("CONFIDENCE_Z", 1.96)
	if err != nil || confidenceZ <= 0 {
		return nil, errors.New("invalid CONFIDENCE_Z")
	}

	initialTrainCount, err := parseIntEnv("INITIAL_TRAIN_COUNT", 24)
	if err != nil {
		return nil, err
	}
	weeklyTrainCount, err := parseIntEnv("WEEKLY_TRAIN_COUNT", 168)
	if err != nil {
		return nil, err
	}
	monthlyTrainInterval, err := parseIntEnv("MONTHLY_TRAIN_INTERVAL", 720)
	if err != nil {
		return nil, err
	}
	snapshotRetention, err := parseIntEnv("SNAPSHOT_RETENTION", 5)
	if err != nil {
		return nil, err
	}

	brokers := sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		// No bundled archive ships with the service; the path must come
		// from DATA_PATH or the --data flag.
		DataPath:        os.Getenv("DATA_PATH"),
		ReplaySpeed:     speed,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		StatusInterval:  statusInterval,

		InitialTrainCount:    initialTrainCount,
		WeeklyTrainCount:     weeklyTrainCount,
		MonthlyTrainInterval: monthlyTrainInterval,

		InfoThreshold:    infoThreshold,
		WarningThreshold: warningThreshold,
		ConfidenceZ:      confidenceZ,

		SnapshotDir:       sharedcfg.EnvOrDefault("SNAPSHOT_DIR", "models"),
		SnapshotRetention: snapshotRetention,
		ResumeFromLatest:  os.Getenv("RESUME_FROM_LATEST") == "true",

		AlertLogDir: sharedcfg.EnvOrDefault("ALERT_LOG_DIR", "logs"),

		KafkaBrokers:    brokers,
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "temperature-anomaly-alerts"),
		KafkaEnabled:    kafkaEnabled,
	}

	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints. Called by Load and again by
// the CLI after flag overrides are applied.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return errors.New("DATA_PATH (or --data) is required")
	}
	if c.ReplaySpeed < 0 {
		return errors.New("REPLAY_SPEED must be >= 0")
	}
	if c.InitialTrainCount <= 0 || c.WeeklyTrainCount <= c.InitialTrainCount {
		return fmt.Errorf("training counts must satisfy 0 < INITIAL_TRAIN_COUNT < WEEKLY_TRAIN_COUNT (got %d, %d)",
			c.InitialTrainCount, c.WeeklyTrainCount)
	}
	if c.MonthlyTrainInterval <= 0 {
		return errors.New("MONTHLY_TRAIN_INTERVAL must be > 0")
	}
	if c.InfoThreshold <= 0 || c.WarningThreshold <= c.InfoThreshold {
		return fmt.Errorf("severity thresholds must satisfy 0 < INFO_THRESHOLD < WARNING_THRESHOLD (got %g, %g)",
			c.InfoThreshold, c.WarningThreshold)
	}
	if c.SnapshotRetention <= 0 {
		return errors.New("SNAPSHOT_RETENTION must be > 0")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	return nil
}

func parseIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
