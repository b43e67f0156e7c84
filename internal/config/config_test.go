package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/archive.jsonl", cfg.DataPath)
	assert.Zero(t, cfg.ReplaySpeed)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.StatusInterval)

	assert.Equal(t, 24, cfg.InitialTrainCount)
	assert.Equal(t, 168, cfg.WeeklyTrainCount)
	assert.Equal(t, 720, cfg.MonthlyTrainInterval)

	assert.Equal(t, 0.25, cfg.InfoThreshold)
	assert.Equal(t, 0.75, cfg.WarningThreshold)
	assert.Equal(t, 1.96, cfg.ConfidenceZ)

	assert.Equal(t, "models", cfg.SnapshotDir)
	assert.Equal(t, 5, cfg.SnapshotRetention)
	assert.False(t, cfg.ResumeFromLatest)

	assert.Equal(t, "logs", cfg.AlertLogDir)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "temperature-anomaly-alerts", cfg.KafkaAlertTopic)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/custom.jsonl")
	t.Setenv("REPLAY_SPEED", "100")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("STATUS_INTERVAL", "5s")
	t.Setenv("INITIAL_TRAIN_COUNT", "12")
	t.Setenv("WEEKLY_TRAIN_COUNT", "84")
	t.Setenv("MONTHLY_TRAIN_INTERVAL", "360")
	t.Setenv("INFO_THRESHOLD", "0.2")
	t.Setenv("WARNING_THRESHOLD", "0.6")
	t.Setenv("CONFIDENCE_Z", "2.58")
	t.Setenv("SNAPSHOT_DIR", "/var/lib/snapshots")
	t.Setenv("SNAPSHOT_RETENTION", "3")
	t.Setenv("RESUME_FROM_LATEST", "true")
	t.Setenv("ALERT_LOG_DIR", "/var/log/alerts")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_ALERT_TOPIC", "custom-alerts")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/custom.jsonl", cfg.DataPath)
	assert.Equal(t, 100.0, cfg.ReplaySpeed)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.Equal(t, 12, cfg.InitialTrainCount)
	assert.Equal(t, 84, cfg.WeeklyTrainCount)
	assert.Equal(t, 360, cfg.MonthlyTrainInterval)
	assert.Equal(t, 0.2, cfg.InfoThreshold)
	assert.Equal(t, 0.6, cfg.WarningThreshold)
	assert.Equal(t, 2.58, cfg.ConfidenceZ)
	assert.Equal(t, "/var/lib/snapshots", cfg.SnapshotDir)
	assert.Equal(t, 3, cfg.SnapshotRetention)
	assert.True(t, cfg.ResumeFromLatest)
	assert.Equal(t, "/var/log/alerts", cfg.AlertLogDir)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-alerts", cfg.KafkaAlertTopic)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_MissingDataPath(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_PATH")
}

func TestLoad_MalformedIntEnv(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("SNAPSHOT_RETENTION", "abc")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SNAPSHOT_RETENTION")
}

func TestLoad_NonPositiveIntEnv(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("INITIAL_TRAIN_COUNT", "-5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INITIAL_TRAIN_COUNT")
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeReplaySpeed(t *testing.T) {
	t.Setenv("REPLAY_SPEED", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REPLAY_SPEED")
}

func TestLoad_InvalidStatusInterval(t *testing.T) {
	t.Setenv("STATUS_INTERVAL", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATUS_INTERVAL")
}

func TestLoad_ThresholdOrdering(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("INFO_THRESHOLD", "0.8")
	t.Setenv("WARNING_THRESHOLD", "0.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFO_THRESHOLD")
}

func TestLoad_TrainCountOrdering(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("INITIAL_TRAIN_COUNT", "200")
	t.Setenv("WEEKLY_TRAIN_COUNT", "100")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INITIAL_TRAIN_COUNT")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_BrokersImplyEnabled(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("DATA_PATH", "/data/archive.jsonl")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}
