package alert_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/alert"
	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/couchcryptid/temp-anomaly-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureEscalator records every escalation and can be told to fail.
type captureEscalator struct {
	records []alert.Record
	err     error
}

func (c *captureEscalator) Escalate(_ context.Context, rec alert.Record) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, rec)
	return nil
}

var detectedAt = time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(detectedAt))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func anomalyAt(ts time.Time, severity domain.Severity) domain.Anomaly {
	return domain.Anomaly{
		Timestamp: ts,
		Observed:  45.0,
		Forecast:  domain.Forecast{Point: 5, Lower: 1, Upper: 9},
		Deviation: 4.5,
		Severity:  severity,
		Direction: "above",
	}
}

func readRecords(t *testing.T, path string) []alert.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []alert.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec alert.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestSink_AppendsDatePartitionedRecords(t *testing.T) {
	freezeClock(t)
	dir := t.TempDir()
	sink := alert.NewSink(dir, &captureEscalator{}, slog.Default(), observability.NewMetricsForTesting())

	day1 := time.Date(2024, 1, 7, 6, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Notify(anomalyAt(day1, domain.SeverityInfo)))
	require.NoError(t, sink.Notify(anomalyAt(day1.Add(time.Hour), domain.SeverityWarning)))
	require.NoError(t, sink.Notify(anomalyAt(day2, domain.SeverityInfo)))

	// Partitioned by the observation's day, not the detection day.
	recs1 := readRecords(t, filepath.Join(dir, "alerts_20240107.jsonl"))
	require.Len(t, recs1, 2)
	recs2 := readRecords(t, filepath.Join(dir, "alerts_20240108.jsonl"))
	require.Len(t, recs2, 1)

	rec := recs1[0]
	assert.Equal(t, "ALERT_20240426151000_0001", rec.AlertID)
	assert.Equal(t, day1, rec.Timestamp)
	assert.Equal(t, detectedAt, rec.DetectedAt)
	assert.Equal(t, 45.0, rec.Observed)
	assert.Equal(t, domain.SeverityInfo, rec.Severity)
	assert.Equal(t, "above", rec.Direction)
	assert.Contains(t, rec.Message, "INFO")
	assert.Contains(t, rec.Message, "outside forecast [1.00, 9.00]")

	assert.Equal(t, "ALERT_20240426151000_0002", recs1[1].AlertID)
	assert.Equal(t, "ALERT_20240426151000_0003", recs2[0].AlertID)
}

func TestSink_CriticalEscalates(t *testing.T) {
	freezeClock(t)
	esc := &captureEscalator{}
	sink := alert.NewSink(t.TempDir(), esc, slog.Default(), observability.NewMetricsForTesting())

	ts := time.Date(2024, 1, 7, 6, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Notify(anomalyAt(ts, domain.SeverityInfo)))
	require.NoError(t, sink.Notify(anomalyAt(ts, domain.SeverityWarning)))
	require.NoError(t, sink.Notify(anomalyAt(ts, domain.SeverityCritical)))

	require.Len(t, esc.records, 1, "only CRITICAL alerts escalate")
	assert.Equal(t, domain.SeverityCritical, esc.records[0].Severity)
}

func TestSink_EscalationFailureDoesNotFailNotify(t *testing.T) {
	freezeClock(t)
	esc := &captureEscalator{err: errors.New("broker unreachable")}
	dir := t.TempDir()
	sink := alert.NewSink(dir, esc, slog.Default(), observability.NewMetricsForTesting())

	ts := time.Date(2024, 1, 7, 6, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Notify(anomalyAt(ts, domain.SeverityCritical)))

	// The durable record was still written.
	recs := readRecords(t, filepath.Join(dir, "alerts_20240107.jsonl"))
	assert.Len(t, recs, 1)
}

func TestSink_WriteFailureWrapsStorageError(t *testing.T) {
	freezeClock(t)
	// A file where the log directory should be.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	esc := &captureEscalator{}
	sink := alert.NewSink(blocked, esc, slog.Default(), observability.NewMetricsForTesting())

	ts := time.Date(2024, 1, 7, 6, 0, 0, 0, time.UTC)
	err := sink.Notify(anomalyAt(ts, domain.SeverityCritical))
	require.ErrorIs(t, err, domain.ErrStorage)
	assert.Empty(t, esc.records, "no escalation without a durable record")

	st := sink.Stats()
	assert.Zero(t, st.Total, "failed writes are not counted")
}

func TestSink_Stats(t *testing.T) {
	freezeClock(t)
	sink := alert.NewSink(t.TempDir(), &captureEscalator{}, slog.Default(), observability.NewMetricsForTesting())

	ts := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	severities := []domain.Severity{
		domain.SeverityInfo, domain.SeverityInfo, domain.SeverityInfo,
		domain.SeverityWarning, domain.SeverityWarning,
		domain.SeverityCritical,
		domain.SeverityInfo,
	}
	for i, sev := range severities {
		require.NoError(t, sink.Notify(anomalyAt(ts.Add(time.Duration(i)*time.Hour), sev)))
	}

	st := sink.Stats()
	assert.Equal(t, 7, st.Total)
	assert.Equal(t, map[string]int{"INFO": 4, "WARNING": 2, "CRITICAL": 1}, st.BySeverity)

	require.Len(t, st.Recent, 5, "recent window is capped")
	assert.Equal(t, "ALERT_20240426151000_0003", st.Recent[0].AlertID)
	assert.Equal(t, "ALERT_20240426151000_0007", st.Recent[4].AlertID)
}
