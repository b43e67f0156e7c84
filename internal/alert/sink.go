// Package alert durably records anomalies in an append-only,
// date-partitioned JSONL log and runs the severity-dependent
// escalation side effect for CRITICAL alerts.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/couchcryptid/temp-anomaly-service/internal/observability"
)

const recentAlerts = 5

// Record is one alert log line.
type Record struct {
	AlertID    string          `json:"alert_id"`
	Timestamp  time.Time       `json:"timestamp"`
	DetectedAt time.Time       `json:"detected_at"`
	Observed   float64         `json:"observed"`
	Forecast   domain.Forecast `json:"forecast"`
	Deviation  float64         `json:"deviation"`
	Severity   domain.Severity `json:"severity"`
	Direction  string          `json:"direction,omitempty"`
	Message    string          `json:"message"`
}

// Escalator is the synchronous side effect for CRITICAL alerts.
type Escalator interface {
	Escalate(ctx context.Context, rec Record) error
}

// LogEscalator is the default escalation hook: a structured log line at
// error level. Used when no external hook (Kafka) is configured.
type LogEscalator struct {
	Logger *slog.Logger
}

func (l *LogEscalator) Escalate(_ context.Context, rec Record) error {
	l.Logger.Error("critical anomaly escalation",
		"alert_id", rec.AlertID,
		"timestamp", rec.Timestamp,
		"observed", rec.Observed,
		"deviation", rec.Deviation,
	)
	return nil
}

// Sink appends alert records to per-day JSONL files. Files are named
// alerts_<YYYYMMDD>.jsonl after the observation's calendar day and are
// never overwritten.
type Sink struct {
	dir       string
	escalator Escalator
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu         sync.Mutex
	total      int
	bySeverity map[string]int
	recent     []Record
	seq        int
}

// NewSink creates a Sink. The log directory is created on first write.
func NewSink(dir string, escalator Escalator, logger *slog.Logger, metrics *observability.Metrics) *Sink {
	return &Sink{
		dir:        dir,
		escalator:  escalator,
		logger:     logger,
		metrics:    metrics,
		bySeverity: make(map[string]int),
	}
}

// Notify appends one record for the anomaly and, for CRITICAL severity,
// runs the escalation hook synchronously before returning. Log write
// failures wrap domain.ErrStorage; escalation failures are reported
// here and never propagated across the event boundary.
func (s *Sink) Notify(anomaly domain.Anomaly) error {
	rec := s.buildRecord(anomaly)

	if err := s.append(rec); err != nil {
		s.metrics.StorageErrors.WithLabelValues("alert_log").Inc()
		return err
	}

	s.mu.Lock()
	s.total++
	s.bySeverity[rec.Severity.String()]++
	s.recent = append(s.recent, rec)
	if len(s.recent) > recentAlerts {
		s.recent = s.recent[1:]
	}
	s.mu.Unlock()

	if anomaly.Severity == domain.SeverityCritical {
		s.escalate(rec)
	}
	return nil
}

// Stats summarizes recorded alerts for status reporting.
type Stats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	Recent     []Record       `json:"recent"`
}

// Stats returns cumulative alert counts and the most recent records.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySeverity := make(map[string]int, len(s.bySeverity))
	for k, v := range s.bySeverity {
		bySeverity[k] = v
	}
	recent := make([]Record, len(s.recent))
	copy(recent, s.recent)

	return Stats{Total: s.total, BySeverity: bySeverity, Recent: recent}
}

func (s *Sink) buildRecord(anomaly domain.Anomaly) Record {
	now := domain.Clock().Now().UTC()

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("ALERT_%s_%04d", now.Format("20060102150405"), s.seq)
	s.mu.Unlock()

	return Record{
		AlertID:    id,
		Timestamp:  anomaly.Timestamp,
		DetectedAt: now,
		Observed:   anomaly.Observed,
		Forecast:   anomaly.Forecast,
		Deviation:  anomaly.Deviation,
		Severity:   anomaly.Severity,
		Direction:  anomaly.Direction,
		Message: fmt.Sprintf("%s: temperature %.2f outside forecast [%.2f, %.2f] at %s",
			anomaly.Severity, anomaly.Observed, anomaly.Forecast.Lower, anomaly.Forecast.Upper,
			anomaly.Timestamp.Format(time.RFC3339)),
	}
}

// append writes the record as a single JSONL line. One Write call per
// line keeps concurrent-reader views consistent; the file is opened
// append-only and never truncated.
func (s *Sink) append(rec Record) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrStorage, s.dir, err)
	}

	path := filepath.Join(s.dir, "alerts_"+rec.Timestamp.UTC().Format("20060102")+".jsonl")
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal alert: %v", domain.ErrStorage, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", domain.ErrStorage, path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorage, path, err)
	}
	return nil
}

func (s *Sink) escalate(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.escalator.Escalate(ctx, rec); err != nil {
		s.metrics.StorageErrors.WithLabelValues("escalation").Inc()
		s.logger.Error("escalation failed", "alert_id", rec.AlertID, "error", err)
		return
	}
	s.metrics.EscalationsTotal.Inc()
}
