package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// detection loop.
type Metrics struct {
	ObservationsProcessed prometheus.Counter
	AnomaliesDetected     *prometheus.CounterVec // label: severity={INFO,WARNING,CRITICAL}
	PredictionErrors      prometheus.Counter
	FeedRunning           prometheus.Gauge

	// Retraining metrics.
	RetrainsTotal   prometheus.Counter
	RetrainFailures prometheus.Counter
	FitDuration     prometheus.Histogram
	HistorySize     prometheus.Gauge
	CurrentPhase    prometheus.Gauge // 0=initial, 1=weekly, 2=monthly

	// Persistence metrics.
	StorageErrors    *prometheus.CounterVec // label: component={snapshot,alert_log,escalation}
	SnapshotsStored  prometheus.Gauge
	EscalationsTotal prometheus.Counter
}

// NewMetrics creates and registers all detection metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ObservationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "observations_processed_total",
			Help:      "Total observations consumed from the feed.",
		}),
		AnomaliesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies detected, by severity.",
		}, []string{"severity"}),
		PredictionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "prediction_errors_total",
			Help:      "Observations skipped because the model could not score them.",
		}),
		FeedRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "temp_anomaly",
			Name:      "feed_running",
			Help:      "1 while the replay feed is emitting, 0 otherwise.",
		}),
		RetrainsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "retrains_total",
			Help:      "Successful model retrains.",
		}),
		RetrainFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "retrain_failures_total",
			Help:      "Retrain attempts that failed; the previous model stayed live.",
		}),
		FitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "temp_anomaly",
			Name:      "fit_duration_seconds",
			Help:      "Duration of a full-history model fit.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		HistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "temp_anomaly",
			Name:      "history_size",
			Help:      "Observations accumulated as training history.",
		}),
		CurrentPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "temp_anomaly",
			Name:      "current_phase",
			Help:      "Retraining cadence phase: 0=initial, 1=weekly, 2=monthly.",
		}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "storage_errors_total",
			Help:      "Persistence failures, by component.",
		}, []string{"component"}),
		SnapshotsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "temp_anomaly",
			Name:      "snapshots_stored",
			Help:      "Model snapshots currently retained on disk.",
		}),
		EscalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "temp_anomaly",
			Name:      "escalations_total",
			Help:      "CRITICAL alerts forwarded to the escalation hook.",
		}),
	}

	prometheus.MustRegister(
		m.ObservationsProcessed,
		m.AnomaliesDetected,
		m.PredictionErrors,
		m.FeedRunning,
		m.RetrainsTotal,
		m.RetrainFailures,
		m.FitDuration,
		m.HistorySize,
		m.CurrentPhase,
		m.StorageErrors,
		m.SnapshotsStored,
		m.EscalationsTotal,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ObservationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "observations_processed_total"}),
		AnomaliesDetected:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "anomalies_detected_total"}, []string{"severity"}),
		PredictionErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "prediction_errors_total"}),
		FeedRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "temp_anomaly", Name: "feed_running"}),
		RetrainsTotal:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "retrains_total"}),
		RetrainFailures:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "retrain_failures_total"}),
		FitDuration:           prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "temp_anomaly", Name: "fit_duration_seconds"}),
		HistorySize:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "temp_anomaly", Name: "history_size"}),
		CurrentPhase:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "temp_anomaly", Name: "current_phase"}),
		StorageErrors:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "storage_errors_total"}, []string{"component"}),
		SnapshotsStored:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "temp_anomaly", Name: "snapshots_stored"}),
		EscalationsTotal:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "temp_anomaly", Name: "escalations_total"}),
	}
}
