// Command detector streams a historical hourly weather archive as if it
// arrived live, retrains a seasonal forecasting model on the 24/168/720
// observation cadence, and raises alerts for observations outside the
// model's confidence band.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/temp-anomaly-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/temp-anomaly-service/internal/adapter/kafka"
	"github.com/couchcryptid/temp-anomaly-service/internal/alert"
	"github.com/couchcryptid/temp-anomaly-service/internal/config"
	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/couchcryptid/temp-anomaly-service/internal/engine"
	"github.com/couchcryptid/temp-anomaly-service/internal/feed"
	"github.com/couchcryptid/temp-anomaly-service/internal/forecast"
	"github.com/couchcryptid/temp-anomaly-service/internal/observability"
	"github.com/couchcryptid/temp-anomaly-service/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dataPath  string
		speed     float64
		resume    bool
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "detector",
		Short: "Real-time temperature anomaly detection over a replayed archive",
		Long: `Replays a JSONL archive of hourly temperature observations at a
configurable speed, incrementally retrains a seasonal forecasting model,
and raises INFO/WARNING/CRITICAL alerts for observations outside the
model's confidence band.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// CLI flags override environment configuration.
			flags := cmd.Flags()
			if flags.Changed("data") {
				cfg.DataPath = dataPath
			}
			if flags.Changed("speed") {
				cfg.ReplaySpeed = speed
			}
			if flags.Changed("resume") {
				cfg.ResumeFromLatest = resume
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "path to the JSONL observation archive (required unless DATA_PATH is set)")
	cmd.Flags().Float64Var(&speed, "speed", 0, "replay speed: 0 = fastest, 1.0 = real-time, N = N x real-time")
	cmd.Flags().BoolVar(&resume, "resume", false, "warm-start from the latest persisted model snapshot")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "log format: json or text")

	return cmd
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	observations, err := feed.Load(cfg.DataPath)
	if err != nil {
		logger.Error("failed to load observation archive", "path", cfg.DataPath, "error", err)
		return err
	}
	logger.Info("archive loaded",
		"path", cfg.DataPath,
		"observations", len(observations),
		"from", observations[0].Timestamp,
		"to", observations[len(observations)-1].Timestamp,
	)

	seasonal := forecast.NewSeasonal(forecast.Config{ConfidenceZ: cfg.ConfidenceZ})
	eng := engine.New(engine.Config{
		InitialTrainCount:    cfg.InitialTrainCount,
		WeeklyTrainCount:     cfg.WeeklyTrainCount,
		MonthlyTrainInterval: cfg.MonthlyTrainInterval,
		Thresholds:           engine.Thresholds{Info: cfg.InfoThreshold, Warning: cfg.WarningThreshold},
	}, engine.ForecasterFunc(func(history []domain.Observation) (engine.Model, error) {
		return seasonal.Fit(history)
	}), logger, metrics)

	st := store.New(cfg.SnapshotDir, cfg.SnapshotRetention, logger)

	// Escalation hook for CRITICAL alerts (feature-flagged Kafka).
	var escalator alert.Escalator = &alert.LogEscalator{Logger: logger}
	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		escalator = publisher
		logger.Info("kafka escalation enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka escalation disabled")
	}

	sink := alert.NewSink(cfg.AlertLogDir, escalator, logger, metrics)

	if cfg.ResumeFromLatest {
		warmStart(eng, st, logger)
	}

	// Event wiring: feed -> engine -> {store, alert sink}. Components
	// only see each other through these registered handlers.
	eng.OnAnomaly(func(a domain.Anomaly) {
		if err := sink.Notify(a); err != nil {
			logger.Error("alert write failed", "timestamp", a.Timestamp, "error", err)
		}
	})
	eng.OnModelUpdated(func(m engine.Model, u domain.ModelUpdate) {
		enc, ok := m.(store.Encoder)
		if !ok {
			logger.Warn("model is not snapshotable, skipping save")
			return
		}
		if err := st.Save(enc, u.TrainedAt, u.HistorySize); err != nil {
			metrics.StorageErrors.WithLabelValues("snapshot").Inc()
			logger.Error("snapshot save failed", "trained_at", u.TrainedAt, "error", err)
			return
		}
		metrics.SnapshotsStored.Set(float64(st.Usage().Count))
	})

	replayer := feed.NewReplayer(observations, cfg.ReplaySpeed, clockwork.NewRealClock(), logger)

	status := func() any {
		emitted, total := replayer.Progress()
		return statusSnapshot{
			Progress: progressStatus{Emitted: emitted, Total: total},
			Engine:   eng.Status(),
			Alerts:   sink.Stats(),
			Storage:  st.Usage(),
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, eng, status, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go statusLoop(ctx, cfg.StatusInterval, logger, status)

	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		metrics.FeedRunning.Set(1)
		defer metrics.FeedRunning.Set(0)
		if err := replayer.Run(ctx, eng.HandleObservation); err != nil {
			logger.Error("replay error", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-replayDone:
		logger.Info("replay finished, waiting for shutdown signal")
		<-ctx.Done()
	}
	logger.Info("shutting down")

	// Let any in-flight retrain finish so we never abandon a snapshot
	// mid-write.
	<-replayDone
	eng.WaitForTraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logFinalStatistics(logger, eng, sink, st)
	logger.Info("shutdown complete")
	return nil
}

// warmStart installs the latest persisted snapshot as the initial model
// so predictions can begin before the first scheduled retrain.
func warmStart(eng *engine.Engine, st *store.Store, logger *slog.Logger) {
	snap, err := st.LoadLatest()
	if err != nil {
		if errors.Is(err, domain.ErrNoSnapshot) {
			logger.Info("no snapshot to resume from, starting cold")
		} else {
			logger.Error("snapshot load failed, starting cold", "error", err)
		}
		return
	}
	model, err := forecast.DecodeModel(snap.Model)
	if err != nil {
		logger.Error("snapshot decode failed, starting cold", "error", err)
		return
	}
	eng.SetModel(model)
	logger.Info("resumed from snapshot", "trained_at", snap.TrainedAt, "history_size", snap.HistorySize)
}

type progressStatus struct {
	Emitted int `json:"emitted"`
	Total   int `json:"total"`
}

type statusSnapshot struct {
	Progress progressStatus `json:"progress"`
	Engine   engine.Status  `json:"engine"`
	Alerts   alert.Stats    `json:"alerts"`
	Storage  store.Usage    `json:"storage"`
}

// statusLoop periodically logs an advisory status line: progress,
// phase, alert counts, storage usage.
func statusLoop(ctx context.Context, interval time.Duration, logger *slog.Logger, status func() any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, ok := status().(statusSnapshot)
			if !ok {
				continue
			}
			logger.Info("status",
				"progress", fmt.Sprintf("%d/%d", snap.Progress.Emitted, snap.Progress.Total),
				"phase", snap.Engine.Phase,
				"model_live", snap.Engine.ModelLive,
				"retrains", snap.Engine.Retrains,
				"alerts_total", snap.Alerts.Total,
				"alerts_by_severity", snap.Alerts.BySeverity,
				"snapshots", snap.Storage.Count,
				"storage_bytes", snap.Storage.TotalBytes,
			)
		}
	}
}

func logFinalStatistics(logger *slog.Logger, eng *engine.Engine, sink *alert.Sink, st *store.Store) {
	es := eng.Status()
	as := sink.Stats()
	su := st.Usage()
	logger.Info("final statistics",
		"observations", es.Observations,
		"phase", es.Phase,
		"retrains", es.Retrains,
		"fit_failures", es.FitFailures,
		"alerts_total", as.Total,
		"alerts_by_severity", as.BySeverity,
		"snapshots", su.Count,
		"storage_bytes", su.TotalBytes,
	)
}
