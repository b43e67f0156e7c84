// Package engine owns the retraining-cadence state machine and anomaly
// classification. It consumes observations from the feed, scores them
// against the current model, and emits anomaly and model-update events
// to registered handlers; it never calls another component directly.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/couchcryptid/temp-anomaly-service/internal/observability"
)

// Model scores timestamps against a trained forecaster. Implementations
// must be safe for concurrent Predict calls.
type Model interface {
	Predict(ts time.Time) (domain.Forecast, error)
}

// Forecaster produces a Model from a full observation history. The
// engine depends only on this contract, not on any specific algorithm.
type Forecaster interface {
	Fit(history []domain.Observation) (Model, error)
}

// ForecasterFunc adapts a function to the Forecaster interface.
type ForecasterFunc func(history []domain.Observation) (Model, error)

func (f ForecasterFunc) Fit(history []domain.Observation) (Model, error) {
	return f(history)
}

// Config holds the cadence milestones and severity thresholds. All
// counts are cumulative observation counts since the engine began.
type Config struct {
	InitialTrainCount    int // first retrain, Initial -> Weekly (default 24)
	WeeklyTrainCount     int // second retrain, Weekly -> Monthly (default 168)
	MonthlyTrainInterval int // steady-state retrain interval (default 720)

	Thresholds Thresholds
}

// AnomalyHandler receives each detected anomaly, at most one per observation.
type AnomalyHandler func(domain.Anomaly)

// UpdateHandler receives the new model after each successful retrain.
type UpdateHandler func(Model, domain.ModelUpdate)

// Engine is the forecast engine: phase, accumulated history, the live
// model, and the retrain schedule. Construct one per run with New;
// state is never ambient.
type Engine struct {
	cfg        Config
	forecaster Forecaster
	logger     *slog.Logger
	metrics    *observability.Metrics

	// mu guards the model swap and the retrain schedule. History is
	// only touched by HandleObservation, which is single-threaded by
	// contract with the feed.
	mu            sync.Mutex
	model         Model
	phase         domain.Phase
	count         int
	nextRetrainAt int
	retrains      int
	fitFailures   int

	history []domain.Observation

	training atomic.Bool
	ready    atomic.Bool
	wg       sync.WaitGroup

	anomalyHandlers []AnomalyHandler
	updateHandlers  []UpdateHandler
}

// New creates an Engine in the Initial phase with no live model.
func New(cfg Config, forecaster Forecaster, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		cfg:           cfg,
		forecaster:    forecaster,
		logger:        logger,
		metrics:       metrics,
		phase:         domain.PhaseInitial,
		nextRetrainAt: cfg.InitialTrainCount,
	}
}

// OnAnomaly registers an anomaly handler. Not safe to call once
// observations are flowing.
func (e *Engine) OnAnomaly(h AnomalyHandler) {
	e.anomalyHandlers = append(e.anomalyHandlers, h)
}

// OnModelUpdated registers a model-update handler. Not safe to call
// once observations are flowing.
func (e *Engine) OnModelUpdated(h UpdateHandler) {
	e.updateHandlers = append(e.updateHandlers, h)
}

// SetModel installs an initial model, used to warm-start from a
// persisted snapshot before the first observation arrives. The cadence
// is unaffected: the first scheduled retrain still happens.
func (e *Engine) SetModel(m Model) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = m
}

// HandleObservation processes one observation: append to history,
// classify against the live model if any, then evaluate the retrain
// trigger. In-loop errors are logged and counted, never propagated.
func (e *Engine) HandleObservation(obs domain.Observation) {
	e.history = append(e.history, obs)

	e.mu.Lock()
	e.count++
	count := e.count
	model := e.model
	e.mu.Unlock()

	e.metrics.ObservationsProcessed.Inc()
	e.metrics.HistorySize.Set(float64(len(e.history)))
	e.ready.Store(true)

	if model != nil {
		e.classifyAndEmit(model, obs)
	}

	// The trigger check reads the schedule after classification, under
	// the same lock as the CAS: a retrain finishing while this
	// observation was being classified has already moved the boundary
	// forward, and a stale boundary must not fire a second retrain for
	// the same milestone.
	e.mu.Lock()
	boundary := e.nextRetrainAt
	phase := e.phase
	due := count >= boundary && e.training.CompareAndSwap(false, true)
	e.mu.Unlock()
	if !due {
		return
	}

	snapshot := slices.Clone(e.history)
	e.wg.Add(1)
	go e.retrain(snapshot, obs.Timestamp, boundary, phase)
}

// classifyAndEmit scores one observation and emits at most one anomaly.
// A prediction failure means the observation cannot be judged, so no
// alert is fabricated from missing data.
func (e *Engine) classifyAndEmit(model Model, obs domain.Observation) {
	fc, err := model.Predict(obs.Timestamp)
	if err != nil {
		e.metrics.PredictionErrors.Inc()
		if errors.Is(err, domain.ErrPrediction) {
			e.logger.Warn("prediction skipped", "timestamp", obs.Timestamp, "error", err)
		} else {
			e.logger.Error("prediction failed", "timestamp", obs.Timestamp, "error", err)
		}
		return
	}

	anomaly, ok := classify(fc, obs, e.cfg.Thresholds)
	if !ok {
		return
	}

	e.metrics.AnomaliesDetected.WithLabelValues(anomaly.Severity.String()).Inc()
	e.logger.Info("anomaly detected",
		"timestamp", anomaly.Timestamp,
		"observed", anomaly.Observed,
		"point", anomaly.Forecast.Point,
		"deviation", anomaly.Deviation,
		"severity", anomaly.Severity.String(),
	)
	for _, h := range e.anomalyHandlers {
		h(anomaly)
	}
}

// retrain runs one full-history batch fit on the worker goroutine.
// Observations keep flowing while it runs and are classified against
// the previous model; installing the new model is the only mutation
// taken under the lock.
func (e *Engine) retrain(history []domain.Observation, trainedAt time.Time, boundary int, phase domain.Phase) {
	defer e.wg.Done()
	defer e.training.Store(false)

	e.logger.Info("retrain started", "phase", phase.String(), "boundary", boundary, "history_size", len(history))

	start := time.Now()
	model, err := e.forecaster.Fit(history)
	e.metrics.FitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.RetrainFailures.Inc()
		e.mu.Lock()
		e.fitFailures++
		e.nextRetrainAt = boundary + e.phaseInterval(phase)
		next := e.nextRetrainAt
		e.mu.Unlock()
		e.logger.Error("retrain failed, previous model stays live",
			"phase", phase.String(), "boundary", boundary, "next_attempt", next, "error", err)
		return
	}

	e.mu.Lock()
	e.model = model
	e.retrains++
	if phase == e.phase {
		e.phase = nextPhase(phase)
	}
	newPhase := e.phase
	e.nextRetrainAt = e.scheduleAfterSuccess(boundary, newPhase)
	e.mu.Unlock()

	e.metrics.RetrainsTotal.Inc()
	e.metrics.CurrentPhase.Set(float64(newPhase))
	e.logger.Info("model updated",
		"phase", newPhase.String(),
		"trained_at", trainedAt,
		"history_size", len(history),
		"fit_duration", time.Since(start),
	)

	update := domain.ModelUpdate{
		TrainedAt:   trainedAt,
		HistorySize: len(history),
		Phase:       newPhase,
	}
	for _, h := range e.updateHandlers {
		h(model, update)
	}
}

// scheduleAfterSuccess returns the next absolute retrain milestone once
// the phase has advanced: the weekly milestone after the first retrain,
// then one monthly interval past the triggering boundary.
func (e *Engine) scheduleAfterSuccess(boundary int, newPhase domain.Phase) int {
	switch newPhase {
	case domain.PhaseWeekly:
		if e.cfg.WeeklyTrainCount > boundary {
			return e.cfg.WeeklyTrainCount
		}
		// Failures pushed the first success past the weekly milestone.
		return boundary + e.cfg.WeeklyTrainCount
	default:
		return boundary + e.cfg.MonthlyTrainInterval
	}
}

// phaseInterval is the retry spacing after a failed fit: one
// phase-length of observations, so a failure is re-attempted at the
// next scheduled boundary rather than immediately.
func (e *Engine) phaseInterval(p domain.Phase) int {
	switch p {
	case domain.PhaseInitial:
		return e.cfg.InitialTrainCount
	case domain.PhaseWeekly:
		return e.cfg.WeeklyTrainCount
	default:
		return e.cfg.MonthlyTrainInterval
	}
}

func nextPhase(p domain.Phase) domain.Phase {
	switch p {
	case domain.PhaseInitial:
		return domain.PhaseWeekly
	default:
		return domain.PhaseMonthly
	}
}

// WaitForTraining blocks until no retrain is in flight. Shutdown uses
// it so an in-progress fit can complete instead of being abandoned
// mid-snapshot.
func (e *Engine) WaitForTraining() {
	e.wg.Wait()
}

// CheckReadiness reports ready once at least one observation has been
// processed.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not processed any observations yet")
	}
	return nil
}

// Status is a point-in-time snapshot for the status reporter.
type Status struct {
	Phase         string `json:"phase"`
	Observations  int    `json:"observations"`
	HistorySize   int    `json:"history_size"`
	ModelLive     bool   `json:"model_live"`
	NextRetrainAt int    `json:"next_retrain_at"`
	Retrains      int    `json:"retrains"`
	FitFailures   int    `json:"fit_failures"`
}

// Status returns the current engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Phase:         e.phase.String(),
		Observations:  e.count,
		HistorySize:   e.count,
		ModelLive:     e.model != nil,
		NextRetrainAt: e.nextRetrainAt,
		Retrains:      e.retrains,
		FitFailures:   e.fitFailures,
	}
}
