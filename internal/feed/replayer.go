package feed

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/temp-anomaly-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Replayer emits a loaded observation sequence in timestamp order.
//
// Speed semantics: 0 emits as fast as the consumer accepts, 1.0 waits
// the real inter-timestamp gap between events, N waits 1/N of it.
// Pacing sleeps go through the injected clock so tests can freeze time.
type Replayer struct {
	observations []domain.Observation
	speed        float64
	clock        clockwork.Clock
	logger       *slog.Logger
	emitted      atomic.Int64
}

// NewReplayer creates a Replayer over an already loaded sequence.
func NewReplayer(observations []domain.Observation, speed float64, clock clockwork.Clock, logger *slog.Logger) *Replayer {
	return &Replayer{
		observations: observations,
		speed:        speed,
		clock:        clock,
		logger:       logger,
	}
}

// Run emits each observation through emit, pacing between events
// according to the configured speed. Cancelling the context stops the
// replay before the next emission; no partial event is ever delivered.
// Run is restartable: a new call replays from the beginning.
func (r *Replayer) Run(ctx context.Context, emit func(domain.Observation)) error {
	r.emitted.Store(0)
	r.logger.Info("replay started", "observations", len(r.observations), "speed", r.speed)

	var prev time.Time
	for i, obs := range r.observations {
		if i > 0 && r.speed > 0 {
			gap := obs.Timestamp.Sub(prev)
			delay := time.Duration(float64(gap) / r.speed)
			if !r.sleep(ctx, delay) {
				r.logger.Info("replay stopping", "reason", ctx.Err(), "emitted", i)
				return nil
			}
		} else if ctx.Err() != nil {
			r.logger.Info("replay stopping", "reason", ctx.Err(), "emitted", i)
			return nil
		}

		emit(obs)
		r.emitted.Add(1)
		prev = obs.Timestamp
	}

	r.logger.Info("replay complete", "observations", len(r.observations))
	return nil
}

// Progress returns how many observations have been emitted so far and
// the total sequence length.
func (r *Replayer) Progress() (emitted, total int) {
	return int(r.emitted.Load()), len(r.observations)
}

// sleep waits for d on the replay clock, returning false if the context
// is cancelled first.
func (r *Replayer) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-r.clock.After(d):
		return true
	}
}
