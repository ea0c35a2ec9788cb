// internal/dispatch/scheduler.go
package dispatch

import (
	"context"
	"math/rand"
	"time"

	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/common/observability"
)

// Scheduler runs dispatch cycles forever with a randomized pause between
// them. The delay is drawn uniformly from the configured minute range so
// polling does not hit the upstream source on a predictable beat.
type Scheduler struct {
	engine *Engine
	cfg    config.DispatchConfig
	obs    *observability.Observability
	logger logger.Logger

	// replaced in tests
	randIntn func(n int) int
}

func NewScheduler(engine *Engine, cfg config.DispatchConfig, obs *observability.Observability, log logger.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		cfg:      cfg,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
		randIntn: rand.Intn,
	}
}

// NextDelay returns the pause before the next cycle, uniform over
// [MinDelayMinutes, MaxDelayMinutes].
func (s *Scheduler) NextDelay() time.Duration {
	min := s.cfg.MinDelayMinutes
	max := s.cfg.MaxDelayMinutes
	if max <= min {
		return time.Duration(min) * time.Minute
	}
	return time.Duration(min+s.randIntn(max-min+1)) * time.Minute
}

// Run loops until the context is cancelled. A failed cycle is logged and
// the loop keeps going; the next cycle retries naturally.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		start := time.Now()
		stats, err := s.engine.RunCycle(ctx)
		status := "ok"
		if err != nil {
			status = "error"
			s.logger.Error("dispatch cycle failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if s.obs != nil {
			s.obs.RecordCycle(ctx, status)
			s.obs.RecordCycleDuration(ctx, time.Since(start), status)
		}

		delay := s.NextDelay()
		s.logger.Info("next cycle scheduled", map[string]interface{}{
			"delayMinutes": delay.Minutes(),
			"sent":         stats.Sent,
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
