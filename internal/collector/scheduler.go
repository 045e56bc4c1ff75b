package collector

import (
	"context"
	"log/slog"
	"time"

	"sui-invariant-monitor/internal/model"
)

type Runner interface {
	Run(ctx context.Context) (model.CycleReport, error)
}

// Scheduler runs a cycle immediately, then on every tick and on every
// trigger. Overlapping requests collapse into one pending run.
type Scheduler struct {
	logger       *slog.Logger
	cycle        Runner
	interval     time.Duration
	errorBackoff time.Duration
	trigger      chan struct{}
}

func NewScheduler(logger *slog.Logger, cycle Runner, interval, errorBackoff time.Duration) *Scheduler {
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Scheduler{
		logger:       logger,
		cycle:        cycle,
		interval:     interval,
		errorBackoff: errorBackoff,
		trigger:      make(chan struct{}, 1),
	}
}

// Trigger requests an early cycle without blocking.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("starting evaluation loop", "interval", s.interval)
	if _, err := s.cycle.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("initial evaluation failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.trigger:
			s.logger.Debug("evaluation triggered")
		}
		if _, err := s.cycle.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("evaluation failed", "error", err)
			s.sleepWithContext(ctx, s.errorBackoff)
		}
	}
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
