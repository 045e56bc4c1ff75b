package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sui-invariant-monitor/internal/model"
)

// Observer receives per-sink delivery outcomes.
type Observer interface {
	AlertDelivered(sink string)
	AlertFailed(sink string)
}

type limitedSink struct {
	Sink
	limiter *rate.Limiter
}

// Dispatcher fans violated results out to every sink concurrently. A failing
// sink never cancels delivery to the others; all failures are joined.
type Dispatcher struct {
	sinks    []limitedSink
	logger   *slog.Logger
	observer Observer
	timeout  time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher wraps each sink in its own token bucket of ratePerSec with
// the given burst. timeout bounds one delivery including the limiter wait.
func NewDispatcher(sinks []Sink, ratePerSec float64, burst int, timeout time.Duration, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	if burst < 1 {
		burst = 1
	}
	d := &Dispatcher{logger: logger, timeout: timeout}
	for _, s := range sinks {
		d.sinks = append(d.sinks, limitedSink{Sink: s, limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)})
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Len() int {
	return len(d.sinks)
}

// Dispatch delivers every Violated result in results to every sink.
func (d *Dispatcher) Dispatch(ctx context.Context, results []model.Result) error {
	if len(d.sinks) == 0 {
		return nil
	}
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, r := range results {
		if r.Status != model.StatusViolated {
			continue
		}
		for _, s := range d.sinks {
			s, r := s, r
			g.Go(func() error {
				if err := d.deliver(ctx, s, r); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, s limitedSink, r model.Result) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err := s.limiter.Wait(ctx)
	if err == nil {
		err = s.Send(ctx, r)
	}
	if err != nil {
		d.logger.Error("failed to send alert", "sink", s.Name(), "invariant_id", r.ID, "error", err)
		if d.observer != nil {
			d.observer.AlertFailed(s.Name())
		}
		return fmt.Errorf("%s alert for %s: %w", s.Name(), r.ID, err)
	}
	if d.observer != nil {
		d.observer.AlertDelivered(s.Name())
	}
	return nil
}

// Close closes every sink and joins their errors.
func (d *Dispatcher) Close(ctx context.Context) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
