package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sui-invariant-monitor/internal/aggregator"
	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
	"sui-invariant-monitor/internal/state"
)

// Evaluator runs every check against a snapshot and passes the results to
// publish while the check registry is still held.
type Evaluator interface {
	EvaluateThen(current model.Snapshot, publish func([]model.Result))
}

type Dispatcher interface {
	Dispatch(ctx context.Context, results []model.Result) error
}

type Recorder interface {
	ObserveCycle(results []model.Result, took time.Duration, at time.Time)
	CycleFailed()
	SetMonitoredObjects(n int)
}

// Cycle is one fetch, aggregate, evaluate, publish and alert pass.
type Cycle struct {
	logger     *slog.Logger
	fetcher    Fetcher
	aggregator *aggregator.Aggregator
	engine     Evaluator
	store      *state.Store
	dispatcher Dispatcher
	recorder   Recorder
	now        func() time.Time
}

func NewCycle(
	logger *slog.Logger,
	fetcher Fetcher,
	agg *aggregator.Aggregator,
	engine Evaluator,
	store *state.Store,
	dispatcher Dispatcher,
	recorder Recorder,
) *Cycle {
	return &Cycle{
		logger:     logger,
		fetcher:    fetcher,
		aggregator: agg,
		engine:     engine,
		store:      store,
		dispatcher: dispatcher,
		recorder:   recorder,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one cycle. Alert delivery failures are logged, not returned:
// the results are already published by then.
func (c *Cycle) Run(ctx context.Context) (model.CycleReport, error) {
	started := c.now()
	snap, objectGen, err := c.collect(ctx)
	if err != nil {
		if c.recorder != nil {
			c.recorder.CycleFailed()
		}
		return model.CycleReport{}, err
	}

	var (
		report   model.CycleReport
		finished time.Time
	)
	c.engine.EvaluateThen(snap, func(results []model.Result) {
		report = NewCycleReport(snap, results)
		finished = c.now()
		c.store.Publish(report, finished, objectGen)
	})
	if c.recorder != nil {
		c.recorder.ObserveCycle(report.Results, finished.Sub(started), finished)
	}

	level := slog.LevelInfo
	if report.Violations > 0 {
		level = slog.LevelWarn
	}
	c.logger.Log(ctx, level, "evaluation complete",
		"invariants", len(report.Results),
		"violations", report.Violations,
		"errors", report.Errors)

	if c.dispatcher != nil && report.Violations > 0 {
		if err := c.dispatcher.Dispatch(ctx, report.Results); err != nil {
			c.logger.Error("alert dispatch incomplete", "error", err)
		}
	}
	return report, nil
}

func (c *Cycle) collect(ctx context.Context) (model.Snapshot, uint64, error) {
	ids, objectGen := c.store.ObjectSet()
	if c.recorder != nil {
		c.recorder.SetMonitoredObjects(len(ids))
	}

	records, err := c.fetcher.FetchRecords(ctx, ids)
	if err != nil {
		return model.Snapshot{}, 0, fmt.Errorf("fetch records: %w", err)
	}
	balance, err := c.fetcher.OnChainBalance(ctx)
	if err != nil {
		return model.Snapshot{}, 0, fmt.Errorf("fetch on-chain balance: %w", err)
	}

	snap, err := c.aggregator.Aggregate(records, balance)
	if err != nil {
		return model.Snapshot{}, 0, fmt.Errorf("aggregate: %w", err)
	}
	c.logger.Info("fetched state",
		"objects", len(records),
		"supply", snap.TotalSupply,
		"borrowed", snap.TotalBorrowed,
		"reserves", snap.TotalReserves,
		"collateral", snap.CollateralValue)

	return snap, objectGen, nil
}

func NewCycleReport(snap model.Snapshot, results []model.Result) model.CycleReport {
	return model.CycleReport{
		Snapshot:   snap,
		Results:    results,
		Violations: invariant.ViolationCount(results),
		Errors:     invariant.ErrorCount(results),
		AllOK:      invariant.AllOK(results),
	}
}
