package collector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-invariant-monitor/internal/aggregator"
	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
	"sui-invariant-monitor/internal/observability"
	"sui-invariant-monitor/internal/state"
)

type fakeFetcher struct {
	mu         sync.Mutex
	records    []model.RawRecord
	balance    model.Amount
	fetchErr   error
	balanceErr error
	seenIDs    [][]string
	onFetch    func()
}

func (f *fakeFetcher) FetchRecords(_ context.Context, ids []string) ([]model.RawRecord, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenIDs = append(f.seenIDs, ids)
	return f.records, f.fetchErr
}

func (f *fakeFetcher) OnChainBalance(context.Context) (model.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeFetcher) set(records []model.RawRecord) {
	f.mu.Lock()
	f.records = records
	f.mu.Unlock()
}

type fakeDispatcher struct {
	calls atomic.Int32
	err   error
}

func (d *fakeDispatcher) Dispatch(context.Context, []model.Result) error {
	d.calls.Add(1)
	return d.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func poolRecord(collateral int) model.RawRecord {
	return model.RawRecord{
		"total_supply":     "1000",
		"total_reserves":   "400",
		"total_borrowed":   "600",
		"collateral_value": collateral,
	}
}

type harness struct {
	fetcher    *fakeFetcher
	dispatcher *fakeDispatcher
	store      *state.Store
	engine     *state.GuardedEngine
	metrics    *observability.Metrics
	cycle      *Cycle
}

func newHarness(logger *slog.Logger) *harness {
	h := &harness{
		fetcher:    &fakeFetcher{balance: model.NewAmount(400), records: []model.RawRecord{poolRecord(900)}},
		dispatcher: &fakeDispatcher{},
		store:      state.NewStore(time.Now(), []string{"0x1"}),
		engine:     state.NewGuardedEngine(invariant.NewDefaultEngine()),
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	}
	h.cycle = NewCycle(logger, h.fetcher, aggregator.New(logger), h.engine, h.store, h.dispatcher, h.metrics)
	return h
}

func TestCycle_HealthyPoolPublishesWithoutAlerts(t *testing.T) {
	h := newHarness(discardLogger())

	report, err := h.cycle.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.AllOK)
	assert.Len(t, report.Results, 5)
	assert.Equal(t, int32(0), h.dispatcher.calls.Load())

	assert.Len(t, h.store.Results(), 5)
	snap, ok := h.store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "1000", snap.TotalSupply.String())
	assert.Equal(t, "400", snap.OnChainBalance.String())
	assert.Equal(t, [][]string{{"0x1"}}, h.fetcher.seenIDs)
	n, err := testutil.GatherAndCount(h.metrics.Registry(), "sui_monitor_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCycle_ObjectAddedDuringFetchStaysPending(t *testing.T) {
	h := newHarness(discardLogger())
	h.fetcher.onFetch = func() {
		h.fetcher.onFetch = nil
		assert.True(t, h.store.AddObject("0x2"))
	}

	_, err := h.cycle.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, h.store.Pending())

	_, err = h.cycle.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, h.store.Pending())
	assert.Equal(t, [][]string{{"0x1"}, {"0x1", "0x2"}}, h.fetcher.seenIDs)
}

func TestCycle_ViolationDispatchesAndLogsWarn(t *testing.T) {
	var logs bytes.Buffer
	h := newHarness(slog.New(slog.NewTextHandler(&logs, nil)))
	h.fetcher.set([]model.RawRecord{poolRecord(800)})
	h.dispatcher.err = errors.New("webhook down")

	report, err := h.cycle.Run(context.Background())
	require.NoError(t, err, "alert failures do not fail the cycle")
	assert.Equal(t, 1, report.Violations)
	assert.Equal(t, int32(1), h.dispatcher.calls.Load())
	assert.Contains(t, logs.String(), "level=WARN msg=\"evaluation complete\"")
	assert.Contains(t, logs.String(), "alert dispatch incomplete")

	r, ok := h.store.Result("INV-002")
	require.True(t, ok)
	assert.Equal(t, model.StatusViolated, r.Status)
}

func TestCycle_FetchFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(discardLogger())
	h.fetcher.fetchErr = errors.New("node unreachable")

	_, err := h.cycle.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.store.Results())
	n, gatherErr := testutil.GatherAndCount(h.metrics.Registry(), "sui_monitor_cycles_total")
	require.NoError(t, gatherErr)
	assert.Equal(t, 1, n)
	_, evaluated := h.engine.Previous()
	assert.False(t, evaluated, "history must not advance on a failed fetch")
}

func TestCycle_BalanceFailureFailsCycle(t *testing.T) {
	h := newHarness(discardLogger())
	h.fetcher.balanceErr = errors.New("rpc timeout")

	_, err := h.cycle.Run(context.Background())
	assert.ErrorContains(t, err, "on-chain balance")
}

func TestCycle_InterestHistoryAcrossCycles(t *testing.T) {
	h := newHarness(discardLogger())
	rec := poolRecord(900)
	rec["interest_index"] = "1000000000"
	h.fetcher.set([]model.RawRecord{rec})
	_, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	rec = poolRecord(900)
	rec["interest_index"] = "999000000"
	h.fetcher.set([]model.RawRecord{rec})
	report, err := h.cycle.Run(context.Background())
	require.NoError(t, err)

	r, ok := invariant.Find(report.Results, "INV-004")
	require.True(t, ok)
	assert.Equal(t, model.StatusViolated, r.Status)
}
