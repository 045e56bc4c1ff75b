package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-invariant-monitor/internal/model"
)

type fakeSink struct {
	name  string
	err   error
	delay time.Duration

	mu   sync.Mutex
	sent []string
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Send(ctx context.Context, r model.Result) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.sent = append(f.sent, r.ID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Close(context.Context) error { return f.err }

func (f *fakeSink) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type countingObserver struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{delivered: map[string]int{}, failed: map[string]int{}}
}

func (o *countingObserver) AlertDelivered(s string) { o.mu.Lock(); o.delivered[s]++; o.mu.Unlock() }
func (o *countingObserver) AlertFailed(s string)    { o.mu.Lock(); o.failed[s]++; o.mu.Unlock() }

func mixedResults() []model.Result {
	v := violated()
	ok := model.OKResult(model.Identity{ID: "INV-001"}, model.NewComputation("f").WithResult("r"), evaluatedAt)
	e := model.ErrorResult(model.Identity{ID: "INV-009"}, "boom", evaluatedAt)
	return []model.Result{ok, v, e}
}

func TestDispatcher_OnlyViolationsAreSent(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	obs := newCountingObserver()
	d := NewDispatcher([]Sink{a, b}, 100, 10, time.Second, discardLogger(), WithObserver(obs))

	require.NoError(t, d.Dispatch(context.Background(), mixedResults()))
	assert.Equal(t, []string{"INV-002"}, a.ids())
	assert.Equal(t, []string{"INV-002"}, b.ids())
	assert.Equal(t, 1, obs.delivered["a"])
	assert.Equal(t, 1, obs.delivered["b"])
}

func TestDispatcher_FailingSinkDoesNotStopOthers(t *testing.T) {
	boom := errors.New("receiver down")
	bad := &fakeSink{name: "bad", err: boom}
	slow := &fakeSink{name: "slow", delay: 30 * time.Millisecond}
	obs := newCountingObserver()
	d := NewDispatcher([]Sink{bad, slow}, 100, 10, time.Second, discardLogger(), WithObserver(obs))

	err := d.Dispatch(context.Background(), mixedResults())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad alert for INV-002")
	assert.Equal(t, []string{"INV-002"}, slow.ids())
	assert.Equal(t, 1, obs.failed["bad"])
	assert.Equal(t, 1, obs.delivered["slow"])
}

func TestDispatcher_NoSinks(t *testing.T) {
	d := NewDispatcher(nil, 1, 1, time.Second, discardLogger())
	assert.Equal(t, 0, d.Len())
	assert.NoError(t, d.Dispatch(context.Background(), mixedResults()))
}

func TestDispatcher_RateLimitBoundedByTimeout(t *testing.T) {
	s := &fakeSink{name: "limited"}
	// one token, refilled every 100s: the second alert cannot get a token
	// before the 50ms delivery timeout
	d := NewDispatcher([]Sink{s}, 0.01, 1, 50*time.Millisecond, discardLogger())

	results := []model.Result{violated(), violated()}
	err := d.Dispatch(context.Background(), results)
	require.Error(t, err)
	assert.Len(t, s.ids(), 1)
}

func TestDispatcher_CloseJoinsErrors(t *testing.T) {
	boom := errors.New("close failed")
	d := NewDispatcher([]Sink{&fakeSink{name: "a", err: boom}, &fakeSink{name: "b"}}, 1, 1, time.Second, discardLogger())
	err := d.Close(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close a")
}
