package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func report(results ...model.Result) model.CycleReport {
	return model.CycleReport{
		Snapshot:   model.NewSnapshot(t0),
		Results:    results,
		Violations: invariant.ViolationCount(results),
		AllOK:      invariant.AllOK(results),
	}
}

func okResult(id string) model.Result {
	return model.OKResult(model.Identity{ID: id}, model.NewComputation("x").WithResult("ok"), t0)
}

func TestStore_StatusBeforeFirstCycle(t *testing.T) {
	s := NewStore(t0, nil)
	st := s.Status(t0.Add(90 * time.Second))

	assert.Nil(t, st.LastCheck)
	assert.False(t, st.AllOK)
	assert.Equal(t, 0, st.TotalInvariants)
	assert.Equal(t, []string{}, st.MonitoredObjects)
	assert.EqualValues(t, 90, st.UptimeSecs)

	_, ok := s.Snapshot()
	assert.False(t, ok)
}

func TestStore_PublishClearsPending(t *testing.T) {
	s := NewStore(t0, []string{"0xabc"})
	assert.False(t, s.Pending(), "configured objects are not pending")
	assert.True(t, s.AddObject("0xdef"))
	assert.True(t, s.Pending())

	_, gen := s.ObjectSet()
	s.Publish(report(okResult("INV-001")), t0.Add(time.Second), gen)

	assert.False(t, s.Pending())
	st := s.Status(t0.Add(2 * time.Second))
	require.NotNil(t, st.LastCheck)
	assert.Equal(t, t0.Add(time.Second), *st.LastCheck)
	assert.True(t, st.AllOK)
	assert.Equal(t, 1, st.TotalInvariants)

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.True(t, snap.InterestIndex.Equal(model.NewAmount(model.InterestIndexScale)))
}

func TestStore_PublishKeepsPendingForObjectAddedMidCycle(t *testing.T) {
	s := NewStore(t0, []string{"0xabc"})
	ids, gen := s.ObjectSet()
	assert.Equal(t, []string{"0xabc"}, ids)

	assert.True(t, s.AddObject("0xdef"))
	s.Publish(report(okResult("INV-001")), t0, gen)
	assert.True(t, s.Pending(), "0xdef was not fetched by the published cycle")
	assert.True(t, s.Status(t0).PendingEval)

	_, next := s.ObjectSet()
	assert.NotEqual(t, gen, next)
	s.Publish(report(okResult("INV-001")), t0, next)
	assert.False(t, s.Pending())
}

func TestStore_AddObjectDeduplicates(t *testing.T) {
	s := NewStore(t0, []string{"0x1", "0x1", "0x2"})
	assert.Equal(t, []string{"0x1", "0x2"}, s.Objects())

	s.Publish(report(), t0, 0)
	assert.False(t, s.AddObject("0x2"))
	assert.False(t, s.Pending())
	assert.True(t, s.AddObject("0x3"))
	assert.True(t, s.Pending())
}

func TestStore_UpsertAndRemoveResult(t *testing.T) {
	s := NewStore(t0, nil)
	s.Publish(report(okResult("INV-001"), okResult("INV-002")), t0, 0)

	updated := okResult("INV-002")
	updated.Advisory = true
	s.UpsertResult(updated)
	s.UpsertResult(okResult("LLM-1"))

	results := s.Results()
	require.Len(t, results, 3)
	assert.True(t, results[1].Advisory)
	assert.Equal(t, "LLM-1", results[2].ID)

	s.RemoveResult("INV-001")
	_, ok := s.Result("INV-001")
	assert.False(t, ok)
	_, ok = s.Result("LLM-1")
	assert.True(t, ok)
}

func TestStore_ResultsAreCopies(t *testing.T) {
	s := NewStore(t0, nil)
	s.Publish(report(okResult("INV-001")), t0, 0)

	r := s.Results()
	r[0].ID = "mutated"
	got, ok := s.Result("INV-001")
	require.True(t, ok)
	assert.Equal(t, "INV-001", got.ID)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(t0, nil)
	ch, cancel := s.Subscribe()

	s.Publish(report(okResult("INV-001")), t0, 0)
	select {
	case got := <-ch:
		assert.Len(t, got.Results, 1)
	case <-time.After(time.Second):
		t.Fatal("no report delivered")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// publishing after unsubscribe must not panic on the closed channel
	s.Publish(report(), t0, 0)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore(t0, nil)
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			s.Publish(report(), t0, 0)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestGuardedEngine_ConcurrentUse(t *testing.T) {
	g := NewGuardedEngine(invariant.NewDefaultEngine())
	snap := model.NewSnapshot(t0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.EvaluateAll(snap)
		}()
		go func(i int) {
			defer wg.Done()
			_ = g.Register(&invariant.Advisory{ID: "LLM", Name: "advisory"})
			g.Checks()
		}(i)
	}
	wg.Wait()

	assert.Len(t, g.Checks(), 6)
	_, ok := g.Previous()
	assert.True(t, ok)
	assert.True(t, g.Remove("LLM"))
}

func TestGuardedEngine_EvaluateThenOrdersRegistryChanges(t *testing.T) {
	g := NewGuardedEngine(invariant.NewDefaultEngine())
	s := NewStore(t0, nil)
	adv := &invariant.Advisory{ID: "LLM-1", Name: "advisory"}

	edited := make(chan struct{})
	g.EvaluateThen(model.NewSnapshot(t0), func(results []model.Result) {
		_, ok := invariant.Find(results, "INV-003")
		require.True(t, ok)

		// management calls issued while the cycle publishes
		go func() {
			defer close(edited)
			if assert.NoError(t, g.Register(adv)) {
				s.UpsertResult(adv.Evaluate(model.Snapshot{}, nil))
			}
			if assert.True(t, g.Remove("INV-003")) {
				s.RemoveResult("INV-003")
			}
		}()
		_, gen := s.ObjectSet()
		s.Publish(report(results...), t0, gen)
	})

	select {
	case <-edited:
	case <-time.After(time.Second):
		t.Fatal("registry changes never ran")
	}

	_, ok := s.Result("LLM-1")
	assert.True(t, ok, "advisory registered during the cycle is listed")
	_, ok = s.Result("INV-003")
	assert.False(t, ok, "check removed during the cycle is not listed")
	assert.Len(t, s.Results(), 5)
}
