// Package state holds the monitor state shared between the evaluation
// cycle and the HTTP surface.
package state

import (
	"slices"
	"sync"
	"time"

	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
)

const subscriberBuffer = 4

type Store struct {
	mu        sync.RWMutex
	startedAt time.Time
	lastCheck time.Time
	results   []model.Result
	snapshot  *model.Snapshot
	objects   []string
	objectGen uint64
	pending   bool

	subMu sync.Mutex
	subs  map[chan model.CycleReport]struct{}
}

// Status is the summary served by the status endpoint.
type Status struct {
	LastCheck        *time.Time `json:"last_check"`
	TotalInvariants  int        `json:"total_invariants"`
	Violations       int        `json:"violations"`
	Errors           int        `json:"errors"`
	AllOK            bool       `json:"all_ok"`
	MonitoredObjects []string   `json:"monitored_objects"`
	PendingEval      bool       `json:"pending_evaluation"`
	UptimeSecs       uint64     `json:"uptime_secs"`
}

func NewStore(startedAt time.Time, objects []string) *Store {
	s := &Store{
		startedAt: startedAt,
		subs:      make(map[chan model.CycleReport]struct{}),
	}
	for _, id := range objects {
		if !slices.Contains(s.objects, id) {
			s.objects = append(s.objects, id)
		}
	}
	return s
}

func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

func (s *Store) Uptime(now time.Time) time.Duration {
	if now.Before(s.startedAt) {
		return 0
	}
	return now.Sub(s.startedAt)
}

// Publish records a finished cycle and fans the report out to subscribers.
// objectGen is the generation returned by ObjectSet when the cycle read its
// object list; the pending flag is only cleared when no object was added
// since. Slow subscribers miss frames instead of blocking the cycle.
func (s *Store) Publish(report model.CycleReport, at time.Time, objectGen uint64) {
	snap := report.Snapshot
	s.mu.Lock()
	s.results = slices.Clone(report.Results)
	s.snapshot = &snap
	s.lastCheck = at
	if objectGen == s.objectGen {
		s.pending = false
	}
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- report:
		default:
		}
	}
}

// UpsertResult replaces the result with the same id or appends it.
func (s *Store) UpsertResult(r model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.results {
		if s.results[i].ID == r.ID {
			s.results[i] = r
			return
		}
	}
	s.results = append(s.results, r)
}

// RemoveResult drops the result with the given id.
func (s *Store) RemoveResult(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = slices.DeleteFunc(s.results, func(r model.Result) bool { return r.ID == id })
}

func (s *Store) Results() []model.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.results)
}

func (s *Store) Result(id string) (model.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return invariant.Find(s.results, id)
}

func (s *Store) Snapshot() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return model.Snapshot{}, false
	}
	return *s.snapshot, true
}

// AddObject adds a monitored object id. It reports false when the id is
// already monitored. A new id marks an evaluation as pending.
func (s *Store) AddObject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.objects, id) {
		return false
	}
	s.objects = append(s.objects, id)
	s.objectGen++
	s.pending = true
	return true
}

func (s *Store) Objects() []string {
	ids, _ := s.ObjectSet()
	return ids
}

// ObjectSet returns the monitored ids together with a generation that
// changes on every successful AddObject.
func (s *Store) ObjectSet() ([]string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.objects), s.objectGen
}

func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

func (s *Store) Status(now time.Time) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		TotalInvariants:  len(s.results),
		Violations:       invariant.ViolationCount(s.results),
		Errors:           invariant.ErrorCount(s.results),
		AllOK:            invariant.AllOK(s.results),
		MonitoredObjects: slices.Clone(s.objects),
		PendingEval:      s.pending,
		UptimeSecs:       uint64(s.Uptime(now) / time.Second),
	}
	if st.MonitoredObjects == nil {
		st.MonitoredObjects = []string{}
	}
	if !s.lastCheck.IsZero() {
		t := s.lastCheck
		st.LastCheck = &t
	}
	return st
}

// Subscribe registers a receiver for cycle reports. The returned func
// unregisters it and closes the channel.
func (s *Store) Subscribe() (<-chan model.CycleReport, func()) {
	ch := make(chan model.CycleReport, subscriberBuffer)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}
