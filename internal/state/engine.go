package state

import (
	"sync"

	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
)

// GuardedEngine serialises every engine operation, so the polling cycle
// and the management endpoints never observe a half-updated registry or
// history.
type GuardedEngine struct {
	mu     sync.Mutex
	engine *invariant.Engine
}

func NewGuardedEngine(e *invariant.Engine) *GuardedEngine {
	return &GuardedEngine{engine: e}
}

func (g *GuardedEngine) EvaluateAll(current model.Snapshot) []model.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.EvaluateAll(current)
}

// EvaluateThen evaluates current and hands the results to publish before
// releasing the registry. A concurrent Register or Remove therefore lands
// wholly before or wholly after the published cycle.
func (g *GuardedEngine) EvaluateThen(current model.Snapshot, publish func([]model.Result)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	publish(g.engine.EvaluateAll(current))
}

func (g *GuardedEngine) Register(c invariant.Check) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Register(c)
}

func (g *GuardedEngine) Remove(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Remove(id)
}

func (g *GuardedEngine) Checks() []invariant.Check {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Checks()
}

func (g *GuardedEngine) Previous() (model.Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.engine.Previous()
}
