package invariant

import (
	"errors"
	"fmt"

	"sui-invariant-monitor/internal/model"
)

var (
	ErrDuplicateCheck       = errors.New("check already registered")
	ErrAdvisoryShadowsCheck = errors.New("an executable check is already registered under this id")
	ErrEmptyCheckID         = errors.New("check id must not be empty")
)

// Engine runs the registered checks against each snapshot and keeps the
// last snapshot as history. It holds no locks: callers that share an Engine
// across goroutines must serialise access.
type Engine struct {
	checks   []Check
	previous *model.Snapshot
}

// NewEngine returns an engine with the given checks in order and no history.
func NewEngine(checks ...Check) *Engine {
	return &Engine{checks: append([]Check(nil), checks...)}
}

// NewDefaultEngine returns an engine preloaded with the built-in checks.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultChecks()...)
}

// EvaluateAll runs every check with (current, previous) and then retains
// current as the previous snapshot for the next call.
func (e *Engine) EvaluateAll(current model.Snapshot) []model.Result {
	results := make([]model.Result, 0, len(e.checks))
	for _, c := range e.checks {
		results = append(results, evaluate(c, current, e.previous))
	}
	retained := current
	e.previous = &retained
	return results
}

// evaluate contains a failing check inside an Error-status result.
func evaluate(c Check, current model.Snapshot, previous *model.Snapshot) (r model.Result) {
	id := c.Identity()
	defer func() {
		if rec := recover(); rec != nil {
			r = model.ErrorResult(id, fmt.Sprintf("evaluation failed: %v", rec), now())
		}
	}()
	return c.Evaluate(current, previous)
}

// Previous returns the retained snapshot, if any.
func (e *Engine) Previous() (model.Snapshot, bool) {
	if e.previous == nil {
		return model.Snapshot{}, false
	}
	return *e.previous, true
}

// Checks returns a copy of the registry in evaluation order.
func (e *Engine) Checks() []Check {
	return append([]Check(nil), e.checks...)
}

// Register appends c. An executable check replaces an advisory entry with
// the same id in place; an advisory entry never replaces an executable one.
func (e *Engine) Register(c Check) error {
	id := c.Identity().ID
	if id == "" {
		return ErrEmptyCheckID
	}
	for i, existing := range e.checks {
		if existing.Identity().ID != id {
			continue
		}
		switch {
		case Executable(existing) && !Executable(c):
			return fmt.Errorf("%s: %w", id, ErrAdvisoryShadowsCheck)
		case Executable(existing):
			return fmt.Errorf("%s: %w", id, ErrDuplicateCheck)
		}
		e.checks[i] = c
		return nil
	}
	e.checks = append(e.checks, c)
	return nil
}

// Remove deletes the check with the given id and reports whether it existed.
func (e *Engine) Remove(id string) bool {
	for i, c := range e.checks {
		if c.Identity().ID == id {
			e.checks = append(e.checks[:i], e.checks[i+1:]...)
			return true
		}
	}
	return false
}

// ViolationCount counts Violated results.
func ViolationCount(results []model.Result) int {
	return countStatus(results, model.StatusViolated)
}

// ErrorCount counts Error results.
func ErrorCount(results []model.Result) int {
	return countStatus(results, model.StatusError)
}

// AllOK is true iff results is non-empty and every result is Ok.
// Nothing evaluated is not the same as everything healthy.
func AllOK(results []model.Result) bool {
	if len(results) == 0 {
		return false
	}
	return countStatus(results, model.StatusOK) == len(results)
}

// Violations returns the Violated results in order.
func Violations(results []model.Result) []model.Result {
	out := make([]model.Result, 0)
	for _, r := range results {
		if r.Status == model.StatusViolated {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the result with the given id.
func Find(results []model.Result, id string) (model.Result, bool) {
	for _, r := range results {
		if r.ID == id {
			return r, true
		}
	}
	return model.Result{}, false
}

func countStatus(results []model.Result, status model.Status) int {
	n := 0
	for _, r := range results {
		if r.Status == status {
			n++
		}
	}
	return n
}
