// Package invariant evaluates protocol safety rules against snapshots.
//
// A Check compares the current Snapshot, and optionally the previous one,
// and returns a Result whose Computation explains every number it used.
// The Engine runs an ordered registry of checks once per cycle and retains
// the last Snapshot it saw for history-aware checks.
package invariant

import (
	"time"

	"sui-invariant-monitor/internal/model"
)

// Check is one invariant rule. previous is nil on the first evaluation.
type Check interface {
	Identity() model.Identity
	Evaluate(current model.Snapshot, previous *model.Snapshot) model.Result
}

// Executable reports whether c carries real comparison logic.
func Executable(c Check) bool {
	_, advisory := c.(*Advisory)
	return !advisory
}

// DefaultChecks returns the built-in checks in registry order.
func DefaultChecks() []Check {
	return []Check{
		SupplyConservation{},
		CollateralizationRatio{},
		AccountingBalance{},
		InterestMonotonicity{},
		LiquidityConstraint{},
	}
}

var now = func() time.Time { return time.Now().UTC() }

// cmpSymbol renders the outcome of a comparison for traces.
func cmpSymbol(holds bool, pass, fail string) string {
	if holds {
		return pass
	}
	return fail
}
