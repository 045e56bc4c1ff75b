package invariant

import (
	"fmt"

	"github.com/shopspring/decimal"

	"sui-invariant-monitor/internal/model"
)

// InterestMonotonicity requires the interest index never to decrease
// between consecutive snapshots.
type InterestMonotonicity struct{}

func (InterestMonotonicity) Identity() model.Identity {
	return model.Identity{
		ID:          "INV-004",
		Name:        "Interest Index Monotonicity",
		Description: "Interest index must never decrease over time",
	}
}

// indexFactor renders a 1e9 fixed-point index as a decimal factor.
func indexFactor(index model.Amount) string {
	return decimal.NewFromBigInt(index.BigInt(), -9).StringFixed(9)
}

func (c InterestMonotonicity) Evaluate(s model.Snapshot, previous *model.Snapshot) model.Result {
	const formula = "current_index >= previous_index"
	current := s.InterestIndex

	if previous == nil {
		comp := model.NewComputation(formula).
			With("current_index", current).
			With("current_factor", indexFactor(current)).
			With("previous_index", "N/A (first check)").
			WithResult("First evaluation - no previous state to compare")
		return model.OKResult(c.Identity(), comp, now())
	}

	prev := previous.InterestIndex
	holds := !current.Less(prev)

	comp := model.NewComputation(formula).
		With("current_index", current).
		With("current_factor", indexFactor(current)).
		With("previous_index", prev).
		With("previous_factor", indexFactor(prev)).
		With("delta", current.SaturatingSub(prev))
	if !holds {
		comp = comp.With("decrease", prev.SaturatingSub(current))
	}
	comp = comp.WithResult(fmt.Sprintf("%s %s %s", current, cmpSymbol(holds, ">=", "<"), prev))

	if holds {
		return model.OKResult(c.Identity(), comp, now())
	}
	return model.ViolatedResult(c.Identity(), comp,
		fmt.Sprintf("Interest index decreased: %s -> %s (delta: %s)", prev, current, prev.SaturatingSub(current)), now())
}
