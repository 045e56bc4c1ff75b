package invariant

import (
	"fmt"

	"sui-invariant-monitor/internal/model"
)

// LiquidityConstraint requires total_borrowed <= total_supply.
type LiquidityConstraint struct{}

func (LiquidityConstraint) Identity() model.Identity {
	return model.Identity{
		ID:          "INV-005",
		Name:        "Liquidity Constraint",
		Description: "Total borrowed must not exceed total supply",
	}
}

func (c LiquidityConstraint) Evaluate(s model.Snapshot, _ *model.Snapshot) model.Result {
	holds := !s.TotalSupply.Less(s.TotalBorrowed)
	available := s.TotalSupply.SaturatingSub(s.TotalBorrowed)

	var utilization model.Amount
	switch {
	case !s.TotalSupply.IsZero():
		utilization = s.TotalBorrowed.MulUint64(100).Div(s.TotalSupply)
	case s.TotalBorrowed.IsZero():
		utilization = model.NewAmount(0)
	default:
		// borrowed without supply
		utilization = model.MaxAmount()
	}

	comp := model.NewComputation("total_borrowed <= total_supply").
		With("total_supply", s.TotalSupply).
		With("total_borrowed", s.TotalBorrowed).
		With("available_liquidity", available).
		With("utilization_percent", utilization).
		WithResult(fmt.Sprintf("%s %s %s (%s%% utilization)",
			s.TotalBorrowed, cmpSymbol(holds, "<=", ">"), s.TotalSupply, utilization))

	if holds {
		return model.OKResult(c.Identity(), comp, now())
	}
	return model.ViolatedResult(c.Identity(), comp,
		fmt.Sprintf("Over-borrowed: %s > %s (negative liquidity)", s.TotalBorrowed, s.TotalSupply), now())
}
