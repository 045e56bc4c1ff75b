package invariant

import (
	"fmt"

	"sui-invariant-monitor/internal/model"
)

// SupplyConservation requires total_supply == total_reserves + total_borrowed.
type SupplyConservation struct{}

func (SupplyConservation) Identity() model.Identity {
	return model.Identity{
		ID:          "INV-001",
		Name:        "Total Supply Conservation",
		Description: "Protocol total supply equals reserves plus outstanding borrows",
	}
}

func (c SupplyConservation) Evaluate(s model.Snapshot, _ *model.Snapshot) model.Result {
	expected := s.TotalReserves.SaturatingAdd(s.TotalBorrowed)
	actual := s.TotalSupply
	holds := actual.Equal(expected)

	comp := model.NewComputation("total_supply == total_reserves + total_borrowed").
		With("total_supply", actual).
		With("total_reserves", s.TotalReserves).
		With("total_borrowed", s.TotalBorrowed).
		With("expected", expected).
		WithResult(fmt.Sprintf("%s %s %s", actual, cmpSymbol(holds, "==", "!="), expected))

	if holds {
		return model.OKResult(c.Identity(), comp, now())
	}
	return model.ViolatedResult(c.Identity(), comp,
		fmt.Sprintf("Supply mismatch: actual %s != expected %s", actual, expected), now())
}
