package invariant

import (
	"fmt"

	"sui-invariant-monitor/internal/model"
)

// AccountingBalance requires tracked reserves to equal the on-chain balance.
type AccountingBalance struct{}

func (AccountingBalance) Identity() model.Identity {
	return model.Identity{
		ID:          "INV-003",
		Name:        "Accounting Balance Integrity",
		Description: "Internal balance matches on-chain token balance",
	}
}

func (c AccountingBalance) Evaluate(s model.Snapshot, _ *model.Snapshot) model.Result {
	internal := s.TotalReserves
	onChain := s.OnChainBalance
	holds := internal.Equal(onChain)

	comp := model.NewComputation("internal_balance == on_chain_balance").
		With("internal_balance", internal).
		With("on_chain_balance", onChain).
		With("difference", internal.AbsDiff(onChain)).
		WithResult(fmt.Sprintf("%s %s %s", internal, cmpSymbol(holds, "==", "!="), onChain))

	if holds {
		return model.OKResult(c.Identity(), comp, now())
	}
	return model.ViolatedResult(c.Identity(), comp,
		fmt.Sprintf("Balance mismatch: internal %s != on-chain %s", internal, onChain), now())
}
