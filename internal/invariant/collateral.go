package invariant

import (
	"fmt"
	"math/big"

	"sui-invariant-monitor/internal/model"
)

// MinCollateralRatioPercent is the over-collateralisation floor.
const MinCollateralRatioPercent uint64 = 150

// CollateralizationRatio requires collateral_value >= total_borrowed * 1.5.
type CollateralizationRatio struct{}

func (CollateralizationRatio) Identity() model.Identity {
	return model.Identity{
		ID:          "INV-002",
		Name:        "Collateralization Ratio",
		Description: fmt.Sprintf("Outstanding borrows must be over-collateralized (minimum %d%%)", MinCollateralRatioPercent),
	}
}

func (c CollateralizationRatio) Evaluate(s model.Snapshot, _ *model.Snapshot) model.Result {
	const formula = "collateral_value >= total_borrowed * 1.5"

	if s.TotalBorrowed.IsZero() {
		comp := model.NewComputation(formula).
			With("collateral_value", s.CollateralValue).
			With("total_borrowed", 0).
			With("required_collateral", 0).
			WithResult("No borrows outstanding - OK")
		return model.OKResult(c.Identity(), comp, now())
	}

	// The verdict compares collateral*100 with borrowed*150 exactly and the
	// comparison line shows those products. required_collateral is floored.
	holds := s.CollateralValue.ScaledCmp(100, s.TotalBorrowed, MinCollateralRatioPercent) >= 0
	scaledCollateral := scaled(s.CollateralValue, 100)
	scaledBorrowed := scaled(s.TotalBorrowed, MinCollateralRatioPercent)
	required := s.TotalBorrowed.MulUint64(MinCollateralRatioPercent).DivUint64(100)
	ratio := s.CollateralValue.MulUint64(100).Div(s.TotalBorrowed)
	sym := cmpSymbol(holds, ">=", "<")

	comp := model.NewComputation(formula).
		With("collateral_value", s.CollateralValue).
		With("total_borrowed", s.TotalBorrowed).
		With("collateral_x100", scaledCollateral).
		With("borrowed_x150", scaledBorrowed).
		With("required_collateral", required).
		With("current_ratio_percent", ratio).
		With("min_ratio_percent", MinCollateralRatioPercent).
		WithResult(fmt.Sprintf("%s %s %s (%s%% %s %d%%)",
			scaledCollateral, sym, scaledBorrowed, ratio, sym, MinCollateralRatioPercent))

	if holds {
		return model.OKResult(c.Identity(), comp, now())
	}
	return model.ViolatedResult(c.Identity(), comp,
		fmt.Sprintf("Under-collateralized: %s%% < %d%% minimum", ratio, MinCollateralRatioPercent), now())
}

// scaled returns a*m without the Amount ceiling.
func scaled(a model.Amount, m uint64) *big.Int {
	v := a.BigInt()
	return v.Mul(v, new(big.Int).SetUint64(m))
}
