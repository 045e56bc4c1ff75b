package model

import "time"

// InterestIndexScale is the fixed-point scale of the interest index (1e9 == 1.0).
const InterestIndexScale uint64 = 1_000_000_000

// Snapshot is the normalized protocol state observed in one polling cycle.
// It is built once by the aggregator and never mutated afterwards.
type Snapshot struct {
	TimestampUnix     uint64 `json:"timestamp"`
	TotalSupply       Amount `json:"total_supply"`
	TotalBorrowed     Amount `json:"total_borrowed"`
	TotalReserves     Amount `json:"total_reserves"`
	CollateralValue   Amount `json:"collateral_value"`
	OutstandingShares Amount `json:"outstanding_shares"`
	InterestIndex     Amount `json:"interest_index"`
	LastUpdateEpoch   uint64 `json:"last_update_epoch"`
	OnChainBalance    Amount `json:"on_chain_balance"`
}

// NewSnapshot returns the "no data yet" snapshot: every quantity zero except
// the interest index, which starts at 1.0.
func NewSnapshot(at time.Time) Snapshot {
	ts := at.Unix()
	if ts < 0 {
		ts = 0
	}
	return Snapshot{
		TimestampUnix:     uint64(ts),
		TotalSupply:       NewAmount(0),
		TotalBorrowed:     NewAmount(0),
		TotalReserves:     NewAmount(0),
		CollateralValue:   NewAmount(0),
		OutstandingShares: NewAmount(0),
		InterestIndex:     NewAmount(InterestIndexScale),
		OnChainBalance:    NewAmount(0),
	}
}

func (s Snapshot) Timestamp() time.Time {
	return time.Unix(int64(s.TimestampUnix), 0).UTC()
}
