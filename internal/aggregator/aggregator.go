// Package aggregator folds fetched object payloads into one protocol Snapshot.
package aggregator

import (
	"log/slog"
	"time"

	"sui-invariant-monitor/internal/model"
)

// Well-known field names looked up in every record.
const (
	FieldTotalSupply       = "total_supply"
	FieldTotalBorrowed     = "total_borrowed"
	FieldTotalReserves     = "total_reserves"
	FieldCollateralValue   = "collateral_value"
	FieldOutstandingShares = "outstanding_shares"
	FieldInterestIndex     = "interest_index"
	FieldLastUpdateEpoch   = "last_update_epoch"
)

type amountField struct {
	name string
	set  func(*model.Snapshot, model.Amount)
}

var amountFields = []amountField{
	{FieldTotalSupply, func(s *model.Snapshot, v model.Amount) { s.TotalSupply = v }},
	{FieldTotalBorrowed, func(s *model.Snapshot, v model.Amount) { s.TotalBorrowed = v }},
	{FieldTotalReserves, func(s *model.Snapshot, v model.Amount) { s.TotalReserves = v }},
	{FieldCollateralValue, func(s *model.Snapshot, v model.Amount) { s.CollateralValue = v }},
	{FieldOutstandingShares, func(s *model.Snapshot, v model.Amount) { s.OutstandingShares = v }},
	{FieldInterestIndex, func(s *model.Snapshot, v model.Amount) { s.InterestIndex = v }},
}

// Aggregator normalizes raw records. It performs no I/O.
type Aggregator struct {
	logger *slog.Logger
	now    func() time.Time
}

func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger, now: time.Now}
}

// WithClock overrides the sample clock.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate starts from the default snapshot stamped "now", copies
// onChainBalance verbatim and overlays each record's recognised fields in
// input order. A present but malformed field is logged and skipped; the
// previously overlaid value stays.
func (a *Aggregator) Aggregate(records []model.RawRecord, onChainBalance model.Amount) (model.Snapshot, error) {
	s := model.NewSnapshot(a.now())
	s.OnChainBalance = onChainBalance

	for i, rec := range records {
		if rec == nil {
			continue
		}
		for _, f := range amountFields {
			v, present, ok := rec.Amount(f.name)
			if !present {
				continue
			}
			if !ok {
				a.logger.Warn("ignoring malformed record field", "record_index", i, "field", f.name, "value", rec[f.name])
				continue
			}
			f.set(&s, v)
		}
		if epoch, present, ok := rec.Uint64(FieldLastUpdateEpoch); present {
			if ok {
				s.LastUpdateEpoch = epoch
			} else {
				a.logger.Warn("ignoring malformed record field", "record_index", i, "field", FieldLastUpdateEpoch, "value", rec[FieldLastUpdateEpoch])
			}
		}
	}
	return s, nil
}
