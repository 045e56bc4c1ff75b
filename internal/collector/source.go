package collector

import (
	"context"
	"fmt"
	"log/slog"

	"sui-invariant-monitor/internal/model"
	"sui-invariant-monitor/internal/sui"
)

// Fetcher supplies the raw inputs of one cycle.
type Fetcher interface {
	FetchRecords(ctx context.Context, ids []string) ([]model.RawRecord, error)
	OnChainBalance(ctx context.Context) (model.Amount, error)
}

// SuiSource reads monitored objects and the reserve balance from a node.
type SuiSource struct {
	conn     *sui.ConnManager
	owner    string
	coinType string
	logger   *slog.Logger
}

func NewSuiSource(conn *sui.ConnManager, balanceOwner, coinType string, logger *slog.Logger) *SuiSource {
	return &SuiSource{conn: conn, owner: balanceOwner, coinType: coinType, logger: logger}
}

// FetchRecords skips objects that fail individually; it only errors when
// the node itself is unreachable.
func (s *SuiSource) FetchRecords(ctx context.Context, ids []string) ([]model.RawRecord, error) {
	if len(ids) == 0 {
		s.logger.Info("no monitored object ids configured, using empty state")
		return nil, nil
	}
	c, err := s.conn.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("sui client: %w", err)
	}
	return c.FetchRecords(ctx, ids, s.logger), nil
}

// OnChainBalance is zero when no balance owner is configured.
func (s *SuiSource) OnChainBalance(ctx context.Context) (model.Amount, error) {
	if s.owner == "" {
		return model.NewAmount(0), nil
	}
	c, err := s.conn.Client(ctx)
	if err != nil {
		return model.Amount{}, fmt.Errorf("sui client: %w", err)
	}
	bal, err := c.GetBalance(ctx, s.owner, s.coinType)
	if err != nil {
		return model.Amount{}, fmt.Errorf("balance of %s: %w", s.owner, err)
	}
	return bal, nil
}
