package sui

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"sui-invariant-monitor/internal/model"
)

// DefaultCoinType is the native SUI coin.
const DefaultCoinType = "0x2::sui::SUI"

type ObjectResponse struct {
	Data  *ObjectData     `json:"data"`
	Error json.RawMessage `json:"error,omitempty"`
}

type ObjectData struct {
	ObjectID string         `json:"objectId"`
	Version  string         `json:"version,omitempty"`
	Type     string         `json:"type,omitempty"`
	Owner    any            `json:"owner,omitempty"`
	Content  *ParsedContent `json:"content,omitempty"`
}

type ParsedContent struct {
	DataType string          `json:"dataType"`
	Type     string          `json:"type,omitempty"`
	Fields   model.RawRecord `json:"fields,omitempty"`
}

// GetObject fetches one object with its type, owner and parsed content.
func (c *Client) GetObject(ctx context.Context, id string) (ObjectResponse, error) {
	var out ObjectResponse
	opts := map[string]bool{"showType": true, "showContent": true, "showOwner": true}
	if err := c.Call(ctx, "sui_getObject", &out, id, opts); err != nil {
		return ObjectResponse{}, err
	}
	if out.Data == nil {
		if len(out.Error) > 0 {
			return ObjectResponse{}, fmt.Errorf("%s: %w: %s", id, ErrObjectNotFound, out.Error)
		}
		return ObjectResponse{}, fmt.Errorf("%s: %w", id, ErrObjectNotFound)
	}
	return out, nil
}

// Record returns the parsed Move fields of an object, the raw record the
// aggregator folds.
func (c *Client) Record(ctx context.Context, id string) (model.RawRecord, error) {
	obj, err := c.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Data.Content == nil || obj.Data.Content.Fields == nil {
		return nil, fmt.Errorf("%s: object has no parsed fields", id)
	}
	return obj.Data.Content.Fields, nil
}

// FetchRecords fetches every id in order. Objects that fail are logged and
// skipped so one bad id never stalls the cycle.
func (c *Client) FetchRecords(ctx context.Context, ids []string, logger *slog.Logger) []model.RawRecord {
	records := make([]model.RawRecord, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		rec, err := c.Record(ctx, id)
		if err != nil {
			logger.Warn("failed to fetch object", "object_id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// GetBalance returns the total balance of owner for coinType. An empty
// coinType means SUI.
func (c *Client) GetBalance(ctx context.Context, owner, coinType string) (model.Amount, error) {
	if coinType == "" {
		coinType = DefaultCoinType
	}
	var out struct {
		TotalBalance string `json:"totalBalance"`
	}
	if err := c.Call(ctx, "suix_getBalance", &out, owner, coinType); err != nil {
		return model.Amount{}, err
	}
	v, ok := model.ParseAmount(out.TotalBalance)
	if !ok {
		return model.Amount{}, fmt.Errorf("invalid balance %q", out.TotalBalance)
	}
	return v, nil
}

// LatestCheckpoint returns the latest checkpoint sequence number. It doubles
// as the node health probe.
func (c *Client) LatestCheckpoint(ctx context.Context) (uint64, error) {
	var seq string
	if err := c.Call(ctx, "sui_getLatestCheckpointSequenceNumber", &seq); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid checkpoint sequence %q: %w", seq, err)
	}
	return n, nil
}
