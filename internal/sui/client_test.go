package sui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sui-invariant-monitor/internal/model"
)

type rpcHandler func(params []json.RawMessage) (result any, rpcErr *RPCError)

func newRPCServer(t *testing.T, handlers map[string]rpcHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string            `json:"jsonrpc"`
			ID      uint64            `json:"id"`
			Method  string            `json:"method"`
			Params  []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		h, ok := handlers[req.Method]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		result, rpcErr := h(req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func objectResult(id string, fields map[string]any) map[string]any {
	return map[string]any{
		"data": map[string]any{
			"objectId": id,
			"version":  "7",
			"type":     "0xpool::pool::Pool",
			"content": map[string]any{
				"dataType": "moveObject",
				"type":     "0xpool::pool::Pool",
				"fields":   fields,
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRPCURL(t *testing.T) {
	assert.Equal(t, MainnetURL, RPCURL("mainnet", "http://custom"))
	assert.Equal(t, TestnetURL, RPCURL(" Testnet ", ""))
	assert.Equal(t, DevnetURL, RPCURL("devnet", ""))
	assert.Equal(t, LocalnetURL, RPCURL("localnet", ""))
	assert.Equal(t, "http://custom", RPCURL("", "http://custom"))
	assert.Equal(t, MainnetURL, RPCURL("unknown", ""))
}

func TestClient_Record(t *testing.T) {
	var gotOpts map[string]bool
	srv := newRPCServer(t, map[string]rpcHandler{
		"sui_getObject": func(p []json.RawMessage) (any, *RPCError) {
			require.Len(t, p, 2)
			require.NoError(t, json.Unmarshal(p[1], &gotOpts))
			return objectResult("0x1", map[string]any{
				"total_supply":   "340282366920938463463374607431768211455",
				"total_borrowed": 600,
			}), nil
		},
	})

	rec, err := NewClient(srv.URL, nil).Record(context.Background(), "0x1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"showType": true, "showContent": true, "showOwner": true}, gotOpts)

	supply, present, ok := rec.Amount("total_supply")
	assert.True(t, present && ok)
	assert.True(t, supply.IsMax())
	borrowed, _, ok := rec.Amount("total_borrowed")
	assert.True(t, ok)
	assert.Equal(t, "600", borrowed.String())
}

func TestClient_GetObjectNotFound(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"sui_getObject": func([]json.RawMessage) (any, *RPCError) {
			return map[string]any{"error": map[string]any{"code": "notExists", "object_id": "0x2"}}, nil
		},
	})

	_, err := NewClient(srv.URL, nil).GetObject(context.Background(), "0x2")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestClient_RPCErrorSurfaces(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"sui_getObject": func([]json.RawMessage) (any, *RPCError) {
			return nil, &RPCError{Code: -32602, Message: "invalid params"}
		},
	})

	_, err := NewClient(srv.URL, nil).GetObject(context.Background(), "bad")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "invalid params", rpcErr.Message)
}

func TestClient_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).LatestCheckpoint(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestClient_FetchRecordsSkipsFailures(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"sui_getObject": func(p []json.RawMessage) (any, *RPCError) {
			var id string
			_ = json.Unmarshal(p[0], &id)
			switch id {
			case "0xbad":
				return nil, &RPCError{Code: -32000, Message: "boom"}
			case "0xempty":
				return map[string]any{"data": map[string]any{"objectId": id}}, nil
			}
			return objectResult(id, map[string]any{"total_supply": id[2:]}), nil
		},
	})

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	records := NewClient(srv.URL, nil).FetchRecords(context.Background(),
		[]string{"0x10", "0xbad", "0xempty", "0x20"}, logger)

	require.Len(t, records, 2)
	first, _, _ := records[0].Amount("total_supply")
	second, _, _ := records[1].Amount("total_supply")
	assert.Equal(t, "10", first.String())
	assert.Equal(t, "20", second.String())
	assert.Contains(t, logs.String(), "object_id=0xbad")
	assert.Contains(t, logs.String(), "object_id=0xempty")
}

func TestClient_GetBalance(t *testing.T) {
	var gotCoin string
	srv := newRPCServer(t, map[string]rpcHandler{
		"suix_getBalance": func(p []json.RawMessage) (any, *RPCError) {
			_ = json.Unmarshal(p[1], &gotCoin)
			return map[string]any{"coinType": gotCoin, "coinObjectCount": 3, "totalBalance": "1000000"}, nil
		},
	})

	bal, err := NewClient(srv.URL, nil).GetBalance(context.Background(), "0xowner", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCoinType, gotCoin)
	assert.True(t, bal.Equal(model.NewAmount(1_000_000)))
}

func TestClient_GetBalanceRejectsGarbage(t *testing.T) {
	srv := newRPCServer(t, map[string]rpcHandler{
		"suix_getBalance": func([]json.RawMessage) (any, *RPCError) {
			return map[string]any{"totalBalance": "-5"}, nil
		},
	})
	_, err := NewClient(srv.URL, nil).GetBalance(context.Background(), "0xowner", "0x2::sui::SUI")
	assert.Error(t, err)
}

func TestClient_ModuleMetadata(t *testing.T) {
	module := map[string]any{
		"structs": map[string]any{
			"Pool": map[string]any{
				"abilities": map[string]any{"abilities": []string{"Key"}},
				"fields": []any{
					map[string]any{"name": "total_supply", "type": "U64"},
					map[string]any{"name": "coins", "type": map[string]any{
						"Vector": map[string]any{"Struct": map[string]any{
							"address": "0x2", "module": "coin", "name": "Coin",
							"typeArguments": []any{map[string]any{"TypeParameter": 0}},
						}},
					}},
				},
			},
			"Cap": map[string]any{"abilities": map[string]any{"abilities": []string{"Key", "Store"}}, "fields": []any{}},
		},
		"exposedFunctions": map[string]any{
			"withdraw": map[string]any{
				"visibility": "Public",
				"isEntry":    true,
				"parameters": []any{
					map[string]any{"MutableReference": map[string]any{"Struct": map[string]any{"address": "0xp", "module": "pool", "name": "Pool"}}},
					"U64",
				},
				"return": []any{},
			},
			"borrow": map[string]any{
				"parameters": []any{map[string]any{"Reference": "Address"}},
				"return":     []any{"Bool"},
			},
		},
	}
	srv := newRPCServer(t, map[string]rpcHandler{
		"sui_getNormalizedMoveModule": func([]json.RawMessage) (any, *RPCError) { return module, nil },
		"sui_getNormalizedMoveModulesByPackage": func([]json.RawMessage) (any, *RPCError) {
			return map[string]any{"pool": module, "math": map[string]any{}}, nil
		},
	})
	c := NewClient(srv.URL, nil)

	md, err := c.ModuleMetadata(context.Background(), "0xp", "pool")
	require.NoError(t, err)
	require.Len(t, md.Structs, 2)
	assert.Equal(t, "Cap", md.Structs[0].Name)
	pool := md.Structs[1]
	assert.Equal(t, []string{"Key"}, pool.Abilities)
	assert.Equal(t, "U64", pool.Fields[0].Type)
	assert.Equal(t, "vector<0x2::coin::Coin<T0>>", pool.Fields[1].Type)

	require.Len(t, md.Functions, 2)
	assert.Equal(t, "borrow", md.Functions[0].Name)
	assert.Equal(t, "Private", md.Functions[0].Visibility)
	assert.Equal(t, []string{"&Address"}, md.Functions[0].Parameters)
	assert.Equal(t, []string{"Bool"}, md.Functions[0].ReturnTypes)
	assert.True(t, md.Functions[1].IsEntry)
	assert.Equal(t, []string{"&mut 0xp::pool::Pool", "U64"}, md.Functions[1].Parameters)
	assert.Empty(t, md.Functions[1].ReturnTypes)

	modules, err := c.PackageModules(context.Background(), "0xp")
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "pool"}, modules)
}

func TestConnManager_RetriesUntilHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"4242"}`))
	}))
	defer srv.Close()

	m := NewConnManager(srv.URL, nil, 5*time.Millisecond, 0, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := m.Client(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, c.URL())
	assert.EqualValues(t, 4242, m.LastCheckpoint())
	assert.GreaterOrEqual(t, calls.Load(), int32(3))

	require.NoError(t, m.Healthy(ctx))
}

func TestConnManager_ConnectHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewConnManager(srv.URL, nil, 10*time.Millisecond, 5*time.Millisecond, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
