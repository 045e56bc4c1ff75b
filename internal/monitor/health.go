package monitor

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	rpcConnected   atomic.Bool
	alertConnected atomic.Bool
	lastCycleAt    atomic.Int64
	lastAlertAt    atomic.Int64
	lastCheckpoint atomic.Uint64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.rpcConnected.Store(false)
	// no alert has failed yet
	h.alertConnected.Store(true)
	return h
}

func (h *HealthStatus) SetRPCConnected(ok bool) {
	h.rpcConnected.Store(ok)
}

func (h *HealthStatus) SetAlertConnected(ok bool) {
	h.alertConnected.Store(ok)
}

func (h *HealthStatus) MarkCycle(ts time.Time) {
	h.lastCycleAt.Store(ts.UnixNano())
}

func (h *HealthStatus) MarkAlert(ts time.Time) {
	h.lastAlertAt.Store(ts.UnixNano())
}

func (h *HealthStatus) MarkCheckpoint(seq uint64) {
	h.lastCheckpoint.Store(seq)
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"rpc_connected":   h.rpcConnected.Load(),
		"alert_connected": h.alertConnected.Load(),
	}
	if v := h.lastCycleAt.Load(); v > 0 {
		out["last_cycle_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastAlertAt.Load(); v > 0 {
		out["last_alert_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastCheckpoint.Load(); v > 0 {
		out["last_checkpoint"] = v
	}
	return out
}
