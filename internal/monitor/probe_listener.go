package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Probe states, worst first.
const (
	probeDegraded = "degraded"
	probeViolated = "violated"
	probeStarting = "starting"
	probeOK       = "ok"
)

func (m *Monitor) runProbeListener(ctx context.Context) error {
	addr := strings.TrimSpace(m.cfg.ProbeListenAddr)
	if addr == "" {
		return fmt.Errorf("empty probe listen address")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen probe endpoint %s: %w", addr, err)
	}
	return m.serveProbe(ctx, ln)
}

func (m *Monitor) serveProbe(ctx context.Context, ln net.Listener) error {
	defer func() { _ = ln.Close() }()
	addr := ln.Addr().String()

	m.logger.Info("probe endpoint listening", "addr", addr)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(acceptErr, &ne) && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept probe endpoint %s: %w", addr, acceptErr)
		}

		_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
		_, _ = conn.Write(m.probeReply(time.Now().UTC()))
		_ = conn.Close()
	}
}

// probeReply is one JSON line with the health snapshot and the result
// summary of the last published cycle.
func (m *Monitor) probeReply(now time.Time) []byte {
	out := m.health.Snapshot()
	st := m.store.Status(now)
	out["monitor_id"] = m.cfg.MonitorID
	out["violations"] = st.Violations
	out["errors"] = st.Errors
	out["pending_evaluation"] = st.PendingEval
	out["uptime_secs"] = st.UptimeSecs

	rpcUp, _ := out["rpc_connected"].(bool)
	alertUp, _ := out["alert_connected"].(bool)
	switch {
	case !rpcUp || !alertUp:
		out["status"] = probeDegraded
	case st.Violations > 0:
		out["status"] = probeViolated
	case st.LastCheck == nil:
		out["status"] = probeStarting
	default:
		out["status"] = probeOK
	}

	line, err := json.Marshal(out)
	if err != nil {
		return []byte(`{"status":"` + probeDegraded + `"}` + "\n")
	}
	return append(line, '\n')
}
