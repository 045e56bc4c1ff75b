package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func (m *Monitor) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The API serves state while the node is still unreachable.
		if err := m.conn.Connect(gctx); err != nil {
			return fmt.Errorf("initial sui connect: %w", err)
		}
		m.health.SetRPCConnected(true)
		m.metrics.SetRPCUp(true)
		return m.scheduler.Run(gctx)
	})
	g.Go(func() error {
		return m.runHealthLoop(gctx)
	})
	g.Go(func() error {
		return m.runHTTPServer(gctx)
	})
	g.Go(func() error {
		return m.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (m *Monitor) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(m.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := m.conn.Healthy(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				m.logger.Warn("sui health check failed, reconnecting", "error", err)
				m.health.SetRPCConnected(false)
				m.metrics.SetRPCUp(false)
				if recErr := m.conn.Reconnect(ctx); recErr != nil {
					m.logger.Error("sui reconnect failed", "error", recErr)
					continue
				}
				m.logHealth("recovered")
			} else {
				m.logHealth("ok")
			}
			m.health.SetRPCConnected(true)
			m.health.MarkCheckpoint(m.conn.LastCheckpoint())
			m.metrics.SetRPCUp(true)
		}
	}
}

func (m *Monitor) logHealth(status string) {
	m.logger.Log(context.Background(), slog.LevelDebug, "monitor health", "status", status, "snapshot", m.health.Snapshot())
}

func (m *Monitor) runHTTPServer(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", m.server.Addr, err)
	}
	return m.serveHTTP(ctx, ln)
}

func (m *Monitor) serveHTTP(ctx context.Context, ln net.Listener) error {
	m.logger.Info("http api listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownTimeout)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			m.logger.Warn("http server shutdown failed", "error", err)
		}
	}()

	if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (m *Monitor) shutdown(ctx context.Context) {
	if err := m.dispatcher.Close(ctx); err != nil {
		m.logger.Warn("alert sink close failed", "error", err)
	}
	m.health.SetAlertConnected(false)
	m.health.SetRPCConnected(false)
	m.metrics.SetRPCUp(false)
}
