// Package monitor wires the invariant monitor together and owns its
// lifecycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sui-invariant-monitor/internal/aggregator"
	"sui-invariant-monitor/internal/alert"
	"sui-invariant-monitor/internal/analysis"
	"sui-invariant-monitor/internal/api"
	"sui-invariant-monitor/internal/collector"
	"sui-invariant-monitor/internal/config"
	"sui-invariant-monitor/internal/invariant"
	"sui-invariant-monitor/internal/model"
	"sui-invariant-monitor/internal/observability"
	"sui-invariant-monitor/internal/state"
	"sui-invariant-monitor/internal/sui"
	"sui-invariant-monitor/internal/version"
)

type Monitor struct {
	cfg        config.Config
	logger     *slog.Logger
	conn       *sui.ConnManager
	store      *state.Store
	engine     *state.GuardedEngine
	scheduler  *collector.Scheduler
	dispatcher *alert.Dispatcher
	metrics    *observability.Metrics
	server     *http.Server
	health     *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Monitor, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	health := NewHealthStatus()
	metrics := observability.NewMetrics(nil)

	sinks := alert.NewSinksFromConfig(cfg, tlsCfg, logger)
	wrapped := make([]alert.Sink, 0, len(sinks))
	for _, s := range sinks {
		wrapped = append(wrapped, &healthSink{sink: s, health: health})
	}
	dispatcher := alert.NewDispatcher(wrapped, cfg.AlertRate, cfg.AlertBurst, cfg.AlertTimeout, logger, alert.WithObserver(metrics))

	conn := sui.NewConnManager(cfg.SuiRPCURL, nil, cfg.ReconnectInterval, cfg.MaxReconnectJitter, logger)
	store := state.NewStore(time.Now().UTC(), cfg.MonitoredObjectIDs)

	var checks []invariant.Check
	if cfg.BuiltinChecks {
		checks = invariant.DefaultChecks()
	}
	engine := state.NewGuardedEngine(invariant.NewEngine(checks...))

	source := collector.NewSuiSource(conn, cfg.BalanceOwner, cfg.BalanceCoinType, logger)
	cycle := collector.NewCycle(logger, source, aggregator.New(logger), engine, store, dispatcher,
		&healthRecorder{Metrics: metrics, health: health})
	scheduler := collector.NewScheduler(logger, cycle, cfg.PollInterval, cfg.CollectorErrorBackoff)

	suggestions := analysis.NewService(logger,
		analysis.Options{APIKey: cfg.OpenRouterAPIKey, BaseURL: cfg.OllamaBaseURL, Model: cfg.LLMModel},
		func(network string) analysis.MetadataSource {
			return sui.NewClient(sui.RPCURL(network, cfg.SuiRPCURL), nil)
		})

	handlers := api.NewHandlers(logger, store, engine, cfg.MonitorID).
		WithAnalyzer(suggestions).
		WithMetrics(metrics.Handler()).
		WithVersion(func() version.Info { return version.Get(cfg) }).
		WithTrigger(scheduler.Trigger).
		WithWriteTimeout(cfg.WebSocketWriteTimeout)

	return &Monitor{
		cfg:        cfg,
		logger:     logger,
		conn:       conn,
		store:      store,
		engine:     engine,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		metrics:    metrics,
		server: &http.Server{
			Addr:              cfg.HTTPListenAddr,
			Handler:           api.NewRouter(handlers),
			ReadHeaderTimeout: 10 * time.Second,
		},
		health: health,
	}, nil
}

func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("starting sui-invariant-monitor",
		"monitor_id", m.cfg.MonitorID,
		"network", m.cfg.SuiNetwork,
		"rpc_url", m.cfg.SuiRPCURL,
		"objects", len(m.cfg.MonitoredObjectIDs),
		"invariants", len(m.engine.Checks()),
		"alert_sinks", m.dispatcher.Len())
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- m.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		m.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", m.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(m.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			m.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			m.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", m.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), m.cfg.ShutdownTimeout)
	defer cancelShutdown()
	m.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	m.logger.Info("sui-invariant-monitor stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

type healthSink struct {
	sink   alert.Sink
	health *HealthStatus
}

func (s *healthSink) Name() string {
	return s.sink.Name()
}

func (s *healthSink) Send(ctx context.Context, r model.Result) error {
	err := s.sink.Send(ctx, r)
	if err != nil {
		s.health.SetAlertConnected(false)
		return err
	}
	s.health.SetAlertConnected(true)
	s.health.MarkAlert(time.Now().UTC())
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}

// healthRecorder forwards cycle metrics and stamps the last completed cycle.
type healthRecorder struct {
	*observability.Metrics
	health *HealthStatus
}

func (r *healthRecorder) ObserveCycle(results []model.Result, took time.Duration, at time.Time) {
	r.Metrics.ObserveCycle(results, took, at)
	r.health.MarkCycle(at)
}
