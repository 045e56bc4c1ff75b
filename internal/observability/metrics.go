// Package observability exposes the monitor's Prometheus metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sui-invariant-monitor/internal/model"
)

const namespace = "sui_monitor"

type Metrics struct {
	registry *prometheus.Registry

	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	lastCycle        prometheus.Gauge
	invariantStatus  *prometheus.GaugeVec
	violations       prometheus.Gauge
	errors           prometheus.Gauge
	monitoredObjects prometheus.Gauge
	alerts           *prometheus.CounterVec
	rpcUp            prometheus.Gauge
}

// NewMetrics registers every collector on reg. A nil reg gets a fresh
// registry with the Go and process collectors.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Evaluation cycles by outcome (ok, failed)",
		}, []string{"outcome"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one fetch, aggregate and evaluate cycle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		}),
		invariantStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "invariant_status",
			Help:      "1 for the current status of each invariant, 0 otherwise",
		}, []string{"invariant_id", "status"}),
		violations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "violations",
			Help:      "Violated invariants in the last cycle",
		}),
		errors: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_errors",
			Help:      "Invariants that failed to evaluate in the last cycle",
		}),
		monitoredObjects: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "monitored_objects",
			Help:      "Objects fetched each cycle",
		}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert deliveries by sink and outcome (delivered, failed)",
		}, []string{"sink", "outcome"}),
		rpcUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rpc_up",
			Help:      "1 when the last node health probe succeeded",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var statuses = []model.Status{model.StatusOK, model.StatusViolated, model.StatusError}

// ObserveCycle records a completed evaluation.
func (m *Metrics) ObserveCycle(results []model.Result, took time.Duration, at time.Time) {
	m.cycles.WithLabelValues("ok").Inc()
	m.cycleDuration.Observe(took.Seconds())
	m.lastCycle.Set(float64(at.Unix()))

	var violations, errs int
	m.invariantStatus.Reset()
	for _, r := range results {
		for _, s := range statuses {
			v := 0.0
			if r.Status == s {
				v = 1
			}
			m.invariantStatus.WithLabelValues(r.ID, string(s)).Set(v)
		}
		switch r.Status {
		case model.StatusViolated:
			violations++
		case model.StatusError:
			errs++
		}
	}
	m.violations.Set(float64(violations))
	m.errors.Set(float64(errs))
}

func (m *Metrics) CycleFailed() {
	m.cycles.WithLabelValues("failed").Inc()
}

func (m *Metrics) SetMonitoredObjects(n int) {
	m.monitoredObjects.Set(float64(n))
}

func (m *Metrics) SetRPCUp(up bool) {
	if up {
		m.rpcUp.Set(1)
		return
	}
	m.rpcUp.Set(0)
}

func (m *Metrics) AlertDelivered(sink string) {
	m.alerts.WithLabelValues(sink, "delivered").Inc()
}

func (m *Metrics) AlertFailed(sink string) {
	m.alerts.WithLabelValues(sink, "failed").Inc()
}
