package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gate and the event service
type Metrics struct {
	registry *prometheus.Registry

	// Gate metrics
	GateDecisionsTotal      *prometheus.CounterVec
	RateLimitHitsTotal      *prometheus.CounterVec
	SecurityViolationsTotal prometheus.Counter
	ToolExecutionDuration   *prometheus.HistogramVec

	// Authorization metrics
	AuthorizationRequestsTotal *prometheus.CounterVec

	// Event sourcing metrics
	MonitorIterationsTotal *prometheus.CounterVec
	MonitorRestartsTotal   prometheus.Counter
	FeedbackEmittedTotal   *prometheus.CounterVec
	TasksActive            prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_decisions_total",
				Help: "Total number of call gate decisions",
			},
			[]string{"tool_name", "decision"},
		),
		RateLimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_rate_limit_hits_total",
				Help: "Total number of calls denied by rate limiting",
			},
			[]string{"tool_name"},
		),
		SecurityViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_security_violations_total",
				Help: "Total number of forbidden-pattern matches",
			},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_tool_execution_duration_seconds",
				Help:    "Duration of gated tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		AuthorizationRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authorization_requests_total",
				Help: "Total number of authorization requests by final status",
			},
			[]string{"status"},
		),

		MonitorIterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_iterations_total",
				Help: "Total number of monitor loop iterations",
			},
			[]string{"task_type", "status"},
		),
		MonitorRestartsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_restarts_total",
				Help: "Total number of monitors respawned by the health check",
			},
		),
		FeedbackEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_emitted_total",
				Help: "Total number of feedback events emitted by monitors",
			},
			[]string{"task_type"},
		),
		TasksActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tasks_active",
				Help: "Number of currently active background tasks",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.GateDecisionsTotal)
	m.registry.MustRegister(m.RateLimitHitsTotal)
	m.registry.MustRegister(m.SecurityViolationsTotal)
	m.registry.MustRegister(m.ToolExecutionDuration)

	m.registry.MustRegister(m.AuthorizationRequestsTotal)

	m.registry.MustRegister(m.MonitorIterationsTotal)
	m.registry.MustRegister(m.MonitorRestartsTotal)
	m.registry.MustRegister(m.FeedbackEmittedTotal)
	m.registry.MustRegister(m.TasksActive)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
