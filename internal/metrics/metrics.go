// Package metrics exposes Prometheus instrumentation for the daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the daemon.
type Metrics struct {
	registry *prometheus.Registry

	// Turn metrics
	MessagesReceivedTotal prometheus.Counter
	TurnDuration          prometheus.Histogram

	// Action pipeline
	ActionOutcomesTotal *prometheus.CounterVec

	// Evaluator pipeline
	EvaluatorRunsTotal *prometheus.CounterVec

	// Persistence resilience
	BreakerState      prometheus.Gauge
	StoreRetriesTotal prometheus.Counter

	// Approval workflow
	ApprovalsEnqueuedTotal prometheus.Counter
	ApprovalOutcomesTotal  *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messages_received_total",
			Help: "Total number of inbound messages handled",
		}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "Duration of one full message turn in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		ActionOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "action_outcomes_total",
				Help: "Action pipeline outcomes by behavior and status",
			},
			[]string{"action", "status"},
		),

		EvaluatorRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "evaluator_runs_total",
				Help: "Evaluator runs by evaluator and result",
			},
			[]string{"evaluator", "result"},
		),

		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "store_breaker_state",
			Help: "Circuit breaker state of the store (0=closed, 1=open, 2=half-open)",
		}),
		StoreRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Total number of retried store operations",
		}),

		ApprovalsEnqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "approvals_enqueued_total",
			Help: "Total number of tasks submitted for approval",
		}),
		ApprovalOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_outcomes_total",
				Help: "Terminal approval outcomes by kind",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.MessagesReceivedTotal,
		m.TurnDuration,
		m.ActionOutcomesTotal,
		m.EvaluatorRunsTotal,
		m.BreakerState,
		m.StoreRetriesTotal,
		m.ApprovalsEnqueuedTotal,
		m.ApprovalOutcomesTotal,
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
