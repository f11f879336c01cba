package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	ActionsCreatedTotal     *prometheus.CounterVec
	ActionTransitionsTotal  *prometheus.CounterVec
	EscalationsEmittedTotal prometheus.Counter
	SweepDuration           prometheus.Histogram

	BroadcastSubscribers     *prometheus.GaugeVec
	BroadcastDroppedTotal    *prometheus.CounterVec
	BroadcastPublishedEvents *prometheus.CounterVec

	DBConnections prometheus.Gauge

	AuditEntriesTotal  prometheus.Counter
	AuditBufferDropped prometheus.Counter
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		ActionsCreatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "workflow",
			Name:      "actions_created_total",
			Help:      "Total clinical actions created, by kind.",
		}, []string{"kind"}),

		ActionTransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total successful state transitions, by kind.",
		}, []string{"kind"}),

		EscalationsEmittedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "workflow",
			Name:      "escalations_emitted_total",
			Help:      "Total SLA escalation events emitted by the sweeper.",
		}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "workflow",
			Name:      "sweep_duration_seconds",
			Help:      "Escalation sweep cycle latency distribution.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),

		BroadcastSubscribers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Current live subscribers by key kind.",
		}, []string{"kind"}),

		BroadcastDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "broadcast",
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers dropped for falling behind, by key kind. Alert if growing.",
		}, []string{"kind"}),

		BroadcastPublishedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "broadcast",
			Name:      "published_events_total",
			Help:      "Events published to the hub, by event type.",
		}, []string{"event_type"}),

		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),

		AuditEntriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "Total audit log entries written.",
		}),

		AuditBufferDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "audit",
			Name:      "buffer_dropped_total",
			Help:      "Audit entries dropped due to full buffer. Alert if non-zero.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
