package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the check pipeline.
type Metrics struct {
	ChecksTotal          *prometheus.CounterVec
	CheckDuration        *prometheus.HistogramVec
	ChecksInFlight       prometheus.Gauge
	SkippedOverlaps      prometheus.Counter
	NotifyFailures       *prometheus.CounterVec
	IncidentsOpened      prometheus.Counter
	IncidentsResolved    prometheus.Counter
	HeartbeatsLate       prometheus.Gauge
	HeartbeatsReceived   prometheus.Counter
	BrowserEngineRetries prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_checks_total",
			Help: "Completed checks by monitor kind and resulting status.",
		}, []string{"kind", "status"}),
		CheckDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spyglass_check_duration_seconds",
			Help:    "Wall time of protocol checks.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		ChecksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_checks_in_flight",
			Help: "Checks currently executing.",
		}),
		SkippedOverlaps: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_check_overlaps_skipped_total",
			Help: "Timer fires skipped because the previous check was still running.",
		}),
		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spyglass_notification_failures_total",
			Help: "Notification deliveries that returned an error.",
		}, []string{"channel_type"}),
		IncidentsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_incidents_opened_total",
			Help: "Incidents created by the incident manager.",
		}),
		IncidentsResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_incidents_resolved_total",
			Help: "Incidents resolved by the incident manager.",
		}),
		HeartbeatsLate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spyglass_heartbeats_late",
			Help: "Heartbeat tokens currently past their grace window.",
		}),
		HeartbeatsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_heartbeats_received_total",
			Help: "Inbound heartbeat pushes accepted.",
		}),
		BrowserEngineRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "spyglass_browser_engine_fallbacks_total",
			Help: "Synthetic checks that fell back to another browser engine.",
		}),
	}
}

// NewNop returns instruments backed by a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
