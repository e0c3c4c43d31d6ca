// Package metrics exposes broker counters on a private Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphone"

// Request outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeFailed     = "failed"
	OutcomeTimeout    = "timeout"
	OutcomeWriteError = "write_error"
	OutcomeReleased   = "released"
)

type Metrics struct {
	Registry *prometheus.Registry

	Spawns        prometheus.Counter
	Terminations  *prometheus.CounterVec
	Requests      *prometheus.CounterVec
	RequestTime   *prometheus.HistogramVec
	Pending       prometheus.Gauge
	LateResponses prometheus.Counter
	EventsEmitted *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	DeltasMerged  prometheus.Counter
	InvalidFrames *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sidecar_spawns_total",
			Help: "Worker processes started.",
		}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sidecar_terminations_total",
			Help: "Worker processes that ended, by kind.",
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rpc_requests_total",
			Help: "Request/response commands by command and outcome.",
		}, []string{"command", "outcome"}),
		RequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "rpc_request_seconds",
			Help:    "Time from write to response.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"command"}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "rpc_pending",
			Help: "Requests waiting for a response.",
		}),
		LateResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rpc_late_responses_total",
			Help: "Responses that arrived with no waiter.",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ui_events_emitted_total",
			Help: "Events published to the UI, by event name.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ui_events_dropped_total",
			Help: "Events not published to the UI, by reason.",
		}, []string{"reason"}),
		DeltasMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deltas_merged_total",
			Help: "Streaming deltas folded into a pending delta.",
		}),
		InvalidFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_frames_total",
			Help: "Stdout units that could not be used, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Spawns,
		m.Terminations,
		m.Requests,
		m.RequestTime,
		m.Pending,
		m.LateResponses,
		m.EventsEmitted,
		m.EventsDropped,
		m.DeltasMerged,
		m.InvalidFrames,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
