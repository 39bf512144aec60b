package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the companion service.
// Observation helpers are nil-receiver safe so unit tests can run without a
// registry.
type Metrics struct {
	ActiveSessions     *prometheus.GaugeVec
	SessionEvents      *prometheus.CounterVec
	CapabilityFailures *prometheus.CounterVec
	VoiceTurnLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live sessions by kind.",
		}, []string{"kind"}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session state transitions by kind and event.",
		}, []string{"kind", "event"}),
		CapabilityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_failures_total",
			Help:      "Capability failures by taxonomy code.",
		}, []string{"code"}),
		VoiceTurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "voice_turn_latency_ms",
			Help:      "Latency from voice turn request to assistant reply in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
	}
}

func (m *Metrics) SetActive(kind string, n float64) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(kind).Set(n)
}

func (m *Metrics) SessionEvent(kind, event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(kind, event).Inc()
}

func (m *Metrics) Failure(code string) {
	if m == nil {
		return
	}
	m.CapabilityFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveVoiceTurnLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.VoiceTurnLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
