package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics instruments questions answered over the message bus.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	asks       *prometheus.CounterVec
	askLatency *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	replyBytes prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	labels := prometheus.Labels{"service": service}
	m := &WorkerMetrics{
		registry: prometheus.NewRegistry(),
		service:  service,
		asks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "asks_total",
			Help:      "Questions answered by the worker, by outcome and route.",
		}, []string{"service", "outcome", "route"}),
		askLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "ask_duration_seconds",
			Help:      "Time from request receipt to reply, by outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "asks_in_flight",
			Help:        "Questions currently being answered.",
			ConstLabels: labels,
		}),
		replyBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "reply_bytes",
			Help:        "Size of reply payloads.",
			Buckets:     prometheus.ExponentialBuckets(256, 2, 8),
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(m.asks, m.askLatency, m.inFlight, m.replyBytes)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry lets other collectors, such as DependencyMetrics, share the
// worker's /metrics endpoint.
func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrackAsk marks one question in flight. The returned func records its
// outcome; route is ignored when err is set.
func (m *WorkerMetrics) TrackAsk() func(route string, err error) {
	start := time.Now()
	m.inFlight.Inc()
	return func(route string, err error) {
		m.inFlight.Dec()
		outcome := "ok"
		switch {
		case err != nil:
			outcome, route = ErrorKind(err), "none"
		case route == "":
			route = "unknown"
		}
		m.asks.WithLabelValues(m.service, outcome, route).Inc()
		m.askLatency.WithLabelValues(m.service, outcome).Observe(time.Since(start).Seconds())
	}
}

func (m *WorkerMetrics) ObserveReplySize(bytes int) {
	m.replyBytes.Observe(float64(bytes))
}
