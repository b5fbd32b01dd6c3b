package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
)

const namespace = "aok"

// HTTPServerMetrics covers the api binary: transport level request metrics
// plus per-invocation routing outcomes.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	rateLimited     *prometheus.CounterVec
	overloadRejects *prometheus.CounterVec

	routes       *prometheus.CounterVec
	routeLatency *prometheus.HistogramVec
	returnedDocs *prometheus.HistogramVec
	noEvidence   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	tokens       *prometheus.CounterVec
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
	}, labels)
}

func histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	m := &HTTPServerMetrics{
		registry: prometheus.NewRegistry(),

		requests: counterVec("http", "requests_total",
			"Total HTTP requests processed.", "service", "method", "path", "status"),
		requestLatency: histogramVec("http", "request_duration_seconds",
			"HTTP request duration in seconds.", prometheus.DefBuckets, "service", "method", "path"),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		rateLimited: counterVec("http", "rate_limited_total",
			"Requests rejected by the rate limiter.", "service"),
		overloadRejects: counterVec("http", "overload_rejected_total",
			"Requests rejected by the in-flight gate.", "service"),

		routes: counterVec("rag", "routes_total",
			"Completed invocations by router branch.", "service", "endpoint", "route"),
		routeLatency: histogramVec("rag", "duration_seconds",
			"Invocation duration in seconds by route.", prometheus.DefBuckets, "service", "endpoint", "route"),
		returnedDocs: histogramVec("rag", "returned_docs",
			"Distribution of passages returned per generated answer.", []float64{0, 1, 2, 3, 4, 6, 8, 10}, "service", "endpoint"),
		noEvidence: counterVec("rag", "no_evidence_total",
			"Invocations answered with the no-evidence fallback.", "service", "endpoint"),
		failures: counterVec("rag", "failures_total",
			"Failed invocations by error kind.", "service", "endpoint", "kind"),
		tokens: counterVec("llm", "tokens_total",
			"Approximate token usage by direction.", "service", "endpoint", "direction", "model"),
	}
	m.registry.MustRegister(
		m.requests, m.requestLatency, m.inFlight, m.rateLimited, m.overloadRejects,
		m.routes, m.routeLatency, m.returnedDocs, m.noEvidence, m.failures, m.tokens,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		m.inFlight.Inc()
		defer m.inFlight.Dec()
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		m.requests.WithLabelValues(service, r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.requestLatency.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordAnswer observes one completed invocation.
func (m *HTTPServerMetrics) RecordAnswer(service, endpoint string, resp *domain.Response, duration time.Duration) {
	if resp == nil {
		return
	}
	route := string(resp.Route)
	if route == "" {
		route = "unknown"
	}
	m.routes.WithLabelValues(service, endpoint, route).Inc()
	m.routeLatency.WithLabelValues(service, endpoint, route).Observe(duration.Seconds())

	switch resp.Route {
	case domain.RouteGenerated:
		m.returnedDocs.WithLabelValues(service, endpoint).Observe(float64(len(resp.Docs)))
	case domain.RouteNoEvidence:
		m.noEvidence.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordFailure(service, endpoint string, err error) {
	m.failures.WithLabelValues(service, endpoint, ErrorKind(err)).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	for direction, n := range map[string]int{"in": promptTokens, "out": completionTokens} {
		if n > 0 {
			m.tokens.WithLabelValues(service, endpoint, direction, model).Add(float64(n))
		}
	}
}

func (m *HTTPServerMetrics) RecordRateLimited(service string) {
	m.rateLimited.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordOverloadRejected(service string) {
	m.overloadRejects.WithLabelValues(service).Inc()
}

// ErrorKind maps an error to a stable low-cardinality label.
func ErrorKind(err error) string {
	return domain.KindLabel(err)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
