package metrics

import "github.com/prometheus/client_golang/prometheus"

var breakerStates = []string{"closed", "half-open", "open"}

// DependencyMetrics exports retry and circuit breaker activity of upstream
// calls. It satisfies resilience.Observer.
type DependencyMetrics struct {
	retries *prometheus.CounterVec
	breaker *prometheus.GaugeVec
}

// NewDependencyMetrics registers its collectors on reg.
func NewDependencyMetrics(reg prometheus.Registerer) *DependencyMetrics {
	m := &DependencyMetrics{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "retries_total",
			Help:      "Retried upstream calls by operation.",
		}, []string{"operation"}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "breaker_state",
			Help:      "1 for the current circuit breaker state of an operation.",
		}, []string{"operation", "state"}),
	}
	reg.MustRegister(m.retries, m.breaker)
	return m
}

func (m *DependencyMetrics) ObserveRetry(operation string) {
	m.retries.WithLabelValues(operation).Inc()
}

func (m *DependencyMetrics) ObserveBreakerState(operation, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.breaker.WithLabelValues(operation, s).Set(v)
	}
}
