package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records mutation outcomes and payment gateway calls.
type EngineMetrics struct {
	mutations *prometheus.CounterVec
	gateway   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_mutations_total",
		Help: "Committed and rejected order mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_duration_seconds",
		Help:    "Duration of payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"call"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_gateway_failures_total",
		Help: "Failed payment gateway calls by call and reason.",
	}, []string{"call", "reason"})
	reg.MustRegister(mutations, gateway, failures)
	return &EngineMetrics{
		mutations: mutations,
		gateway:   gateway,
		failures:  failures,
	}
}

// ObserveMutation counts one mutation attempt.
func (m *EngineMetrics) ObserveMutation(operation, outcome string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
}

// ObserveGatewayCall records a gateway call duration.
func (m *EngineMetrics) ObserveGatewayCall(call string, duration time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(call).Observe(duration.Seconds())
}

// IncGatewayFailure counts a failed gateway call.
func (m *EngineMetrics) IncGatewayFailure(call, reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(call, reason).Inc()
}
