package middleware

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics holds the Prometheus instruments the resilience layer
// emits on state transitions. A nil *PipelineMetrics is valid and turns
// every record call into a no-op, so metrics stay optional per
// config.MetricsConfig.Enabled without branching at every call site.
type PipelineMetrics struct {
	circuitBreakerTransitions *prometheus.CounterVec
	bulkheadRejections        prometheus.Counter
	bulkheadInFlight          prometheus.Gauge
}

// NewPipelineMetrics registers the resilience instruments with reg and
// returns a handle for the resilience middleware to record against.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		circuitBreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svccore_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions, labeled by origin and destination state.",
		}, []string{"from", "to"}),
		bulkheadRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "svccore_bulkhead_rejections_total",
			Help: "Requests rejected by the bulkhead after exceeding the max wait.",
		}),
		bulkheadInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "svccore_bulkhead_in_flight",
			Help: "Requests currently holding a bulkhead slot.",
		}),
	}
	reg.MustRegister(m.circuitBreakerTransitions, m.bulkheadRejections, m.bulkheadInFlight)
	return m
}

func (m *PipelineMetrics) recordTransition(from, to string) {
	if m == nil {
		return
	}
	m.circuitBreakerTransitions.WithLabelValues(from, to).Inc()
}

func (m *PipelineMetrics) recordBulkheadRejection() {
	if m == nil {
		return
	}
	m.bulkheadRejections.Inc()
}

func (m *PipelineMetrics) bulkheadSlotAcquired() {
	if m == nil {
		return
	}
	m.bulkheadInFlight.Inc()
}

func (m *PipelineMetrics) bulkheadSlotReleased() {
	if m == nil {
		return
	}
	m.bulkheadInFlight.Dec()
}
