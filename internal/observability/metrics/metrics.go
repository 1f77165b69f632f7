package metrics

import "github.com/prometheus/client_golang/prometheus"

// SessionMetrics exposes counters/histograms for the interview pipeline.
type SessionMetrics struct {
	transitionsTotal *prometheus.CounterVec
	turnLatency      *prometheus.HistogramVec
	evaluationsTotal *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Total session lifecycle operations",
		}, []string{"operation", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interview",
			Subsystem: "session",
			Name:      "turn_latency_seconds",
			Help:      "Latency of candidate response processing end to end",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview",
			Subsystem: "evaluation",
			Name:      "reports_total",
			Help:      "Total evaluation report generations",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.turnLatency, m.evaluationsTotal)
	return m
}

func (m *SessionMetrics) ObserveTransition(operation, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(operation, status).Inc()
}

func (m *SessionMetrics) ObserveTurnLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.turnLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *SessionMetrics) ObserveEvaluation(status string) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(status).Inc()
}
