package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var llmLatency = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "agent",
		Name:      "llm_latency_seconds",
		Help:      "Latency of LLM completions",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10, 15, 20, 30},
	},
	[]string{"provider", "model", "status"},
)

var llmTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "agent",
		Name:      "llm_tokens_total",
		Help:      "Tokens consumed by LLM completions",
	},
	[]string{"provider", "model", "type"}, // type: input, output
)

func init() {
	prometheus.MustRegister(llmLatency)
	prometheus.MustRegister(llmTokensTotal)
}

// RegisterMetrics registers agent metrics with a custom registry. Use when
// exposing a non-default registry.
func RegisterMetrics(reg prometheus.Registerer) {
	if reg == nil || reg == prometheus.DefaultRegisterer {
		return
	}
	reg.MustRegister(llmLatency, llmTokensTotal)
}

func observeCompletion(provider, model, status string, elapsed time.Duration, usage TokenUsage) {
	llmLatency.WithLabelValues(provider, model, status).Observe(elapsed.Seconds())
	if usage.InputTokens > 0 {
		llmTokensTotal.WithLabelValues(provider, model, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		llmTokensTotal.WithLabelValues(provider, model, "output").Add(float64(usage.OutputTokens))
	}
}
