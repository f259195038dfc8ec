package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sqlGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_sql_generated_total",
			Help: "Total number of SQL statements produced, by generation method.",
		},
		[]string{"method"},
	)
	templateMatchConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finquery_template_match_confidence",
			Help:    "Confidence of the best deterministic template match per question.",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_llm_calls_total",
			Help: "Total number of LLM calls, by pipeline stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_validation_rejections_total",
			Help: "Total number of SQL validation rejections, by validator stage.",
		},
		[]string{"stage"},
	)
	askLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finquery_ask_latency_seconds",
			Help:    "End to end latency of question resolution.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	askFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finquery_ask_failures_total",
			Help: "Total number of failed question resolutions, by failure kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		sqlGeneratedTotal,
		templateMatchConfidence,
		llmCallsTotal,
		validationRejectionsTotal,
		askLatencySeconds,
		askFailuresTotal,
	)
}

func ObserveSQLGenerated(method string) {
	sqlGeneratedTotal.WithLabelValues(method).Inc()
}

func ObserveTemplateMatch(confidence float64) {
	templateMatchConfidence.Observe(confidence)
}

func ObserveLLMCall(stage string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	llmCallsTotal.WithLabelValues(stage, outcome).Inc()
}

func ObserveValidationRejection(stage string) {
	validationRejectionsTotal.WithLabelValues(stage).Inc()
}

func ObserveAsk(elapsed time.Duration, failureKind string) {
	askLatencySeconds.Observe(elapsed.Seconds())
	if failureKind != "" {
		askFailuresTotal.WithLabelValues(failureKind).Inc()
	}
}
