package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querychat_messages_processed_total",
			Help: "Total number of processed conversation messages by mode and outcome.",
		},
		[]string{"mode", "outcome"},
	)
	quotaRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querychat_quota_rejections_total",
			Help: "Total number of messages rejected by the usage ledger.",
		},
	)
	modelLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querychat_model_latency_seconds",
			Help:    "Model gateway call latency in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)
	modelTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querychat_model_tokens_total",
			Help: "Total tokens consumed across model gateway calls.",
		},
	)
	statementExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querychat_statement_executions_total",
			Help: "Total extracted statement executions by outcome.",
		},
		[]string{"outcome"},
	)
	datasetsMaterializedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querychat_datasets_materialized_total",
			Help: "Total number of uploaded datasets materialized to the object store.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		messagesProcessedTotal,
		quotaRejectionsTotal,
		modelLatencySeconds,
		modelTokensTotal,
		statementExecutionsTotal,
		datasetsMaterializedTotal,
	)
}

func ObserveMessageProcessed(mode, outcome string) {
	messagesProcessedTotal.WithLabelValues(mode, outcome).Inc()
}

func IncrementQuotaRejection() {
	quotaRejectionsTotal.Inc()
}

func ObserveModelCall(elapsed time.Duration, tokens int) {
	modelLatencySeconds.Observe(elapsed.Seconds())
	if tokens > 0 {
		modelTokensTotal.Add(float64(tokens))
	}
}

func ObserveStatementExecution(outcome string) {
	statementExecutionsTotal.WithLabelValues(outcome).Inc()
}

func IncrementDatasetMaterialized() {
	datasetsMaterializedTotal.Inc()
}
