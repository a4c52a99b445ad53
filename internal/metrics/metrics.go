package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ModelCallsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitcoach_model_calls_in_flight",
			Help: "Outbound language-model calls currently in flight.",
		},
	)

	ModelCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_model_calls_total",
			Help: "Total outbound language-model calls by outcome.",
		},
		[]string{"phase", "outcome"},
	)

	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_tool_executions_total",
			Help: "Total memory-tool executions by tool and status.",
		},
		[]string{"tool", "status"},
	)

	RetrievalResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_retrieval_results_total",
			Help: "Retrieved snippets by match type.",
		},
		[]string{"match_type"},
	)

	MessagesStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_messages_stored_total",
			Help: "Conversation messages appended to the store.",
		},
	)

	MessagesPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_messages_pruned_total",
			Help: "Conversation messages removed by retention pruning.",
		},
	)

	IndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitcoach_index_vectors",
			Help: "Vectors currently held by the in-memory index.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ModelCallsInFlight,
		ModelCallsTotal,
		ToolExecutionsTotal,
		RetrievalResultsTotal,
		MessagesStoredTotal,
		MessagesPrunedTotal,
		IndexSize,
	)
}
