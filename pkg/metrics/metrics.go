// Package metrics holds the Prometheus collectors for the scouting engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scout_engine_build_info",
			Help: "Build information of the scouting engine",
		},
		[]string{"version", "catalog_version"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_engine_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_engine_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// AskOutcomes counts answered questions by outcome: "ok" or an error kind.
	AskOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_engine_ask_outcomes_total",
			Help: "Answered scouting questions by outcome",
		},
		[]string{"outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_engine_query_duration_seconds",
			Help:    "Duration of analytics queries in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "outcome"},
	)

	QueriesTruncated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_engine_queries_truncated_total",
			Help: "Queries whose result exceeded the row cap",
		},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_engine_llm_requests_total",
			Help: "LLM calls by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	LLMProposalsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_engine_llm_proposals_rejected_total",
			Help: "LLM-proposed SQL that failed revalidation, by reason",
		},
		[]string{"reason"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_engine_llm_circuit_state",
			Help: "LLM circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)

	MCPToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_engine_mcp_tool_calls_total",
			Help: "MCP tool calls by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_engine_active_sessions",
			Help: "Conversation sessions currently held in memory",
		},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (MCP) working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records HTTP metrics, labelled by the ServeMux route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Unmatched paths share one label to keep cardinality bounded.
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
