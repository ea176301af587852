package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatfront_http_requests_total",
		Help: "Inbound API requests by method and status.",
	}, []string{"method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatfront_http_request_seconds",
		Help:    "Inbound API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	webhookSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatfront_webhook_sends_total",
		Help: "Messages forwarded to the conversation backend, by outcome.",
	}, []string{"outcome"}) // ok|http_error|timeout|transport_error

	historyFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatfront_history_fetches_total",
		Help: "History/session-list queries, by outcome.",
	}, []string{"op", "outcome"}) // op: history|sessions

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatfront_auth_failures_total",
		Help: "Normalized identity failures by kind.",
	}, []string{"kind"})
)

// CountSend records a webhook send outcome ("ok", "http_error", "timeout",
// "transport_error").
func CountSend(outcome string) { webhookSends.WithLabelValues(outcome).Inc() }

// CountFetch records a history or session-list query outcome.
func CountFetch(op, outcome string) { historyFetches.WithLabelValues(op, outcome).Inc() }

// CountAuthFailure records a normalized auth failure kind.
func CountAuthFailure(kind string) { authFailures.WithLabelValues(kind).Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records request counts and latency for every inbound request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
