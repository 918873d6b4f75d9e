package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_api_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Chat pipeline metrics
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_api_active_chat_sessions",
			Help: "Number of open websocket chat sessions",
		},
	)

	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_chat_frames_total",
			Help: "Outbound chat frames by type",
		},
		[]string{"type"},
	)

	intentMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_intent_matches_total",
			Help: "Intent cascade outcomes by intent type",
		},
		[]string{"intent"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_chat_fallbacks_total",
			Help: "Fast-path requests degraded to the chat-completion fallback",
		},
		[]string{"reason"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_api_cache_lookups_total",
			Help: "Cache lookups by store and outcome",
		},
		[]string{"store", "result"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	switch {
	case statusCode >= 200 && statusCode < 300:
		status = "2xx"
	case statusCode >= 300 && statusCode < 400:
		status = "3xx"
	case statusCode >= 400 && statusCode < 500:
		status = "4xx"
	case statusCode >= 500:
		status = "5xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// SessionOpened increments the active session gauge
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge
func SessionClosed() {
	activeSessions.Dec()
}

// RecordFrame counts one outbound frame
func RecordFrame(frameType string) {
	framesTotal.WithLabelValues(frameType).Inc()
	globalMetrics.RecordFrame(frameType)
}

// RecordIntentMatch counts one cascade outcome
func RecordIntentMatch(intent string) {
	intentMatchesTotal.WithLabelValues(intent).Inc()
	globalMetrics.RecordIntent(intent)
}

// RecordFallback counts one degraded fast-path request
func RecordFallback(reason string) {
	fallbacksTotal.WithLabelValues(reason).Inc()
	globalMetrics.RecordFallback(reason)
}

// RecordCacheLookup counts one cache lookup
func RecordCacheLookup(store string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(store, result).Inc()
	globalMetrics.RecordCacheLookup(store, hit)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
