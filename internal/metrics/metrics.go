package metrics

import (
	"sync"
	"time"
)

/* Metrics collects application metrics */
type Metrics struct {
	mu sync.RWMutex

	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64

	TotalResponseTime time.Duration
	MinResponseTime   time.Duration
	MaxResponseTime   time.Duration

	EndpointCounts map[string]int64
	EndpointErrors map[string]int64

	ActiveSessions int

	IntentCounts   map[string]int64
	FrameCounts    map[string]int64
	FallbackCounts map[string]int64

	CommandCacheHits   int64
	CommandCacheMisses int64
	QueryCacheHits     int64
	QueryCacheMisses   int64

	ErrorCounts map[string]int64
}

var globalMetrics = NewMetrics()

/* NewMetrics creates a new metrics instance */
func NewMetrics() *Metrics {
	return &Metrics{
		EndpointCounts:  make(map[string]int64),
		EndpointErrors:  make(map[string]int64),
		IntentCounts:    make(map[string]int64),
		FrameCounts:     make(map[string]int64),
		FallbackCounts:  make(map[string]int64),
		ErrorCounts:     make(map[string]int64),
		MinResponseTime: time.Hour, /* Initialize to large value */
	}
}

/* GetGlobalMetrics returns the global metrics instance */
func GetGlobalMetrics() *Metrics {
	return globalMetrics
}

/* RecordRequest records a request */
func (m *Metrics) RecordRequest(endpoint string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
		m.EndpointErrors[endpoint]++
	}

	m.EndpointCounts[endpoint]++
	m.TotalResponseTime += duration

	if duration < m.MinResponseTime {
		m.MinResponseTime = duration
	}
	if duration > m.MaxResponseTime {
		m.MaxResponseTime = duration
	}
}

/* RecordError records an error */
func (m *Metrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCounts[errorType]++
}

/* RecordIntent records an intent cascade outcome */
func (m *Metrics) RecordIntent(intent string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntentCounts[intent]++
}

/* RecordFrame records an outbound chat frame */
func (m *Metrics) RecordFrame(frameType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FrameCounts[frameType]++
}

/* RecordFallback records a degraded fast-path request */
func (m *Metrics) RecordFallback(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackCounts[reason]++
}

/* RecordCacheLookup records a cache lookup for the named store */
func (m *Metrics) RecordCacheLookup(store string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch store {
	case "command":
		if hit {
			m.CommandCacheHits++
		} else {
			m.CommandCacheMisses++
		}
	case "query":
		if hit {
			m.QueryCacheHits++
		} else {
			m.QueryCacheMisses++
		}
	}
}

/* SetActiveSessions sets the active websocket session count */
func (m *Metrics) SetActiveSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveSessions = n
}

/* GetStats returns current statistics */
func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avgResponseTime := time.Duration(0)
	if m.TotalRequests > 0 {
		avgResponseTime = m.TotalResponseTime / time.Duration(m.TotalRequests)
	}

	return map[string]interface{}{
		"requests": map[string]interface{}{
			"total":      m.TotalRequests,
			"successful": m.SuccessfulRequests,
			"failed":     m.FailedRequests,
		},
		"response_time": map[string]interface{}{
			"avg_ms": avgResponseTime.Milliseconds(),
			"min_ms": m.MinResponseTime.Milliseconds(),
			"max_ms": m.MaxResponseTime.Milliseconds(),
		},
		"sessions": map[string]interface{}{
			"active": m.ActiveSessions,
		},
		"cache": map[string]interface{}{
			"command": map[string]interface{}{
				"hits":   m.CommandCacheHits,
				"misses": m.CommandCacheMisses,
			},
			"query": map[string]interface{}{
				"hits":   m.QueryCacheHits,
				"misses": m.QueryCacheMisses,
			},
		},
		"intents":   m.IntentCounts,
		"frames":    m.FrameCounts,
		"fallbacks": m.FallbackCounts,
		"endpoints": m.EndpointCounts,
		"errors":    m.ErrorCounts,
	}
}

/* Reset resets all metrics */
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.SuccessfulRequests = 0
	m.FailedRequests = 0
	m.TotalResponseTime = 0
	m.MinResponseTime = time.Hour
	m.MaxResponseTime = 0
	m.CommandCacheHits = 0
	m.CommandCacheMisses = 0
	m.QueryCacheHits = 0
	m.QueryCacheMisses = 0
	m.EndpointCounts = make(map[string]int64)
	m.EndpointErrors = make(map[string]int64)
	m.IntentCounts = make(map[string]int64)
	m.FrameCounts = make(map[string]int64)
	m.FallbackCounts = make(map[string]int64)
	m.ErrorCounts = make(map[string]int64)
}
