package handlers

import (
	"net/http"

	"github.com/taskpilot/assistant-api/internal/metrics"
)

/* MetricsHandlers exposes the in-process counters over /api/metrics;
   the Prometheus endpoint is mounted separately */
type MetricsHandlers struct {
	metrics *metrics.Metrics
}

func NewMetricsHandlers() *MetricsHandlers {
	return &MetricsHandlers{
		metrics: metrics.GetGlobalMetrics(),
	}
}

/* GetMetrics returns a snapshot of request, session, cache and
   intent counters */
func (h *MetricsHandlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	stats := h.metrics.GetStats()
	WriteSuccess(w, stats, http.StatusOK)
}

/* ResetMetrics zeroes every counter */
func (h *MetricsHandlers) ResetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Reset()
	WriteSuccess(w, map[string]string{"message": "Metrics reset"}, http.StatusOK)
}
