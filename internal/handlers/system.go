package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/taskpilot/assistant-api/internal/db"
	"github.com/taskpilot/assistant-api/internal/logging"
	"github.com/taskpilot/assistant-api/internal/metrics"
)

/* SystemHandlers handles the time, health and system endpoints */
type SystemHandlers struct {
	store    *db.Store
	logger   *logging.Logger
	location *time.Location
}

/* NewSystemHandlers creates new system handlers */
func NewSystemHandlers(store *db.Store, logger *logging.Logger) *SystemHandlers {
	location, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		location = time.FixedZone("CST", 8*3600)
	}
	return &SystemHandlers{
		store:    store,
		logger:   logger,
		location: location,
	}
}

/* GetCurrentTime returns the current time in Asia/Shanghai */
func (h *SystemHandlers) GetCurrentTime(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.location)
	formatted := now.Format("2006年01月02日 15:04:05")
	WriteSuccess(w, map[string]string{
		"timestamp": now.Format(time.RFC3339),
		"time":      formatted,
		"message":   fmt.Sprintf("当前时间是 %s", formatted),
	}, http.StatusOK)
}

/* GetHealth reports service and datastore health */
func (h *SystemHandlers) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"service":   "assistant-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check: database unreachable", map[string]interface{}{
			"error": err.Error(),
		})
		response["status"] = "degraded"
		response["database"] = "unreachable"
		WriteSuccess(w, response, http.StatusServiceUnavailable)
		return
	}

	response["database"] = "ok"
	WriteSuccess(w, response, http.StatusOK)
}

/* GetSystemMetrics returns current system metrics */
func (h *SystemHandlers) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	systemMetrics, err := metrics.CollectSystemMetrics(r.Context())
	if err != nil {
		h.logger.Error("Failed to collect system metrics", err, nil)
		WriteError(w, r, http.StatusInternalServerError, err)
		return
	}
	WriteSuccess(w, systemMetrics, http.StatusOK)
}
