package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
)

// StatusHandler handles HTTP requests for application status
type StatusHandler struct {
	status StatusReporter
	jobs   JobTrigger
	logger arbor.ILogger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(status StatusReporter, jobs JobTrigger, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		status: status,
		jobs:   jobs,
		logger: logger,
	}
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
	}
	if h.status != nil {
		response["app"] = h.status.GetStatus()
	}
	if h.jobs != nil {
		response["jobs"] = h.jobs.JobStatuses()
	}
	WriteJSON(w, http.StatusOK, response)
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}
