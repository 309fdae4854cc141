package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/services/feeds"
)

// FeedSyncJob is the scheduler job that runs the feed sync
const FeedSyncJob = "feed_sync"

// SchedulerHandler handles feed sync and job endpoints
type SchedulerHandler struct {
	jobs   JobTrigger
	sync   SyncController
	logger arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(jobs JobTrigger, sync SyncController, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		jobs:   jobs,
		sync:   sync,
		logger: logger,
	}
}

// TriggerSyncHandler handles POST /api/sync. The sync runs in the background.
func (h *SchedulerHandler) TriggerSyncHandler(w http.ResponseWriter, r *http.Request) {
	if h.sync.Running() {
		WriteServiceError(w, feeds.ErrSyncRunning)
		return
	}
	if err := h.jobs.TriggerJob(FeedSyncJob); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to trigger feed sync")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Feed sync started")
}

// StopSyncHandler handles POST /api/sync/stop
func (h *SchedulerHandler) StopSyncHandler(w http.ResponseWriter, r *http.Request) {
	stopped := h.sync.Stop()
	if stopped {
		h.logger.Info().Msg("Feed sync cancellation requested")
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stopped": stopped,
	})
}

// JobsHandler handles GET /api/jobs
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.jobs.JobStatuses())
}

// TriggerJobHandler handles POST /api/jobs/{name}/run
func (h *SchedulerHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.jobs.TriggerJob(name); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	WriteStarted(w, "Job "+name+" started")
}
