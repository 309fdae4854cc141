package handlers

import "github.com/ternarybob/dealdesk/internal/services/scheduler"

// JobTrigger starts and reports registered background jobs.
type JobTrigger interface {
	TriggerJob(name string) error
	JobStatuses() []scheduler.JobStatus
}

// SyncController observes and cancels the running feed sync.
type SyncController interface {
	Running() bool
	Stop() bool
}

// StatusReporter describes what the background workers are doing.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}
