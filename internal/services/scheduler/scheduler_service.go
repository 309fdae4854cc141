package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// JobFunc is the body of a scheduled job. ctx is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context) error

// JobStatus is the externally visible state of a registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	IsRunning   bool       `json:"is_running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// jobEntry represents a registered job with metadata
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     JobFunc
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs named jobs on cron schedules. A job never overlaps itself:
// a tick that arrives while the previous run is active is skipped.
type Service struct {
	cron      *cron.Cron
	kvStorage interfaces.KeyValueStorage // Optional; persists last run times
	logger    arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobMu   sync.Mutex // Protects jobs map and entries
	jobs    map[string]*jobEntry
	running bool
}

// NewService creates a new scheduler service
func NewService(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:      cron.New(),
		kvStorage: kvStorage,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*jobEntry),
	}
}

func lastRunKey(name string) string {
	return "scheduler_last_run_" + name
}

// RegisterJob adds a job. An empty schedule registers a manual-only job that
// can still be started with TriggerJob.
func (s *Service) RegisterJob(name, schedule, description string, handler JobFunc) error {
	if schedule != "" {
		if err := common.ValidateSchedule(schedule); err != nil {
			return fmt.Errorf("invalid schedule for job %s: %w", name, err)
		}
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		lastRun:     s.loadLastRun(name),
	}

	if schedule != "" {
		cronID, err := s.cron.AddFunc(schedule, func() {
			s.executeJob(name)
		})
		if err != nil {
			return fmt.Errorf("failed to add job to cron: %w", err)
		}
		entry.cronID = cronID
	}
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// Start begins running scheduled jobs
func (s *Service) Start() {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop halts the cron loop, cancels running jobs and waits for them to return
func (s *Service) Stop() {
	s.jobMu.Lock()
	wasRunning := s.running
	s.running = false
	s.jobMu.Unlock()

	if wasRunning {
		<-s.cron.Stop().Done()
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// TriggerJob runs a job now, in the background
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s not found", name)
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		return fmt.Errorf("job %s is already running", name)
	}
	s.jobMu.Unlock()

	go s.executeJob(name)
	return nil
}

// JobStatuses returns every registered job, sorted by name
func (s *Service) JobStatuses() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			Description: entry.description,
			IsRunning:   entry.isRunning,
			LastRun:     entry.lastRun,
			LastError:   entry.lastError,
		}
		if entry.cronID != 0 {
			if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (s *Service) executeJob(name string) {
	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job not found")
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("job_name", name).Msg("Job still running, skipping tick")
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.wg.Add(1)
	s.jobMu.Unlock()
	defer s.wg.Done()

	started := time.Now()
	s.logger.Info().Str("job_name", name).Msg("Job execution started")

	err := s.runHandler(handler)

	completed := time.Now()
	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &completed
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", completed.Sub(started)).
			Msg("Job execution failed")
	} else {
		s.logger.Info().
			Str("job_name", name).
			Dur("duration", completed.Sub(started)).
			Msg("Job execution completed")
	}

	s.saveLastRun(name, completed)
}

// runHandler converts a panic in a job into an error
func (s *Service) runHandler(handler JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(s.ctx)
}

func (s *Service) loadLastRun(name string) *time.Time {
	if s.kvStorage == nil {
		return nil
	}
	value, err := s.kvStorage.Get(context.Background(), lastRunKey(name))
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("job_name", name).Msg("Failed to load job last run")
		}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &parsed
}

func (s *Service) saveLastRun(name string, at time.Time) {
	if s.kvStorage == nil {
		return
	}
	err := s.kvStorage.Set(context.Background(), lastRunKey(name), at.UTC().Format(time.RFC3339), "Last completed run of scheduled job "+name)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_name", name).Msg("Failed to persist job last run")
	}
}
