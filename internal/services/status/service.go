package status

import (
	"maps"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// AppState represents what the background workers are doing
type AppState string

const (
	StateIdle        AppState = "idle"
	StateSyncing     AppState = "syncing"
	StateSummarizing AppState = "summarizing"
)

// Service tracks the application state reported by the health endpoint
type Service struct {
	state     AppState
	mu        sync.RWMutex
	logger    arbor.ILogger
	metadata  map[string]interface{}
	startedAt time.Time
}

// NewService creates a new StatusService
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		state:     StateIdle,
		logger:    logger,
		metadata:  make(map[string]interface{}),
		startedAt: time.Now(),
	}
}

// GetState returns the current application state (thread-safe)
func (s *Service) GetState() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the application state
func (s *Service) SetState(state AppState, metadata map[string]interface{}) {
	s.mu.Lock()
	oldState := s.state
	s.state = state
	if metadata != nil {
		s.metadata = metadata
	} else {
		s.metadata = make(map[string]interface{})
	}
	s.mu.Unlock()

	s.logger.Debug().
		Str("old_state", string(oldState)).
		Str("new_state", string(state)).
		Msg("Application state changed")
}

// Track sets state for the duration of fn and returns to idle afterwards
func (s *Service) Track(state AppState, metadata map[string]interface{}, fn func() error) error {
	s.SetState(state, metadata)
	defer s.SetState(StateIdle, nil)
	return fn()
}

// GetStatus returns the full status including state, metadata, and timestamp
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"state":          string(s.state),
		"metadata":       maps.Clone(s.metadata),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"timestamp":      time.Now(),
	}
}
