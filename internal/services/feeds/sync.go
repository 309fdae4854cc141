// Package feeds pulls RSS/Atom/JSON feeds of registered sources into the
// knowledge store.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/markup"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/transform"
)

// ErrSyncRunning is returned when a sync is requested while one is in progress
var ErrSyncRunning = errors.New("feed sync already running")

const (
	defaultMaxItems = 50
	summaryRunes    = 500
)

// Report summarises one sync run
type Report struct {
	Sources   int           `json:"sources"`
	Fetched   int           `json:"fetched"`
	Created   int           `json:"created"`
	Failed    []string      `json:"failed,omitempty"` // Names of sources that could not be synced
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// SyncService fetches feeds one source at a time. Only one run is active at
// once; Stop cancels it at the next source or item boundary.
type SyncService struct {
	storage   interfaces.StorageManager
	transform *transform.Service
	config    *common.FeedsConfig
	logger    arbor.ILogger
	parser    *gofeed.Parser

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSyncService creates a feed sync service
func NewSyncService(storage interfaces.StorageManager, transformer *transform.Service, config *common.FeedsConfig, logger arbor.ILogger) *SyncService {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: common.ParseDurationOr(config.Timeout, 20*time.Second)}
	parser.UserAgent = config.UserAgent

	return &SyncService{
		storage:   storage,
		transform: transformer,
		config:    config,
		logger:    logger,
		parser:    parser,
	}
}

// Running reports whether a sync is in progress
func (s *SyncService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stop cancels the running sync. Returns false when nothing was running.
func (s *SyncService) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Sync fetches every enabled source with a feed URL owned by any of owners
// (all owners when empty). A failing source is recorded in the report and
// does not stop the run.
func (s *SyncService) Sync(ctx context.Context, owners []string) (*Report, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, ErrSyncRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	started := time.Now()
	report := &Report{}

	sources, err := s.storage.SourceStorage().ListSources(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	for _, source := range sources {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if !source.Enabled || strings.TrimSpace(source.FeedURL) == "" {
			continue
		}
		report.Sources++

		fetched, created, err := s.syncSource(ctx, source)
		report.Fetched += fetched
		report.Created += created
		if err != nil {
			if ctx.Err() != nil {
				report.Cancelled = true
				break
			}
			s.logger.Warn().Err(err).Str("source", source.Name).Str("url", source.FeedURL).Msg("Feed sync failed")
			report.Failed = append(report.Failed, source.Name)
		}
	}

	report.Duration = time.Since(started)
	s.logger.Info().
		Int("sources", report.Sources).
		Int("fetched", report.Fetched).
		Int("created", report.Created).
		Int("failed", len(report.Failed)).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Duration).
		Msg("Feed sync finished")

	return report, nil
}

func (s *SyncService) syncSource(ctx context.Context, source *models.SourceDescriptor) (int, int, error) {
	feed, err := s.parser.ParseURLWithContext(source.FeedURL, ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch feed: %w", err)
	}

	maxItems := s.config.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	var items []*models.KnowledgeItem
	for _, entry := range feed.Items {
		if ctx.Err() != nil {
			return len(items), 0, ctx.Err()
		}
		if len(items) >= maxItems {
			break
		}
		if item := s.toItem(source, entry); item != nil {
			items = append(items, item)
		}
	}

	created, err := s.storage.KnowledgeStorage().UpsertFeedItems(ctx, items)
	if err != nil {
		return len(items), created, fmt.Errorf("failed to store feed items: %w", err)
	}

	s.logger.Debug().
		Str("source", source.Name).
		Int("items", len(items)).
		Int("created", created).
		Msg("Feed synced")
	return len(items), created, nil
}

// toItem maps a feed entry; entries without any identity are skipped
func (s *SyncService) toItem(source *models.SourceDescriptor, entry *gofeed.Item) *models.KnowledgeItem {
	guid := strings.TrimSpace(entry.GUID)
	if guid == "" {
		guid = strings.TrimSpace(entry.Link)
	}
	if guid == "" {
		return nil
	}

	html := entry.Content
	if strings.TrimSpace(html) == "" {
		html = entry.Description
	}

	item := &models.KnowledgeItem{
		OwnerID:    source.OwnerID,
		SourceID:   source.ID,
		SourceName: source.Name,
		GUID:       guid,
		Title:      strings.TrimSpace(entry.Title),
		URL:        entry.Link,
		Body:       s.transform.HTMLToMarkdown(html, entry.Link),
		Tags:       entry.Categories,
	}
	if entry.Content != "" && entry.Description != "" {
		item.Summary = markup.Truncate(markup.StripHTML(entry.Description), summaryRunes)
	}

	switch {
	case entry.PublishedParsed != nil:
		published := entry.PublishedParsed.UTC()
		item.PublishedAt = &published
	case entry.UpdatedParsed != nil:
		updated := entry.UpdatedParsed.UTC()
		item.PublishedAt = &updated
	}

	return item
}
