package notion

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxConcurrentSearches bounds in-flight keyword searches per lookup
	MaxConcurrentSearches = 3

	defaultMaxPages = 5
	defaultPageSize = 10
	cacheSize       = 256
)

// Service searches Notion by keyword and flattens the best pages
type Service struct {
	config    *common.NotionConfig
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
	cache     *expirable.LRU[string, Document]

	mu     sync.Mutex
	client *Client
}

// NewService creates the Notion enrichment service. The API key is resolved
// on first use so it can be configured at runtime.
func NewService(config *common.NotionConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	ttl := common.ParseDurationOr(config.CacheTTL, 10*time.Minute)
	return &Service{
		config:    config,
		kvStorage: kvStorage,
		logger:    logger,
		cache:     expirable.NewLRU[string, Document](cacheSize, nil, ttl),
	}
}

// NewServiceWithClient creates a service around an existing client
func NewServiceWithClient(config *common.NotionConfig, client *Client, logger arbor.ILogger) *Service {
	s := NewService(config, nil, logger)
	s.client = client
	return s
}

func (s *Service) getClient(ctx context.Context) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, s.kvStorage, interfaces.KeyNotionAPIKey, s.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("notion not configured: %w", err)
	}

	s.client = NewClient(apiKey,
		WithBaseURL(s.config.BaseURL),
		WithVersion(s.config.Version),
		WithHTTPClient(&http.Client{Timeout: common.ParseDurationOr(s.config.Timeout, DefaultTimeout)}),
		WithLogger(s.logger),
	)
	return s.client, nil
}

// Search looks up every keyword, at most MaxConcurrentSearches at a time,
// merges the hits by page ID, and flattens the newest MaxPages pages. Failed
// keyword searches are logged and skipped; Search only errors when the
// service is unusable or every search failed.
func (s *Service) Search(ctx context.Context, keywords []string) ([]Document, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	pageSize := s.config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	results := make([][]Page, len(keywords))
	failures := make([]error, len(keywords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentSearches)
	for i, keyword := range keywords {
		g.Go(func() error {
			pages, err := client.Search(gctx, keyword, pageSize)
			if err != nil {
				s.logger.Warn().Err(err).Str("keyword", keyword).Msg("Notion search failed")
				failures[i] = err
				return nil
			}
			results[i] = pages
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range failures {
		if err != nil {
			failed++
		}
	}
	if failed == len(keywords) {
		return nil, fmt.Errorf("all %d notion searches failed: %w", failed, failures[0])
	}

	pages := mergePages(results)
	maxPages := s.config.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	if len(pages) > maxPages {
		pages = pages[:maxPages]
	}

	documents := make([]Document, 0, len(pages))
	for _, page := range pages {
		documents = append(documents, s.document(ctx, client, page))
	}

	s.logger.Debug().
		Int("keywords", len(keywords)).
		Int("pages", len(documents)).
		Msg("Notion lookup complete")

	return documents, nil
}

// document flattens a page, reusing cached content when fresh
func (s *Service) document(ctx context.Context, client *Client, page Page) Document {
	doc := Document{
		ID:         page.ID,
		Title:      ExtractTitle(&page),
		URL:        page.URL,
		LastEdited: page.LastEditedTime,
	}

	cacheKey := page.ID
	if page.LastEditedTime != nil {
		cacheKey += "@" + page.LastEditedTime.Format(time.RFC3339)
	}
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached
	}

	// Databases have no block content of their own
	if page.Object == "page" {
		doc.Content = FlattenPage(ctx, client, page.ID, s.config.MaxDepth, s.logger)
	}

	s.cache.Add(cacheKey, doc)
	return doc
}

// mergePages deduplicates by ID, keeping keyword order then result order
func mergePages(results [][]Page) []Page {
	seen := make(map[string]bool)
	var merged []Page
	for _, pages := range results {
		for _, page := range pages {
			if page.ID == "" || seen[page.ID] {
				continue
			}
			seen[page.ID] = true
			merged = append(merged, page)
		}
	}
	return merged
}
