// Package websearch queries a Perplexity-compatible search-augmented chat API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Perplexity API.
	DefaultBaseURL = "https://api.perplexity.ai"

	// DefaultModel is used when none is configured.
	DefaultModel = "sonar"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	defaultMaxTokens = 1024
	cacheSize        = 128
	cacheTTL         = 15 * time.Minute
)

const systemPrompt = "You are a financial research assistant. Answer concisely with current facts and figures. Cite your sources."

// Answer is a search-grounded response
type Answer struct {
	Query     string
	Content   string
	Citations []string
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string    `json:"model"`
	Messages            []message `json:"messages"`
	MaxTokens           int       `json:"max_tokens,omitempty"`
	SearchRecencyFilter string    `json:"search_recency_filter,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

// APIError represents an error from the search API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("web search API error: %s (status %d)", e.Message, e.StatusCode)
}

// Client performs web searches. The API key resolves on first use.
type Client struct {
	config     *common.PerplexityConfig
	kvStorage  interfaces.KeyValueStorage
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
	cache      *expirable.LRU[string, *Answer]

	mu     sync.Mutex
	apiKey string
}

// NewClient creates a web search client
func NewClient(config *common.PerplexityConfig, kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *Client {
	return &Client{
		config:     config,
		kvStorage:  kvStorage,
		httpClient: &http.Client{Timeout: common.ParseDurationOr(config.Timeout, DefaultTimeout)},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		logger:     logger,
		cache:      expirable.NewLRU[string, *Answer](cacheSize, nil, cacheTTL),
	}
}

func (c *Client) resolveKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := common.ResolveAPIKey(ctx, c.kvStorage, interfaces.KeyPerplexityKey, c.config.APIKey)
	if err != nil {
		return "", fmt.Errorf("web search not configured: %w", err)
	}
	c.apiKey = key
	return key, nil
}

// Search asks the API about query. Identical queries are served from cache.
func (c *Client) Search(ctx context.Context, query string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	if cached, ok := c.cache.Get(query); ok {
		return cached, nil
	}

	apiKey, err := c.resolveKey(ctx)
	if err != nil {
		return nil, err
	}

	model := c.config.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := c.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	payload, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: query},
		},
		MaxTokens:           maxTokens,
		SearchRecencyFilter: c.config.RecencyFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	baseURL := strings.TrimRight(c.config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("model", model).Str("recency", c.config.RecencyFilter).Msg("Web search request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("empty web search answer")
	}

	answer := &Answer{
		Query:     query,
		Content:   strings.TrimSpace(decoded.Choices[0].Message.Content),
		Citations: decoded.Citations,
	}
	c.cache.Add(query, answer)
	return answer, nil
}
