// Package notion reads pages from a Notion workspace for chat enrichment.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the Notion API.
	DefaultBaseURL = "https://api.notion.com/v1"

	// DefaultVersion is the Notion-Version header value.
	DefaultVersion = "2022-06-28"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 3

	// maxPageSize is the API's upper bound for page_size
	maxPageSize = 100
)

// Client is a Notion API client. Authentication uses a bearer token.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithVersion sets the Notion-Version header.
func WithVersion(version string) ClientOption {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// WithHTTPClient sets the client whose transport carries the bearer token.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// NewClient creates a new Notion API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		version:    DefaultVersion,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.httpClient = &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}),
			Base:   base,
		},
	}

	return c
}

// APIError represents an error from the Notion API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// do performs a request and decodes the JSON answer into result.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, params.Encode())
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Msg("Notion API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(errBody), Endpoint: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search runs a workspace search sorted by last edit, newest first.
func (c *Client) Search(ctx context.Context, query string, pageSize int) ([]Page, error) {
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	request := searchRequest{
		Query:    query,
		PageSize: pageSize,
		Sort:     &searchSort{Direction: "descending", Timestamp: "last_edited_time"},
	}

	var response searchResponse
	if err := c.do(ctx, http.MethodPost, "/search", nil, request, &response); err != nil {
		return nil, err
	}
	return response.Results, nil
}

// BlockChildren returns one page of a block's children.
func (c *Client) BlockChildren(ctx context.Context, blockID, cursor string) (*BlockList, error) {
	params := url.Values{}
	params.Set("page_size", fmt.Sprintf("%d", maxPageSize))
	if cursor != "" {
		params.Set("start_cursor", cursor)
	}

	var list BlockList
	if err := c.do(ctx, http.MethodGet, "/blocks/"+url.PathEscape(blockID)+"/children", params, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AllBlockChildren follows next_cursor until the listing is exhausted.
func (c *Client) AllBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		list, err := c.BlockChildren(ctx, blockID, cursor)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, list.Results...)
		if !list.HasMore || list.NextCursor == "" {
			return blocks, nil
		}
		cursor = list.NextCursor
	}
}
