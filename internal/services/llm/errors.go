package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

// UpstreamError is a non-2xx answer from a generation provider
type UpstreamError struct {
	StatusCode int
	Provider   ProviderType
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.IsRateLimited() {
		return fmt.Sprintf("%s rate limited (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsRateLimited reports whether the provider answered 429
func (e *UpstreamError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// AsUpstreamError extracts an UpstreamError from err, if any
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

// IsRateLimited reports whether err carries a provider rate-limit answer
func IsRateLimited(err error) bool {
	if upstream, ok := AsUpstreamError(err); ok {
		return upstream.IsRateLimited()
	}
	return false
}

// wrapClaudeError converts SDK API errors into UpstreamError
func wrapClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.StatusCode, Provider: ProviderClaude, Body: apiErr.Error()}
	}
	return fmt.Errorf("claude request failed: %w", err)
}

// wrapGeminiError converts genai API errors into UpstreamError
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.Code, Provider: ProviderGemini, Body: apiErr.Message}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
