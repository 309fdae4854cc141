package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// ProviderFactory resolves credentials, caches clients and routes requests to
// Gemini or Claude by model name.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	kvStorage    interfaces.KeyValueStorage
	logger       arbor.ILogger
	httpClient   *http.Client
	limiter      *rate.Limiter
	retry        *RetryConfig

	mu           sync.Mutex
	geminiClient *genai.Client
	claudeClient anthropic.Client
	claudeReady  bool
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *ProviderFactory {
	interval := common.ParseDurationOr(geminiConfig.RateLimit, time.Second)
	return &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		kvStorage:    kvStorage,
		logger:       logger,
		// Streams stay open well past any single request timeout; the caller's
		// context bounds them instead.
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		retry:      NewDefaultRetryConfig(),
	}
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
// - "claude-sonnet-4-20250514" -> Claude
// - "anthropic/claude-sonnet-4-20250514" -> Claude (with prefix)
// - "gemini-2.5-flash" -> Gemini
// - Empty string -> uses default provider from config
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	lower := strings.ToLower(model)

	switch {
	case strings.HasPrefix(lower, "claude/"), strings.HasPrefix(lower, "anthropic/"), strings.HasPrefix(lower, "claude-"):
		return ProviderClaude
	case strings.HasPrefix(lower, "gemini/"), strings.HasPrefix(lower, "google/"), strings.HasPrefix(lower, "gemini-"):
		return ProviderGemini
	}

	if ProviderType(f.llmConfig.DefaultProvider) == ProviderClaude {
		return ProviderClaude
	}
	return ProviderGemini
}

// NormalizeModel removes provider prefix from model name if present
func (f *ProviderFactory) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// ModelFor returns the concrete model a request resolves to
func (f *ProviderFactory) ModelFor(request *interfaces.GenerationRequest) string {
	model := f.NormalizeModel(request.Model)
	if model != "" {
		return model
	}
	if f.DetectProvider(request.Model) == ProviderClaude {
		return f.claudeConfig.Model
	}
	return f.geminiConfig.Model
}

// GetGeminiClient returns a Gemini client, creating one if necessary
func (f *ProviderFactory) GetGeminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.geminiClient != nil {
		return f.geminiClient, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, f.kvStorage, interfaces.KeyGeminiAPIKey, f.geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.geminiClient = client
	return client, nil
}

// GetClaudeClient returns a Claude client, creating one if necessary
func (f *ProviderFactory) GetClaudeClient(ctx context.Context) (anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claudeReady {
		return f.claudeClient, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, f.kvStorage, interfaces.KeyClaudeAPIKey, f.claudeConfig.APIKey)
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	f.claudeClient = anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claudeReady = true
	return f.claudeClient, nil
}

// geminiStreamer builds a REST streamer sharing the factory's limiter
func (f *ProviderFactory) geminiStreamer(ctx context.Context) (*GeminiStreamer, error) {
	apiKey, err := common.ResolveAPIKey(ctx, f.kvStorage, interfaces.KeyGeminiAPIKey, f.geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}
	return NewGeminiStreamer(f.geminiConfig.BaseURL, apiKey, f.httpClient, f.limiter, f.logger), nil
}

// applyDefaults fills unset request fields from [llm]
func (f *ProviderFactory) applyDefaults(request *interfaces.GenerationRequest) *interfaces.GenerationRequest {
	resolved := *request
	if resolved.Temperature <= 0 {
		resolved.Temperature = f.llmConfig.Temperature
	}
	if resolved.MaxTokens <= 0 {
		resolved.MaxTokens = f.llmConfig.MaxOutputTokens
	}
	if resolved.ThinkingBudget <= 0 {
		resolved.ThinkingBudget = f.llmConfig.ThinkingBudget
	}
	return &resolved
}

// OpenStream opens a generation stream on the provider the model selects.
// Streams are not retried.
func (f *ProviderFactory) OpenStream(ctx context.Context, request *interfaces.GenerationRequest) (interfaces.ChunkStream, error) {
	provider := f.DetectProvider(request.Model)
	model := f.ModelFor(request)
	resolved := f.applyDefaults(request)

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Opening generation stream")

	if provider == ProviderClaude {
		client, err := f.GetClaudeClient(ctx)
		if err != nil {
			return nil, err
		}
		params, err := buildClaudeParams(resolved, model, f.claudeConfig.MaxTokens)
		if err != nil {
			return nil, err
		}
		return openClaudeStream(ctx, client, params, f.logger)
	}

	streamer, err := f.geminiStreamer(ctx)
	if err != nil {
		return nil, err
	}
	return streamer.Open(ctx, model, resolved)
}

// GenerateContent runs a one-shot generation with retry on rate limits
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *interfaces.GenerationRequest) (*interfaces.GeneratedContent, error) {
	provider := f.DetectProvider(request.Model)
	model := f.ModelFor(request)
	resolved := f.applyDefaults(request)

	var (
		text string
		err  error
	)
	switch provider {
	case ProviderClaude:
		text, err = f.generateWithClaude(ctx, resolved, model)
	default:
		text, err = f.generateWithGemini(ctx, resolved, model)
	}
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("length", len(text)).
		Msg("Generation complete")
	return &interfaces.GeneratedContent{Text: text, Provider: string(provider), Model: model}, nil
}

func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *interfaces.GenerationRequest, model string) (string, error) {
	client, err := f.GetClaudeClient(ctx)
	if err != nil {
		return "", err
	}
	params, err := buildClaudeParams(request, model, f.claudeConfig.MaxTokens)
	if err != nil {
		return "", err
	}

	var resp *anthropic.Message
	err = f.withRetry(ctx, ProviderClaude, func() error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		if callErr != nil {
			return wrapClaudeError(callErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	return text.String(), nil
}

func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *interfaces.GenerationRequest, model string) (string, error) {
	client, err := f.GetGeminiClient(ctx)
	if err != nil {
		return "", err
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	config := &genai.GenerateContentConfig{}
	if request.Temperature > 0 {
		config.Temperature = genai.Ptr(request.Temperature)
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}
	if request.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(request.ThinkingBudget))}
	}

	var resp *genai.GenerateContentResponse
	err = f.withRetry(ctx, ProviderGemini, func() error {
		if waitErr := f.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		if callErr != nil {
			return wrapGeminiError(callErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	return text, nil
}

// withRetry retries fn while it fails with a rate-limit error
func (f *ProviderFactory) withRetry(ctx context.Context, provider ProviderType, fn func() error) error {
	var err error
	for attempt := 0; attempt <= f.retry.MaxRetries; attempt++ {
		err = fn()
		if err == nil || !IsRateLimitError(err) || attempt == f.retry.MaxRetries {
			break
		}

		backoff := f.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		f.logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Rate limited, retrying generation")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// Close releases cached clients
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.geminiClient = nil
	f.claudeReady = false
	return nil
}
