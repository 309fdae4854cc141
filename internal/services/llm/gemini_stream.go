package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/sse"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response is kept for the error
const maxErrorBody = 4096

// GeminiStreamer calls :streamGenerateContent?alt=sse over plain HTTP
type GeminiStreamer struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

type geminiStreamRequest struct {
	Contents          []restContent           `json:"contents"`
	SystemInstruction *restContent            `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float32              `json:"temperature,omitempty"`
	MaxOutputTokens int                   `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

// geminiStreamFrame is one SSE data payload
type geminiStreamFrame struct {
	Candidates []struct {
		Content struct {
			Parts []restPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiStreamer creates a streamer; limiter may be nil
func NewGeminiStreamer(baseURL, apiKey string, httpClient *http.Client, limiter *rate.Limiter, logger arbor.ILogger) *GeminiStreamer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiStreamer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// Open posts the request and returns once response headers arrive. A non-2xx
// answer becomes an UpstreamError with the status preserved.
func (g *GeminiStreamer) Open(ctx context.Context, model string, request *interfaces.GenerationRequest) (interfaces.ChunkStream, error) {
	contents, systemText, err := convertMessagesToGeminiREST(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	body := geminiStreamRequest{
		Contents:         contents,
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: request.MaxTokens},
	}
	if systemText != "" {
		body.SystemInstruction = &restContent{Parts: []restPart{{Text: systemText}}}
	}
	if request.Temperature > 0 {
		temp := request.Temperature
		body.GenerationConfig.Temperature = &temp
	}
	if request.ThinkingBudget > 0 {
		body.GenerationConfig.ThinkingConfig = &geminiThinkingConfig{
			ThinkingBudget:  request.ThinkingBudget,
			IncludeThoughts: true,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-goog-api-key", g.apiKey)

	g.logger.Debug().Str("model", model).Int("messages", len(contents)).Msg("Opening Gemini stream")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Provider: ProviderGemini, Body: string(errBody)}
	}

	return &geminiChunkStream{body: resp.Body, reader: sse.NewReader(resp.Body), logger: g.logger}, nil
}

// geminiChunkStream turns SSE frames into chunks, one part at a time
type geminiChunkStream struct {
	body    io.ReadCloser
	reader  *sse.Reader
	pending []interfaces.StreamChunk
	done    bool
	logger  arbor.ILogger
}

func (s *geminiChunkStream) Recv() (interfaces.StreamChunk, error) {
	for len(s.pending) == 0 {
		if s.done {
			return interfaces.StreamChunk{}, io.EOF
		}

		data, err := s.reader.Next()
		if err == io.EOF {
			s.done = true
			continue
		}
		if err != nil {
			return interfaces.StreamChunk{}, fmt.Errorf("failed to read gemini stream: %w", err)
		}
		if sse.IsDone(data) {
			s.done = true
			continue
		}

		chunks, err := parseGeminiFrame(data)
		if err != nil {
			if upstream, ok := AsUpstreamError(err); ok {
				return interfaces.StreamChunk{}, upstream
			}
			s.logger.Warn().Err(err).Int("frame_bytes", len(data)).Msg("Skipping malformed stream frame")
			continue
		}
		s.pending = chunks
	}

	chunk := s.pending[0]
	s.pending = s.pending[1:]
	return chunk, nil
}

func (s *geminiChunkStream) Close() error {
	s.done = true
	return s.body.Close()
}

// parseGeminiFrame extracts text parts from one frame. Parts flagged
// thought=true are reasoning. An embedded error object becomes an UpstreamError.
func parseGeminiFrame(data string) ([]interfaces.StreamChunk, error) {
	var frame geminiStreamFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}
	if frame.Error != nil {
		return nil, &UpstreamError{StatusCode: frame.Error.Code, Provider: ProviderGemini, Body: frame.Error.Message}
	}

	if len(frame.Candidates) == 0 {
		return nil, nil
	}

	// Only the first candidate is relayed
	var chunks []interfaces.StreamChunk
	for _, part := range frame.Candidates[0].Content.Parts {
		if part.Text == "" {
			continue
		}
		chunks = append(chunks, interfaces.StreamChunk{Text: part.Text, Thinking: part.Thought})
	}
	return chunks, nil
}
