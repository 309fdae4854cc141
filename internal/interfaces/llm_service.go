package interfaces

import (
	"context"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string `json:"role"`

	// Content contains the text content of the message
	Content string `json:"content"`
}

// GenerationRequest is a provider-agnostic generation request
type GenerationRequest struct {
	Messages          []Message
	SystemInstruction string
	Model             string // Empty selects the configured default provider and model
	Temperature       float32
	MaxTokens         int
	ThinkingBudget    int // Reasoning tokens; 0 disables reasoning output
}

// StreamChunk is one ordered fragment of generated text. Thinking marks
// reasoning text that clients render apart from the answer.
type StreamChunk struct {
	Text     string
	Thinking bool
}

// ChunkStream is an open upstream generation stream. Recv returns io.EOF
// after the last chunk. Close releases the upstream connection and is safe
// to call more than once.
type ChunkStream interface {
	Recv() (StreamChunk, error)
	Close() error
}

// StreamProvider opens generation streams. Opening fails fast on upstream
// errors (including rate limiting) so callers can still answer with a
// plain error response.
type StreamProvider interface {
	OpenStream(ctx context.Context, request *GenerationRequest) (ChunkStream, error)

	// ModelFor returns the concrete model name a request will use
	ModelFor(request *GenerationRequest) string
}

// GeneratedContent is the answer to a one-shot generation
type GeneratedContent struct {
	Text     string
	Provider string
	Model    string
}

// ContentGenerator runs one-shot generations for callers without a client
// stream. Rate-limited calls are retried with backoff.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, request *GenerationRequest) (*GeneratedContent, error)
}
