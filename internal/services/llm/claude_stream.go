package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// buildClaudeParams converts a generation request into Messages API params
func buildClaudeParams(request *interfaces.GenerationRequest, model string, defaultMaxTokens int) (anthropic.MessageNewParams, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		systemText = request.SystemInstruction
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	// Extended thinking requires budget < max_tokens and the default temperature
	if request.ThinkingBudget >= 1024 && request.ThinkingBudget < maxTokens {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(request.ThinkingBudget))
	} else if request.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(request.Temperature))
	}

	return params, nil
}

// openClaudeStream starts a streaming Messages call. The first event is read
// eagerly so HTTP failures surface here, before any byte reaches the client.
func openClaudeStream(ctx context.Context, client anthropic.Client, params anthropic.MessageNewParams, logger arbor.ILogger) (interfaces.ChunkStream, error) {
	stream := client.Messages.NewStreaming(ctx, params)

	if !stream.Next() {
		err := stream.Err()
		stream.Close()
		if err != nil {
			return nil, wrapClaudeError(err)
		}
		return &claudeChunkStream{stream: stream, done: true, logger: logger}, nil
	}

	return &claudeChunkStream{stream: stream, primed: true, logger: logger}, nil
}

// claudeChunkStream maps content_block_delta events onto chunks
type claudeChunkStream struct {
	stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
	primed bool // Current() holds an event not yet consumed
	done   bool
	logger arbor.ILogger
}

func (s *claudeChunkStream) Recv() (interfaces.StreamChunk, error) {
	for !s.done {
		if !s.primed && !s.stream.Next() {
			s.done = true
			if err := s.stream.Err(); err != nil {
				return interfaces.StreamChunk{}, wrapClaudeError(err)
			}
			break
		}
		s.primed = false

		event := s.stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}

		switch delta := event.AsContentBlockDelta().Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if delta.Text != "" {
				return interfaces.StreamChunk{Text: delta.Text}, nil
			}
		case anthropic.ThinkingDelta:
			if delta.Thinking != "" {
				return interfaces.StreamChunk{Text: delta.Thinking, Thinking: true}, nil
			}
		}
	}
	return interfaces.StreamChunk{}, io.EOF
}

func (s *claudeChunkStream) Close() error {
	s.done = true
	return s.stream.Close()
}
