package relay

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/sse"
)

// chatFrame is the OpenAI-delta-compatible chat frame
type chatFrame struct {
	Choices []chatChoice `json:"choices,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type chatChoice struct {
	Delta chatDelta `json:"delta"`
}

type chatDelta struct {
	Content  string `json:"content"`
	Thinking bool   `json:"thinking,omitempty"`
}

// ChatSSESink writes chat deltas as {choices:[{delta:{content,thinking}}]}
type ChatSSESink struct {
	w *sse.Writer
}

// NewChatSSESink wraps an event-stream writer
func NewChatSSESink(w *sse.Writer) *ChatSSESink {
	return &ChatSSESink{w: w}
}

// Meta is not part of the chat wire format
func (s *ChatSSESink) Meta(metadata interface{}) error {
	return nil
}

func (s *ChatSSESink) Delta(text string, thinking bool) error {
	return s.w.WriteJSON(chatFrame{Choices: []chatChoice{{Delta: chatDelta{Content: text, Thinking: thinking}}}})
}

func (s *ChatSSESink) Error(message string) error {
	return s.w.WriteJSON(chatFrame{Error: message})
}

func (s *ChatSSESink) Done() error {
	return s.w.WriteDone()
}

// SummarySSESink writes {type:"meta",metadata} and {type:"delta",text} frames
type SummarySSESink struct {
	w *sse.Writer
}

// NewSummarySSESink wraps an event-stream writer
func NewSummarySSESink(w *sse.Writer) *SummarySSESink {
	return &SummarySSESink{w: w}
}

func (s *SummarySSESink) Meta(metadata interface{}) error {
	return s.w.WriteJSON(models.StreamEvent{Kind: models.StreamEventMeta, Metadata: metadata})
}

// Delta forwards answer text only; reasoning is not part of the summary stream
func (s *SummarySSESink) Delta(text string, thinking bool) error {
	if thinking {
		return nil
	}
	return s.w.WriteJSON(models.StreamEvent{Kind: models.StreamEventDelta, Text: text})
}

func (s *SummarySSESink) Error(message string) error {
	return s.w.WriteJSON(models.StreamEvent{Kind: models.StreamEventError, Error: message})
}

func (s *SummarySSESink) Done() error {
	return s.w.WriteDone()
}

// WebSocketSink sends each event as one JSON text message
type WebSocketSink struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// NewWebSocketSink wraps an upgraded connection
func NewWebSocketSink(conn *websocket.Conn, writeTimeout time.Duration) *WebSocketSink {
	return &WebSocketSink{conn: conn, writeTimeout: writeTimeout}
}

func (s *WebSocketSink) send(event models.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return s.conn.WriteJSON(event)
}

func (s *WebSocketSink) Meta(metadata interface{}) error {
	return s.send(models.StreamEvent{Kind: models.StreamEventMeta, Metadata: metadata})
}

func (s *WebSocketSink) Delta(text string, thinking bool) error {
	return s.send(models.StreamEvent{Kind: models.StreamEventDelta, Text: text, Thinking: thinking})
}

func (s *WebSocketSink) Error(message string) error {
	return s.send(models.StreamEvent{Kind: models.StreamEventError, Error: message})
}

func (s *WebSocketSink) Done() error {
	return s.send(models.StreamEvent{Kind: models.StreamEventDone})
}

// CollectSink records events in memory, used by non-streaming endpoints
type CollectSink struct {
	mu       sync.Mutex
	Events   []models.StreamEvent
	answer   strings.Builder
	thinking strings.Builder
}

// NewCollectSink creates an empty collector
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

func (s *CollectSink) record(event models.StreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, event)
	if event.Kind == models.StreamEventDelta {
		if event.Thinking {
			s.thinking.WriteString(event.Text)
		} else {
			s.answer.WriteString(event.Text)
		}
	}
}

func (s *CollectSink) Meta(metadata interface{}) error {
	s.record(models.StreamEvent{Kind: models.StreamEventMeta, Metadata: metadata})
	return nil
}

func (s *CollectSink) Delta(text string, thinking bool) error {
	s.record(models.StreamEvent{Kind: models.StreamEventDelta, Text: text, Thinking: thinking})
	return nil
}

func (s *CollectSink) Error(message string) error {
	s.record(models.StreamEvent{Kind: models.StreamEventError, Error: message})
	return nil
}

func (s *CollectSink) Done() error {
	s.record(models.StreamEvent{Kind: models.StreamEventDone})
	return nil
}

// Text returns the concatenated answer deltas
func (s *CollectSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer.String()
}

// Thinking returns the concatenated reasoning deltas
func (s *CollectSink) Thinking() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thinking.String()
}

// Metadata returns the payload of the meta event, if one was sent
func (s *CollectSink) Metadata() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.Events {
		if event.Kind == models.StreamEventMeta {
			return event.Metadata
		}
	}
	return nil
}

// ErrorMessage returns the first error event's message
func (s *CollectSink) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.Events {
		if event.Kind == models.StreamEventError {
			return event.Error
		}
	}
	return ""
}

// DiscardSink drops every event; scheduled digests run into it
type DiscardSink struct{}

func (DiscardSink) Meta(interface{}) error   { return nil }
func (DiscardSink) Delta(string, bool) error { return nil }
func (DiscardSink) Error(string) error       { return nil }
func (DiscardSink) Done() error              { return nil }
