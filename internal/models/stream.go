package models

// StreamEventKind identifies a client-visible stream event
type StreamEventKind string

const (
	StreamEventMeta  StreamEventKind = "meta"
	StreamEventDelta StreamEventKind = "delta"
	StreamEventError StreamEventKind = "error"
	StreamEventDone  StreamEventKind = "done"
)

// StreamEvent is one unit of an in-progress generation. Deltas are
// order-significant; concatenating their Text in arrival order rebuilds the answer.
type StreamEvent struct {
	Kind     StreamEventKind `json:"type"`
	Text     string          `json:"text,omitempty"`
	Thinking bool            `json:"thinking,omitempty"`
	Metadata interface{}     `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
}
