package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/dealdesk/internal/markup"
)

// NoteKind identifies which notebook a note belongs to
type NoteKind string

const (
	NoteKindDaily  NoteKind = "daily"
	NoteKindStock  NoteKind = "stock"
	NoteKindWeekly NoteKind = "weekly"
)

// Note is a user-authored market note. Stock notes carry a ticker symbol.
type Note struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id" badgerhold:"index"`
	Kind      NoteKind   `json:"kind" badgerhold:"index" validate:"required,oneof=daily stock weekly"`
	Symbol    string     `json:"symbol,omitempty" validate:"required_if=Kind stock,max=16"`
	Title     string     `json:"title,omitempty" validate:"max=200"`
	Content   string     `json:"content" validate:"required"`
	Tags      []string   `json:"tags,omitempty"`
	Date      *time.Time `json:"date,omitempty"` // Day or week the note is about
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ParseNoteKind validates a note kind string
func ParseNoteKind(kind string) (NoteKind, error) {
	switch NoteKind(strings.ToLower(strings.TrimSpace(kind))) {
	case NoteKindDaily:
		return NoteKindDaily, nil
	case NoteKindStock:
		return NoteKindStock, nil
	case NoteKindWeekly:
		return NoteKindWeekly, nil
	default:
		return "", fmt.Errorf("unknown note kind: %q", kind)
	}
}

// SearchableText concatenates the fields keyword scoring looks at
func (n *Note) SearchableText() string {
	parts := []string{n.Symbol, n.Title, markup.StripMarkdown(n.Content)}
	if len(n.Tags) > 0 {
		parts = append(parts, strings.Join(n.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

// SortDate is the date used for recency ordering: the note date, or creation time
func (n *Note) SortDate() *time.Time {
	if n.Date != nil {
		return n.Date
	}
	if n.CreatedAt.IsZero() {
		return nil
	}
	created := n.CreatedAt
	return &created
}

// NoteFilter narrows a note listing
type NoteFilter struct {
	OwnerIDs []string
	Kind     NoteKind // Empty means all kinds
	Symbol   string   // Stock notes only, case-insensitive
	Limit    int
}

// RankDate is the recency key used by ranking
func (n *Note) RankDate() *time.Time {
	return n.SortDate()
}
