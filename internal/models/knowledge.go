package models

import (
	"strings"
	"time"

	"github.com/ternarybob/dealdesk/internal/markup"
)

// KnowledgeItem is one retrievable unit of content: a feed entry, a crawled
// research article or a manually entered item. Body holds markdown (HTML
// bodies are converted on ingestion); use PlainBody for scoring and prompts.
type KnowledgeItem struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id" badgerhold:"index"`
	SourceID    string     `json:"source_id" badgerhold:"index"`
	SourceName  string     `json:"source_name"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body"`
	URL         string     `json:"url,omitempty"`
	GUID        string     `json:"guid,omitempty"` // Feed-provided identity, used to dedupe syncs
	Tags        []string   `json:"tags,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IsRead      bool       `json:"is_read"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PlainBody is the summary, or the body when there is no summary, with markup removed
func (i *KnowledgeItem) PlainBody() string {
	if summary := markup.StripMarkdown(i.Summary); summary != "" {
		return summary
	}
	return markup.StripMarkdown(i.Body)
}

// SearchableText concatenates the fields keyword scoring looks at, as plain
// text so link targets and tag attributes never match
func (i *KnowledgeItem) SearchableText() string {
	parts := []string{i.Title, markup.StripMarkdown(i.Summary), markup.StripMarkdown(i.Body)}
	if len(i.Tags) > 0 {
		parts = append(parts, strings.Join(i.Tags, " "))
	}
	return strings.Join(parts, "\n")
}

// ItemFilter narrows a knowledge item listing
type ItemFilter struct {
	OwnerIDs   []string // Rows owned by any of these accounts
	SourceIDs  []string // Empty means all sources
	UnreadOnly bool
	Limit      int // 0 means no limit
}

// RankDate is the recency key used by ranking; undated items sort last
func (i *KnowledgeItem) RankDate() *time.Time {
	return i.PublishedAt
}
