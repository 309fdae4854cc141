package models

import (
	"time"
)

// SummaryHistoryRecord is the durable result of one completed summary generation.
// It is created exactly once per natural completion and afterwards only changes
// through the favorite toggle or deletion.
type SummaryHistoryRecord struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"owner_id" badgerhold:"index"`
	Title          string      `json:"title"`
	Preview        string      `json:"preview"`
	FullText       string      `json:"full_text"`
	CreatedAt      time.Time   `json:"created_at"`
	ItemCount      int         `json:"item_count"`
	SourceCount    int         `json:"source_count"`
	SourceIDs      []string    `json:"source_ids"`
	PriorityCounts map[int]int `json:"priority_counts"` // tier -> admitted items
	IsFavorite     bool        `json:"is_favorite"`
	Model          string      `json:"model,omitempty"`
}

// SummaryMetadata is sent to the client in the meta event before any text
type SummaryMetadata struct {
	ItemCount      int         `json:"item_count"`
	SourceCount    int         `json:"source_count"`
	SourceIDs      []string    `json:"source_ids"`
	PriorityCounts map[int]int `json:"priority_counts"`
	CandidateCount int         `json:"candidate_count"`
	Model          string      `json:"model,omitempty"`
}
