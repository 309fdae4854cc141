package common

import (
	"github.com/google/uuid"
)

// NewItemID generates a knowledge item ID. Format: item_<uuid>
func NewItemID() string {
	return "item_" + uuid.New().String()
}

// NewSourceID generates a knowledge source ID. Format: src_<uuid>
func NewSourceID() string {
	return "src_" + uuid.New().String()
}

// NewSummaryID generates a summary history record ID. Format: sum_<uuid>
func NewSummaryID() string {
	return "sum_" + uuid.New().String()
}

// NewNoteID generates a note ID. Format: note_<uuid>
func NewNoteID() string {
	return "note_" + uuid.New().String()
}

// NewRequestID generates an ID used to correlate the log lines of one request
func NewRequestID() string {
	return uuid.New().String()
}
