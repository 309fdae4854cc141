// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 9:40:02 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/dealdesk/internal/models"
)

// ErrNotFound is returned by every storage when a record does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSourceName is returned when an owner already has a source with the same name
var ErrDuplicateSourceName = errors.New("source name already exists")

// KnowledgeStorage - persistence for knowledge items
type KnowledgeStorage interface {
	SaveItem(ctx context.Context, item *models.KnowledgeItem) error

	// UpsertFeedItems stores items keyed by (source, guid). Existing rows keep
	// their ID, read flag and creation time. Returns the number of new rows.
	UpsertFeedItems(ctx context.Context, items []*models.KnowledgeItem) (int, error)

	GetItem(ctx context.Context, id string) (*models.KnowledgeItem, error)
	ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.KnowledgeItem, error)
	DeleteItem(ctx context.Context, id string) error

	// MarkRead sets is_read on every id. Idempotent, never clears the flag;
	// unknown ids are ignored. Returns the number of rows that changed.
	MarkRead(ctx context.Context, ids []string) (int, error)

	// SetRead sets the read flag of one item explicitly (user toggle)
	SetRead(ctx context.Context, id string, read bool) error
}

// SourceStorage - persistence for source descriptors
type SourceStorage interface {
	SaveSource(ctx context.Context, source *models.SourceDescriptor) error
	GetSource(ctx context.Context, id string) (*models.SourceDescriptor, error)
	GetSourceByName(ctx context.Context, ownerID, name string) (*models.SourceDescriptor, error)
	ListSources(ctx context.Context, ownerIDs []string) ([]*models.SourceDescriptor, error)
	DeleteSource(ctx context.Context, id string) error
}

// HistoryStorage - persistence for generated summaries
type HistoryStorage interface {
	InsertSummary(ctx context.Context, record *models.SummaryHistoryRecord) error
	GetSummary(ctx context.Context, id string) (*models.SummaryHistoryRecord, error)

	// ListSummaries returns newest first; limit 0 means all
	ListSummaries(ctx context.Context, ownerIDs []string, limit int) ([]*models.SummaryHistoryRecord, error)

	// ToggleFavorite flips is_favorite and returns the new value
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	DeleteSummary(ctx context.Context, id string) error
}

// NoteStorage - persistence for daily, stock and weekly notes
type NoteStorage interface {
	SaveNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	KnowledgeStorage() KnowledgeStorage
	SourceStorage() SourceStorage
	HistoryStorage() HistoryStorage
	NoteStorage() NoteStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
