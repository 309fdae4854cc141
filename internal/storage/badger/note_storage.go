package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// NoteStorage implements interfaces.NoteStorage for Badger
type NoteStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNoteStorage creates a new NoteStorage instance
func NewNoteStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NoteStorage {
	return &NoteStorage{
		db:     db,
		logger: logger,
	}
}

func (s *NoteStorage) SaveNote(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = common.NewNoteID()
	}
	if note.Kind == models.NoteKindStock {
		note.Symbol = strings.ToUpper(strings.TrimSpace(note.Symbol))
	}
	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	if err := s.db.Store().Upsert(note.ID, note); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	return nil
}

func (s *NoteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	err := s.db.Store().Get(id, &note)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return &note, nil
}

// ListNotes returns notes newest first by note date (creation time when undated)
func (s *NoteStorage) ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, error) {
	query := ownerQuery(filter.OwnerIDs)
	if filter.Kind != "" {
		query = query.And("Kind").Eq(filter.Kind)
	}
	if filter.Symbol != "" {
		query = query.And("Symbol").Eq(strings.ToUpper(strings.TrimSpace(filter.Symbol)))
	}

	var notes []models.Note
	if err := s.db.Store().Find(&notes, query); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	result := make([]*models.Note, len(notes))
	for i := range notes {
		result[i] = &notes[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		return noteTime(result[i]).After(noteTime(result[j]))
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *NoteStorage) DeleteNote(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.Note{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func noteTime(note *models.Note) time.Time {
	if t := note.SortDate(); t != nil {
		return *t
	}
	return time.Time{}
}
