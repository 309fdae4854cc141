package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/markup"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
	"github.com/ternarybob/dealdesk/internal/services/transform"
)

// ItemQuery narrows an item listing made through the API
type ItemQuery struct {
	SourceIDs  []string
	UnreadOnly bool
	Limit      int
}

// NoteQuery narrows a note listing made through the API
type NoteQuery struct {
	Kind   models.NoteKind
	Symbol string
	Limit  int
}

// Service exposes knowledge items and notes scoped to an account
type Service struct {
	storage   interfaces.StorageManager
	accounts  *accounts.Resolver
	transform *transform.Service
	logger    arbor.ILogger
}

// NewService creates a new knowledge service
func NewService(storage interfaces.StorageManager, resolver *accounts.Resolver, logger arbor.ILogger) *Service {
	return &Service{
		storage:   storage,
		accounts:  resolver,
		transform: transform.NewService(logger),
		logger:    logger,
	}
}

// ListItems returns items visible to accountID, newest first
func (s *Service) ListItems(ctx context.Context, accountID string, query ItemQuery) ([]*models.KnowledgeItem, error) {
	items, err := s.storage.KnowledgeStorage().ListItems(ctx, models.ItemFilter{
		OwnerIDs:   s.accounts.Owners(ctx, accountID),
		SourceIDs:  query.SourceIDs,
		UnreadOnly: query.UnreadOnly,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// CreateItem stores a manually entered item. When the item names a source
// it must be visible to the account; the source name is copied onto the item.
// HTML bodies are stored as markdown and the summary as plain text, the same
// as synced items.
func (s *Service) CreateItem(ctx context.Context, accountID string, item *models.KnowledgeItem) error {
	item.ID = ""
	item.GUID = ""
	item.OwnerID = s.accounts.AccountID(accountID)
	item.Title = strings.TrimSpace(item.Title)
	item.Body = s.transform.HTMLToMarkdown(item.Body, item.URL)
	item.Summary = markup.StripMarkdown(item.Summary)

	if item.SourceID != "" {
		source, err := s.storage.SourceStorage().GetSource(ctx, item.SourceID)
		if err != nil {
			return fmt.Errorf("failed to resolve source: %w", err)
		}
		if !contains(s.accounts.Owners(ctx, accountID), source.OwnerID) {
			return fmt.Errorf("failed to resolve source: %w", interfaces.ErrNotFound)
		}
		item.SourceName = source.Name
	}

	if err := s.storage.KnowledgeStorage().SaveItem(ctx, item); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	s.logger.Debug().
		Str("id", item.ID).
		Str("source_id", item.SourceID).
		Msg("Knowledge item created")
	return nil
}

// SetRead sets the read flag of a visible item
func (s *Service) SetRead(ctx context.Context, accountID, id string, read bool) error {
	item, err := s.storage.KnowledgeStorage().GetItem(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get item: %w", err)
	}
	if !contains(s.accounts.Owners(ctx, accountID), item.OwnerID) {
		return fmt.Errorf("failed to get item: %w", interfaces.ErrNotFound)
	}
	if err := s.storage.KnowledgeStorage().SetRead(ctx, id, read); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

// MarkRead marks every visible id as read and returns how many changed.
// Ids owned by other accounts are skipped.
func (s *Service) MarkRead(ctx context.Context, accountID string, ids []string) (int, error) {
	owners := s.accounts.Owners(ctx, accountID)
	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		item, err := s.storage.KnowledgeStorage().GetItem(ctx, id)
		if err != nil {
			continue
		}
		if contains(owners, item.OwnerID) {
			visible = append(visible, id)
		}
	}
	if len(visible) == 0 {
		return 0, nil
	}

	changed, err := s.storage.KnowledgeStorage().MarkRead(ctx, visible)
	if err != nil {
		return 0, fmt.Errorf("failed to mark items read: %w", err)
	}
	return changed, nil
}

// ListNotes returns notes visible to accountID
func (s *Service) ListNotes(ctx context.Context, accountID string, query NoteQuery) ([]*models.Note, error) {
	notes, err := s.storage.NoteStorage().ListNotes(ctx, models.NoteFilter{
		OwnerIDs: s.accounts.Owners(ctx, accountID),
		Kind:     query.Kind,
		Symbol:   query.Symbol,
		Limit:    query.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// CreateNote stores a note owned by accountID
func (s *Service) CreateNote(ctx context.Context, accountID string, note *models.Note) error {
	kind, err := models.ParseNoteKind(string(note.Kind))
	if err != nil {
		return err
	}
	note.ID = ""
	note.Kind = kind
	note.OwnerID = s.accounts.AccountID(accountID)
	if kind != models.NoteKindStock {
		note.Symbol = ""
	}

	if err := s.storage.NoteStorage().SaveNote(ctx, note); err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}

	s.logger.Debug().
		Str("id", note.ID).
		Str("kind", string(note.Kind)).
		Str("symbol", note.Symbol).
		Msg("Note created")
	return nil
}

// DeleteNote removes a note owned by accountID
func (s *Service) DeleteNote(ctx context.Context, accountID, id string) error {
	note, err := s.storage.NoteStorage().GetNote(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}
	if note.OwnerID != s.accounts.AccountID(accountID) {
		return fmt.Errorf("failed to get note: %w", interfaces.ErrNotFound)
	}
	if err := s.storage.NoteStorage().DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
