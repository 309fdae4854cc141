package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// KnowledgeStorage implements interfaces.KnowledgeStorage for Badger
type KnowledgeStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKnowledgeStorage creates a new KnowledgeStorage instance
func NewKnowledgeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KnowledgeStorage {
	return &KnowledgeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *KnowledgeStorage) SaveItem(ctx context.Context, item *models.KnowledgeItem) error {
	if item.ID == "" {
		item.ID = common.NewItemID()
	}
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to save knowledge item: %w", err)
	}
	return nil
}

func (s *KnowledgeStorage) UpsertFeedItems(ctx context.Context, items []*models.KnowledgeItem) (int, error) {
	created := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		var existing []models.KnowledgeItem
		err := s.db.Store().Find(&existing,
			badgerhold.Where("SourceID").Eq(item.SourceID).And("GUID").Eq(item.GUID).Limit(1))
		if err != nil {
			return created, fmt.Errorf("failed to look up feed item %s: %w", item.GUID, err)
		}

		if len(existing) > 0 {
			item.ID = existing[0].ID
			item.IsRead = existing[0].IsRead
			item.CreatedAt = existing[0].CreatedAt
		} else {
			created++
		}

		if err := s.SaveItem(ctx, item); err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *KnowledgeStorage) GetItem(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	var item models.KnowledgeItem
	err := s.db.Store().Get(id, &item)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge item: %w", err)
	}
	return &item, nil
}

// ListItems returns matching items, newest first by creation time
func (s *KnowledgeStorage) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.KnowledgeItem, error) {
	query := ownerQuery(filter.OwnerIDs)
	if len(filter.SourceIDs) > 0 {
		query = query.And("SourceID").In(badgerhold.Slice(filter.SourceIDs)...)
	}
	if filter.UnreadOnly {
		query = query.And("IsRead").Eq(false)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []models.KnowledgeItem
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list knowledge items: %w", err)
	}

	result := make([]*models.KnowledgeItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *KnowledgeStorage) DeleteItem(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.KnowledgeItem{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete knowledge item: %w", err)
	}
	return nil
}

// MarkRead flips unread items to read in a single transaction
func (s *KnowledgeStorage) MarkRead(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	changed := 0
	now := time.Now()
	err := s.db.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			var item models.KnowledgeItem
			err := s.db.Store().TxGet(tx, id, &item)
			if errors.Is(err, badgerhold.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if item.IsRead {
				continue
			}
			item.IsRead = true
			item.UpdatedAt = now
			if err := s.db.Store().TxUpsert(tx, id, &item); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark items read: %w", err)
	}

	s.logger.Debug().Int("requested", len(ids)).Int("changed", changed).Msg("Marked knowledge items read")
	return changed, nil
}

func (s *KnowledgeStorage) SetRead(ctx context.Context, id string, read bool) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.IsRead == read {
		return nil
	}
	item.IsRead = read
	return s.SaveItem(ctx, item)
}
