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

// HistoryStorage implements interfaces.HistoryStorage for Badger
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// InsertSummary stores a new record. Records are never overwritten.
func (s *HistoryStorage) InsertSummary(ctx context.Context, record *models.SummaryHistoryRecord) error {
	if record.ID == "" {
		record.ID = common.NewSummaryID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	err := s.db.Store().Insert(record.ID, record)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		return fmt.Errorf("summary %s already exists", record.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

func (s *HistoryStorage) GetSummary(ctx context.Context, id string) (*models.SummaryHistoryRecord, error) {
	var record models.SummaryHistoryRecord
	err := s.db.Store().Get(id, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &record, nil
}

func (s *HistoryStorage) ListSummaries(ctx context.Context, ownerIDs []string, limit int) ([]*models.SummaryHistoryRecord, error) {
	query := ownerQuery(ownerIDs).SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.SummaryHistoryRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	result := make([]*models.SummaryHistoryRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}

func (s *HistoryStorage) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := s.db.Update(func(tx *badger.Txn) error {
		var record models.SummaryHistoryRecord
		if err := s.db.Store().TxGet(tx, id, &record); err != nil {
			return err
		}
		record.IsFavorite = !record.IsFavorite
		favorite = record.IsFavorite
		return s.db.Store().TxUpdate(tx, id, &record)
	})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, interfaces.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}

func (s *HistoryStorage) DeleteSummary(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.SummaryHistoryRecord{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}
