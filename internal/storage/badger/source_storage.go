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

// SourceStorage implements interfaces.SourceStorage for Badger
type SourceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSourceStorage creates a new SourceStorage instance
func NewSourceStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SourceStorage {
	return &SourceStorage{
		db:     db,
		logger: logger,
	}
}

// SaveSource creates or updates a source. Names are unique per owner because
// the model cites them verbatim.
func (s *SourceStorage) SaveSource(ctx context.Context, source *models.SourceDescriptor) error {
	if err := source.Validate(); err != nil {
		return err
	}

	existing, err := s.GetSourceByName(ctx, source.OwnerID, source.Name)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return err
	}
	if existing != nil && existing.ID != source.ID {
		return fmt.Errorf("%w: %s", interfaces.ErrDuplicateSourceName, source.Name)
	}

	if source.ID == "" {
		source.ID = common.NewSourceID()
	}
	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now

	if err := s.db.Store().Upsert(source.ID, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.SourceDescriptor, error) {
	var source models.SourceDescriptor
	err := s.db.Store().Get(id, &source)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return &source, nil
}

// GetSourceByName matches names case-insensitively within one owner
func (s *SourceStorage) GetSourceByName(ctx context.Context, ownerID, name string) (*models.SourceDescriptor, error) {
	var sources []models.SourceDescriptor
	if err := s.db.Store().Find(&sources, badgerhold.Where("OwnerID").Eq(ownerID)); err != nil {
		return nil, fmt.Errorf("failed to find source by name: %w", err)
	}
	for i := range sources {
		if strings.EqualFold(sources[i].Name, name) {
			return &sources[i], nil
		}
	}
	return nil, interfaces.ErrNotFound
}

// ListSources returns sources ordered by tier desc, then name
func (s *SourceStorage) ListSources(ctx context.Context, ownerIDs []string) ([]*models.SourceDescriptor, error) {
	var sources []models.SourceDescriptor
	if err := s.db.Store().Find(&sources, ownerQuery(ownerIDs)); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	result := make([]*models.SourceDescriptor, len(sources))
	for i := range sources {
		result[i] = &sources[i]
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Tier() != result[j].Tier() {
			return result[i].Tier() > result[j].Tier()
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	err := s.db.Store().Delete(id, &models.SourceDescriptor{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}
