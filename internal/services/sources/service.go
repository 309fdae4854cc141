package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
	"github.com/ternarybob/dealdesk/internal/services/accounts"
)

// Service manages source descriptors on behalf of an account. Reads see the
// account's sources plus the shared account's; writes only touch sources the
// account owns.
type Service struct {
	storage  interfaces.SourceStorage
	accounts *accounts.Resolver
	logger   arbor.ILogger
}

// NewService creates a new source service
func NewService(storage interfaces.SourceStorage, resolver *accounts.Resolver, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		accounts: resolver,
		logger:   logger,
	}
}

// extractSiteDomain extracts the host of a feed URL without the www. prefix
func extractSiteDomain(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// CreateSource validates and stores a new source owned by accountID
func (s *Service) CreateSource(ctx context.Context, accountID string, source *models.SourceDescriptor) error {
	source.ID = ""
	source.OwnerID = s.accounts.AccountID(accountID)
	source.Name = strings.TrimSpace(source.Name)
	if source.PriorityTier == 0 {
		source.PriorityTier = models.DefaultPriorityTier
	}

	if err := source.Validate(); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	if err := s.storage.SaveSource(ctx, source); err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}

	s.logger.Info().
		Str("id", source.ID).
		Str("owner_id", source.OwnerID).
		Str("name", source.Name).
		Int("priority_tier", source.PriorityTier).
		Str("site_domain", extractSiteDomain(source.FeedURL)).
		Msg("Source created successfully")
	return nil
}

// UpdateSource replaces the editable fields of an owned source
func (s *Service) UpdateSource(ctx context.Context, accountID string, source *models.SourceDescriptor) error {
	existing, err := s.owned(ctx, accountID, source.ID)
	if err != nil {
		return err
	}

	existing.Name = strings.TrimSpace(source.Name)
	existing.PriorityTier = source.PriorityTier
	existing.Tags = source.Tags
	existing.FeedURL = source.FeedURL
	existing.Enabled = source.Enabled

	if err := existing.Validate(); err != nil {
		return fmt.Errorf("source validation failed: %w", err)
	}
	if err := s.storage.SaveSource(ctx, existing); err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	*source = *existing

	s.logger.Info().
		Str("id", source.ID).
		Str("name", source.Name).
		Int("priority_tier", source.PriorityTier).
		Msg("Source updated successfully")
	return nil
}

// GetSource returns a source visible to accountID
func (s *Service) GetSource(ctx context.Context, accountID, id string) (*models.SourceDescriptor, error) {
	source, err := s.storage.GetSource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	for _, owner := range s.accounts.Owners(ctx, accountID) {
		if source.OwnerID == owner {
			return source, nil
		}
	}
	return nil, fmt.Errorf("failed to get source: %w", interfaces.ErrNotFound)
}

// ListSources returns every source visible to accountID
func (s *Service) ListSources(ctx context.Context, accountID string) ([]*models.SourceDescriptor, error) {
	sources, err := s.storage.ListSources(ctx, s.accounts.Owners(ctx, accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// DeleteSource removes an owned source. Its items are kept and fall back to
// the source name recorded on each item.
func (s *Service) DeleteSource(ctx context.Context, accountID, id string) error {
	source, err := s.owned(ctx, accountID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteSource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	s.logger.Info().
		Str("id", id).
		Str("name", source.Name).
		Msg("Source deleted successfully")
	return nil
}

func (s *Service) owned(ctx context.Context, accountID, id string) (*models.SourceDescriptor, error) {
	source, err := s.storage.GetSource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("source not found: %w", err)
	}
	if source.OwnerID != s.accounts.AccountID(accountID) {
		return nil, fmt.Errorf("source not found: %w", interfaces.ErrNotFound)
	}
	return source, nil
}
