package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
)

const sourceColumns = `id, owner_id, name, priority_tier, tags, feed_url, enabled, created_at, updated_at`

// SourceStorage implements interfaces.SourceStorage for Postgres
type SourceStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func scanSource(row pgx.Row) (*models.SourceDescriptor, error) {
	var source models.SourceDescriptor
	err := row.Scan(&source.ID, &source.OwnerID, &source.Name, &source.PriorityTier, &source.Tags,
		&source.FeedURL, &source.Enabled, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *SourceStorage) SaveSource(ctx context.Context, source *models.SourceDescriptor) error {
	if err := source.Validate(); err != nil {
		return err
	}
	if source.ID == "" {
		source.ID = common.NewSourceID()
	}
	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	if source.Tags == nil {
		source.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO sources (`+sourceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, priority_tier = EXCLUDED.priority_tier, tags = EXCLUDED.tags,
			feed_url = EXCLUDED.feed_url, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		source.ID, source.OwnerID, source.Name, source.PriorityTier, source.Tags, source.FeedURL,
		source.Enabled, source.CreatedAt, source.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", interfaces.ErrDuplicateSourceName, source.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to save source: %w", err)
	}
	return nil
}

func (s *SourceStorage) GetSource(ctx context.Context, id string) (*models.SourceDescriptor, error) {
	source, err := scanSource(s.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return source, nil
}

func (s *SourceStorage) GetSourceByName(ctx context.Context, ownerID, name string) (*models.SourceDescriptor, error) {
	source, err := scanSource(s.pool.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE owner_id = $1 AND lower(name) = lower($2)`, ownerID, name))
	if err != nil {
		return nil, notFound(err)
	}
	return source, nil
}

// ListSources mirrors the badger ordering: effective tier desc, then name
func (s *SourceStorage) ListSources(ctx context.Context, ownerIDs []string) ([]*models.SourceDescriptor, error) {
	where, args := ownerClause(ownerIDs, nil)
	rows, err := s.pool.Query(ctx, `
		SELECT `+sourceColumns+` FROM sources WHERE `+where+`
		ORDER BY LEAST(GREATEST(CASE WHEN priority_tier = 0 THEN 3 ELSE priority_tier END, 1), 5) DESC, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.SourceDescriptor
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (s *SourceStorage) DeleteSource(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
