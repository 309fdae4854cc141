package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/models"
)

const knowledgeColumns = `id, owner_id, source_id, source_name, title, summary, body, url, guid, tags,
	published_at, is_read, created_at, updated_at`

// KnowledgeStorage implements interfaces.KnowledgeStorage for Postgres
type KnowledgeStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func scanKnowledgeItem(row pgx.Row) (*models.KnowledgeItem, error) {
	var item models.KnowledgeItem
	err := row.Scan(&item.ID, &item.OwnerID, &item.SourceID, &item.SourceName, &item.Title, &item.Summary,
		&item.Body, &item.URL, &item.GUID, &item.Tags, &item.PublishedAt, &item.IsRead, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
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
	if item.Tags == nil {
		item.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO knowledge_items (`+knowledgeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			source_name = EXCLUDED.source_name, title = EXCLUDED.title, summary = EXCLUDED.summary,
			body = EXCLUDED.body, url = EXCLUDED.url, tags = EXCLUDED.tags,
			published_at = EXCLUDED.published_at, is_read = EXCLUDED.is_read, updated_at = EXCLUDED.updated_at`,
		item.ID, item.OwnerID, item.SourceID, item.SourceName, item.Title, item.Summary, item.Body, item.URL,
		item.GUID, item.Tags, item.PublishedAt, item.IsRead, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save knowledge item: %w", err)
	}
	return nil
}

// UpsertFeedItems relies on the (source_id, guid) unique index; xmax = 0 marks a fresh insert
func (s *KnowledgeStorage) UpsertFeedItems(ctx context.Context, items []*models.KnowledgeItem) (int, error) {
	created := 0
	now := time.Now()
	for _, item := range items {
		if item.ID == "" {
			item.ID = common.NewItemID()
		}
		if item.Tags == nil {
			item.Tags = []string{}
		}
		var inserted bool
		err := s.pool.QueryRow(ctx, `
			INSERT INTO knowledge_items (`+knowledgeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, $12, $12)
			ON CONFLICT (source_id, guid) WHERE guid <> '' DO UPDATE SET
				source_name = EXCLUDED.source_name, title = EXCLUDED.title, summary = EXCLUDED.summary,
				body = EXCLUDED.body, url = EXCLUDED.url, tags = EXCLUDED.tags,
				published_at = EXCLUDED.published_at, updated_at = EXCLUDED.updated_at
			RETURNING id, is_read, created_at, (xmax = 0)`,
			item.ID, item.OwnerID, item.SourceID, item.SourceName, item.Title, item.Summary, item.Body, item.URL,
			item.GUID, item.Tags, item.PublishedAt, now,
		).Scan(&item.ID, &item.IsRead, &item.CreatedAt, &inserted)
		if err != nil {
			return created, fmt.Errorf("failed to upsert feed item %s: %w", item.GUID, err)
		}
		item.UpdatedAt = now
		if inserted {
			created++
		}
	}
	return created, nil
}

func (s *KnowledgeStorage) GetItem(ctx context.Context, id string) (*models.KnowledgeItem, error) {
	item, err := scanKnowledgeItem(s.pool.QueryRow(ctx, `SELECT `+knowledgeColumns+` FROM knowledge_items WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (s *KnowledgeStorage) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.KnowledgeItem, error) {
	where, args := ownerClause(filter.OwnerIDs, nil)
	if len(filter.SourceIDs) > 0 {
		args = append(args, filter.SourceIDs)
		where += fmt.Sprintf(" AND source_id = ANY($%d)", len(args))
	}
	if filter.UnreadOnly {
		where += " AND NOT is_read"
	}
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_items WHERE ` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge items: %w", err)
	}
	defer rows.Close()

	var items []*models.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledgeItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *KnowledgeStorage) DeleteItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}
	return nil
}

// MarkRead only touches unread rows, so repeated calls report zero changes
func (s *KnowledgeStorage) MarkRead(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE knowledge_items SET is_read = TRUE, updated_at = now() WHERE id = ANY($1) AND NOT is_read`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to mark items read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *KnowledgeStorage) SetRead(ctx context.Context, id string, read bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE knowledge_items SET is_read = $2, updated_at = now() WHERE id = $1`, id, read)
	if err != nil {
		return fmt.Errorf("failed to set read flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows)
	}
	return nil
}
