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

const historyColumns = `id, owner_id, title, preview, full_text, created_at, item_count, source_count,
	source_ids, priority_counts, is_favorite, model`

// HistoryStorage implements interfaces.HistoryStorage for Postgres
type HistoryStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func scanSummary(row pgx.Row) (*models.SummaryHistoryRecord, error) {
	var record models.SummaryHistoryRecord
	err := row.Scan(&record.ID, &record.OwnerID, &record.Title, &record.Preview, &record.FullText,
		&record.CreatedAt, &record.ItemCount, &record.SourceCount, &record.SourceIDs, &record.PriorityCounts,
		&record.IsFavorite, &record.Model)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *HistoryStorage) InsertSummary(ctx context.Context, record *models.SummaryHistoryRecord) error {
	if record.ID == "" {
		record.ID = common.NewSummaryID()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if record.SourceIDs == nil {
		record.SourceIDs = []string{}
	}
	if record.PriorityCounts == nil {
		record.PriorityCounts = map[int]int{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO summary_history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		record.ID, record.OwnerID, record.Title, record.Preview, record.FullText, record.CreatedAt,
		record.ItemCount, record.SourceCount, record.SourceIDs, record.PriorityCounts, record.IsFavorite, record.Model)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

func (s *HistoryStorage) GetSummary(ctx context.Context, id string) (*models.SummaryHistoryRecord, error) {
	record, err := scanSummary(s.pool.QueryRow(ctx, `SELECT `+historyColumns+` FROM summary_history WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

func (s *HistoryStorage) ListSummaries(ctx context.Context, ownerIDs []string, limit int) ([]*models.SummaryHistoryRecord, error) {
	where, args := ownerClause(ownerIDs, nil)
	query := `SELECT ` + historyColumns + ` FROM summary_history WHERE ` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var records []*models.SummaryHistoryRecord
	for rows.Next() {
		record, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *HistoryStorage) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var favorite bool
	err := s.pool.QueryRow(ctx,
		`UPDATE summary_history SET is_favorite = NOT is_favorite WHERE id = $1 RETURNING is_favorite`, id).Scan(&favorite)
	if err != nil {
		return false, notFound(err)
	}
	return favorite, nil
}

func (s *HistoryStorage) DeleteSummary(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM summary_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
