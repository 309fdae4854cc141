package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/models"
)

const noteColumns = `id, owner_id, kind, symbol, title, content, tags, date, created_at, updated_at`

// NoteStorage implements interfaces.NoteStorage for Postgres
type NoteStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func scanNote(row pgx.Row) (*models.Note, error) {
	var note models.Note
	var kind string
	err := row.Scan(&note.ID, &note.OwnerID, &kind, &note.Symbol, &note.Title, &note.Content, &note.Tags,
		&note.Date, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	note.Kind = models.NoteKind(kind)
	return &note, nil
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
	if note.Tags == nil {
		note.Tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, symbol = EXCLUDED.symbol, title = EXCLUDED.title, content = EXCLUDED.content,
			tags = EXCLUDED.tags, date = EXCLUDED.date, updated_at = EXCLUDED.updated_at`,
		note.ID, note.OwnerID, string(note.Kind), note.Symbol, note.Title, note.Content, note.Tags, note.Date,
		note.CreatedAt, note.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save note: %w", err)
	}
	return nil
}

func (s *NoteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	note, err := scanNote(s.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return note, nil
}

func (s *NoteStorage) ListNotes(ctx context.Context, filter models.NoteFilter) ([]*models.Note, error) {
	where, args := ownerClause(filter.OwnerIDs, nil)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Symbol)))
		where += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	query := `SELECT ` + noteColumns + ` FROM notes WHERE ` + where + ` ORDER BY COALESCE(date, created_at) DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *NoteStorage) DeleteNote(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
