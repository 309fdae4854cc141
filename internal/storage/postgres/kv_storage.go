package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// KVStorage implements interfaces.KeyValueStorage on the settings table
type KVStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, normalizeKey(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return value, nil
}

func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, description) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, description = EXCLUDED.description, updated_at = now()`,
		normalizeKey(key), value, description)
	if err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, normalizeKey(key))
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrKeyNotFound
	}
	return nil
}

func (s *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value, description, created_at, updated_at FROM settings ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}
	defer rows.Close()

	var pairs []interfaces.KeyValuePair
	for rows.Next() {
		var pair interfaces.KeyValuePair
		if err := rows.Scan(&pair.Key, &pair.Value, &pair.Description, &pair.CreatedAt, &pair.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan key/value pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, rows.Err()
}
