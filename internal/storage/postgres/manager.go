package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
)

// Manager implements interfaces.StorageManager on a Postgres pool
type Manager struct {
	pool      *pgxpool.Pool
	knowledge interfaces.KnowledgeStorage
	sources   interfaces.SourceStorage
	history   interfaces.HistoryStorage
	notes     interfaces.NoteStorage
	kv        interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewManager connects to Postgres and optionally creates the schema
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.PostgresConfig) (*Manager, error) {
	poolConfig, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if config.CreateSchema {
		for _, stmt := range schemaStatements {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to create schema: %w", err)
			}
		}
		logger.Debug().Int("statements", len(schemaStatements)).Msg("Postgres schema ensured")
	}

	logger.Info().Int32("max_conns", poolConfig.MaxConns).Msg("Postgres storage manager initialized")

	return &Manager{
		pool:      pool,
		knowledge: &KnowledgeStorage{pool: pool, logger: logger},
		sources:   &SourceStorage{pool: pool, logger: logger},
		history:   &HistoryStorage{pool: pool, logger: logger},
		notes:     &NoteStorage{pool: pool, logger: logger},
		kv:        &KVStorage{pool: pool, logger: logger},
		logger:    logger,
	}, nil
}

func (m *Manager) KnowledgeStorage() interfaces.KnowledgeStorage { return m.knowledge }
func (m *Manager) SourceStorage() interfaces.SourceStorage       { return m.sources }
func (m *Manager) HistoryStorage() interfaces.HistoryStorage     { return m.history }
func (m *Manager) NoteStorage() interfaces.NoteStorage           { return m.notes }
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage   { return m.kv }

// Close releases the pool
func (m *Manager) Close() error {
	m.pool.Close()
	return nil
}

// notFound maps pgx.ErrNoRows onto the storage-wide sentinel
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ownerClause returns a WHERE fragment restricting owner_id to the given accounts
func ownerClause(ownerIDs []string, args []any) (string, []any) {
	if len(ownerIDs) == 0 {
		return "TRUE", args
	}
	args = append(args, ownerIDs)
	return fmt.Sprintf("owner_id = ANY($%d)", len(args)), args
}
