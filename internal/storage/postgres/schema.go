package postgres

// schemaStatements create the tables on first start when storage.postgres.create_schema is set.
// Column names mirror the JSON field names of the models.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS knowledge_items (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		source_id    TEXT NOT NULL,
		source_name  TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL DEFAULT '',
		summary      TEXT NOT NULL DEFAULT '',
		body         TEXT NOT NULL DEFAULT '',
		url          TEXT NOT NULL DEFAULT '',
		guid         TEXT NOT NULL DEFAULT '',
		tags         TEXT[] NOT NULL DEFAULT '{}',
		published_at TIMESTAMPTZ,
		is_read      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS knowledge_items_owner_unread ON knowledge_items (owner_id, is_read)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS knowledge_items_source_guid ON knowledge_items (source_id, guid) WHERE guid <> ''`,
	`CREATE TABLE IF NOT EXISTS sources (
		id            TEXT PRIMARY KEY,
		owner_id      TEXT NOT NULL,
		name          TEXT NOT NULL,
		priority_tier INTEGER NOT NULL DEFAULT 0,
		tags          TEXT[] NOT NULL DEFAULT '{}',
		feed_url      TEXT NOT NULL DEFAULT '',
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS sources_owner_name ON sources (owner_id, lower(name))`,
	`CREATE TABLE IF NOT EXISTS summary_history (
		id              TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		title           TEXT NOT NULL,
		preview         TEXT NOT NULL,
		full_text       TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		item_count      INTEGER NOT NULL,
		source_count    INTEGER NOT NULL,
		source_ids      TEXT[] NOT NULL DEFAULT '{}',
		priority_counts JSONB NOT NULL DEFAULT '{}',
		is_favorite     BOOLEAN NOT NULL DEFAULT FALSE,
		model           TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS summary_history_owner_created ON summary_history (owner_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		kind       TEXT NOT NULL,
		symbol     TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		tags       TEXT[] NOT NULL DEFAULT '{}',
		date       TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notes_owner_kind ON notes (owner_id, kind)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
