package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// searchTableDDL is shared by the migration and the rebuild staging table.
const searchTableDDL = `CREATE VIRTUAL TABLE %s USING fts5(
    content_id UNINDEXED,
    content_type UNINDEXED,
    title,
    summary,
    content
)`

var migrations = []migration{
	{
		Version:     1,
		Description: "core index: short-term facts, chats, entities, relations",
		SQL: `
CREATE TABLE short_term_memory (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    category    TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX idx_stm_category ON short_term_memory(category);

CREATE TABLE chats (
    chat_id     TEXT PRIMARY KEY,
    url         TEXT,
    title       TEXT NOT NULL,
    summary     TEXT,
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    tools_used  TEXT,
    topics      TEXT,
    file_path   TEXT NOT NULL
);

CREATE INDEX idx_chats_updated ON chats(updated_at DESC);

CREATE TABLE entities (
    entity_id        TEXT PRIMARY KEY,
    entity_type      TEXT NOT NULL,
    name             TEXT NOT NULL,
    summary          TEXT,
    file_path        TEXT NOT NULL,
    importance_score REAL NOT NULL DEFAULT 0.5 CHECK (importance_score >= 0 AND importance_score <= 1),
    created_at       INTEGER NOT NULL,
    updated_at       INTEGER NOT NULL
);

CREATE INDEX idx_entities_updated ON entities(updated_at DESC);
CREATE INDEX idx_entities_type    ON entities(entity_type);

CREATE TABLE relations (
    relation_id    INTEGER PRIMARY KEY AUTOINCREMENT,
    from_entity_id TEXT NOT NULL,
    to_entity_id   TEXT NOT NULL,
    relation_type  TEXT NOT NULL,
    strength       REAL NOT NULL DEFAULT 0.5 CHECK (strength >= 0 AND strength <= 1),
    created_at     INTEGER NOT NULL,

    FOREIGN KEY (from_entity_id) REFERENCES entities(entity_id) ON DELETE CASCADE,
    FOREIGN KEY (to_entity_id)   REFERENCES entities(entity_id) ON DELETE CASCADE
);

CREATE INDEX idx_relations_from ON relations(from_entity_id);
CREATE INDEX idx_relations_to   ON relations(to_entity_id);
`,
	},
	{
		Version:     2,
		Description: "memory_search: denormalized full-text index",
		SQL:         fmt.Sprintf(searchTableDDL, "memory_search") + ";",
	},
	{
		Version:     3,
		Description: "memory_index + maintenance_log: access stats and curation history",
		SQL: `
CREATE TABLE memory_index (
    content_id       TEXT PRIMARY KEY,
    content_type     TEXT NOT NULL,
    importance_score REAL NOT NULL DEFAULT 0.5 CHECK (importance_score >= 0 AND importance_score <= 1),
    access_count     INTEGER NOT NULL DEFAULT 0,
    last_accessed    INTEGER,
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_memindex_eviction ON memory_index(importance_score, access_count);

CREATE TABLE maintenance_log (
    log_id           INTEGER PRIMARY KEY AUTOINCREMENT,
    operation        TEXT NOT NULL,
    items_processed  INTEGER NOT NULL DEFAULT 0,
    items_deleted    INTEGER NOT NULL DEFAULT 0,
    items_updated    INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL,
    timestamp        INTEGER NOT NULL
);
`,
	},
}

func latestVersion() int {
	return migrations[len(migrations)-1].Version
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
