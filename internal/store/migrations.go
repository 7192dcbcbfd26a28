package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes: typed graph nodes",
		SQL: `
CREATE TABLE nodes (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    type         TEXT NOT NULL,
    text         TEXT NOT NULL DEFAULT '',
    tags         TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'superseded', 'deleted')),
    embed_status TEXT NOT NULL DEFAULT 'none' CHECK (embed_status IN ('none', 'pending', 'ok')),
    metadata     TEXT NOT NULL DEFAULT '{}',
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);

CREATE INDEX idx_nodes_type    ON nodes(type);
CREATE INDEX idx_nodes_status  ON nodes(status);
CREATE INDEX idx_nodes_updated ON nodes(updated_at DESC);
`,
	},
	{
		Version:     2,
		Description: "edges: typed directed relationships",
		SQL: `
CREATE TABLE edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    from_id     INTEGER NOT NULL REFERENCES nodes(id),
    to_id       INTEGER NOT NULL REFERENCES nodes(id),
    relation    TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    confidence  REAL NOT NULL DEFAULT 1.0 CHECK (confidence >= 0.0 AND confidence <= 1.0),
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_edges_from ON edges(from_id);
CREATE INDEX idx_edges_to   ON edges(to_id);
`,
	},
	{
		Version:     3,
		Description: "graph_meta: store-wide counters",
		SQL: `
CREATE TABLE graph_meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);

INSERT INTO graph_meta (key, value) VALUES ('graph_version', 0);
`,
	},
	{
		Version:     4,
		Description: "nodes_fts: FTS5 lexical index with porter stemming",
		SQL: `
CREATE VIRTUAL TABLE nodes_fts USING fts5(text, tags, tokenize='porter unicode61');
`,
	},
	{
		Version:     5,
		Description: "embedding_chunks: per-lane chunk vectors",
		SQL: `
CREATE TABLE embedding_chunks (
    node_id     INTEGER NOT NULL REFERENCES nodes(id),
    lane        TEXT NOT NULL CHECK (lane IN ('prose', 'code', 'conversational')),
    chunk_index INTEGER NOT NULL,
    vector      BLOB NOT NULL,
    span_start  INTEGER NOT NULL,
    span_end    INTEGER NOT NULL,
    model       TEXT NOT NULL,
    created_at  INTEGER NOT NULL,

    PRIMARY KEY (node_id, lane, chunk_index)
);

CREATE INDEX idx_chunks_lane ON embedding_chunks(lane);
`,
	},
	{
		Version:     6,
		Description: "edge_proposals: relationship builder output awaiting confirmation",
		SQL: `
CREATE TABLE edge_proposals (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    from_id    INTEGER NOT NULL REFERENCES nodes(id),
    to_id      INTEGER NOT NULL REFERENCES nodes(id),
    relation   TEXT NOT NULL,
    confidence REAL NOT NULL,
    evidence   TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT 'proposed' CHECK (status IN ('proposed', 'confirmed', 'rejected')),
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_proposals_status ON edge_proposals(status);
`,
	},
}

func (db *DB) migrate() error {
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
