package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection to the lineage SQLite database.
// One database holds the graph tables, the FTS5 lexical index, and the
// embedding chunk store.
type DB struct {
	*sql.DB
	Path string

	// graphVersion mirrors graph_meta('graph_version') for lock-free reads
	// on the retrieval path.
	graphVersion atomic.Int64
}

// DefaultDBPath returns the default database path: ~/.lineage/lineage.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".lineage", "lineage.db"), nil
}

// Open opens (or creates) the SQLite database at the given path,
// configures pragmas, and runs migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return initDB(sqlDB, path)
}

// OpenMemory opens an in-memory SQLite database for testing.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return initDB(sqlDB, ":memory:")
}

func initDB(sqlDB *sql.DB, path string) (*DB, error) {
	db := &DB{DB: sqlDB, Path: path}
	if err := db.configurePragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := db.loadGraphVersion(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA mmap_size=268435456", // 256MB
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

// GraphVersion returns the store-wide monotonic version counter. Every
// successful structural write increments it; the retrieval path reads it
// lock-free to decide when cached hop distances are stale.
func (db *DB) GraphVersion() int64 {
	return db.graphVersion.Load()
}

func (db *DB) loadGraphVersion() error {
	var v int64
	err := db.QueryRow("SELECT value FROM graph_meta WHERE key = 'graph_version'").Scan(&v)
	if err != nil {
		return fmt.Errorf("load graph version: %w", err)
	}
	db.graphVersion.Store(v)
	return nil
}

// bumpGraphVersion increments the counter inside the caller's transaction
// and returns the new value. The in-memory mirror must only be updated
// after the transaction commits.
func bumpGraphVersion(tx *sql.Tx) (int64, error) {
	var v int64
	err := tx.QueryRow(`
		UPDATE graph_meta SET value = value + 1 WHERE key = 'graph_version'
		RETURNING value
	`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("bump graph version: %w", err)
	}
	return v, nil
}
