package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory journal
const MemoryPath = ":memory:"

// NewDatabase opens the SQLite journal at dbPath and applies the schema
func NewDatabase(dbPath string) (*sql.DB, error) {
	slog.Debug("opening journal database", "path", dbPath)

	if dbPath != MemoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every pooled connection to :memory: would see its own empty database
	if dbPath == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if dbPath != MemoryPath {
		lock := newSchemaLock(dbPath)
		if err := lock.acquire(); err != nil {
			db.Close()
			return nil, err
		}
		defer lock.release()
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	slog.Debug("journal database ready", "path", dbPath)
	return db, nil
}

// ensureSchema creates the database schema if it doesn't exist
func ensureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS probes (
    id          INTEGER PRIMARY KEY,
    timestamp   INTEGER NOT NULL,
    command     TEXT    NOT NULL,
    path        TEXT    NOT NULL,
    format      TEXT    NOT NULL,
    code        TEXT    NOT NULL,
    message     TEXT    NOT NULL DEFAULT '',
    channels    INTEGER NOT NULL DEFAULT 0,
    sample_rate INTEGER NOT NULL DEFAULT 0,
    block_align INTEGER NOT NULL DEFAULT 0,
    tag         TEXT    NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0 CHECK (size_bytes >= 0),
    bytes_read  INTEGER NOT NULL DEFAULT 0 CHECK (bytes_read >= 0)
);

CREATE INDEX IF NOT EXISTS idx_probes_timestamp ON probes(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_probes_format ON probes(format);
CREATE INDEX IF NOT EXISTS idx_probes_failed ON probes(code) WHERE code != 'ok';
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
