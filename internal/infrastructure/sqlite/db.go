// Package sqlite persists the recent-documents history: which files were
// open, where the caret was, and when. The database lives next to the
// config file and the schema is applied on open, so a fresh profile works
// without any migration step.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Schema is the full database schema, applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS recent_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	caret_offset INTEGER NOT NULL DEFAULT 0,
	selection_start INTEGER NOT NULL DEFAULT 0,
	selection_length INTEGER NOT NULL DEFAULT 0,
	opened_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_recent_documents_updated
	ON recent_documents(updated_at DESC);
`

// Open opens (or creates) the history database at path and applies the
// schema. Parent directories are created as needed.
func Open(path string) (*sql.DB, error) {
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory database with the schema applied. Used by
// tests and by sessions running without a writable profile.
func OpenMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
