package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no history row exists for a path.
var ErrNotFound = errors.New("sqlite: document not found")

// RecentDocument is one history entry.
type RecentDocument struct {
	ID              int64
	Path            string
	CaretOffset     int
	SelectionStart  int
	SelectionLength int
	OpenedAt        time.Time
	UpdatedAt       time.Time
}

// recentColumns is the list of columns selected for history queries.
const recentColumns = `id, path, caret_offset, selection_start, selection_length, opened_at, updated_at`

// RecentRepository stores recent-documents history in SQLite.
type RecentRepository struct {
	db *sql.DB
}

// NewRecentRepository creates a repository over db.
func NewRecentRepository(db *sql.DB) *RecentRepository {
	return &RecentRepository{db: db}
}

func scanRecent(scanner interface{ Scan(...any) error }) (*RecentDocument, error) {
	var doc RecentDocument
	err := scanner.Scan(
		&doc.ID, &doc.Path, &doc.CaretOffset,
		&doc.SelectionStart, &doc.SelectionLength,
		&doc.OpenedAt, &doc.UpdatedAt,
	)
	return &doc, err
}

// Touch records that path was opened now, creating the entry or refreshing
// its timestamps and cursor state.
func (r *RecentRepository) Touch(path string, caret, selStart, selLen int) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(
		`INSERT INTO recent_documents (path, caret_offset, selection_start, selection_length, opened_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			caret_offset = excluded.caret_offset,
			selection_start = excluded.selection_start,
			selection_length = excluded.selection_length,
			updated_at = excluded.updated_at`,
		path, caret, selStart, selLen, now, now,
	)
	if err != nil {
		return fmt.Errorf("touch recent document: %w", err)
	}
	return nil
}

// Get returns the history entry for path, or ErrNotFound.
func (r *RecentRepository) Get(path string) (*RecentDocument, error) {
	row := r.db.QueryRow(
		`SELECT `+recentColumns+` FROM recent_documents WHERE path = ?`, path)
	doc, err := scanRecent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recent document: %w", err)
	}
	return doc, nil
}

// List returns up to limit entries, most recently updated first.
func (r *RecentRepository) List(limit int) ([]*RecentDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(
		`SELECT `+recentColumns+` FROM recent_documents ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*RecentDocument
	for rows.Next() {
		doc, err := scanRecent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Remove deletes the entry for path. Removing an absent path is a no-op.
func (r *RecentRepository) Remove(path string) error {
	if _, err := r.db.Exec(`DELETE FROM recent_documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove recent document: %w", err)
	}
	return nil
}

// Prune keeps only the keep most recent entries.
func (r *RecentRepository) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.db.Exec(
		`DELETE FROM recent_documents WHERE id NOT IN (
			SELECT id FROM recent_documents ORDER BY updated_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("prune recent documents: %w", err)
	}
	return nil
}
