package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/testherd/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// Compile-time interface conformance check.
var _ core.RunArchive = (*Store)(nil)

// Store archives finished runs in SQLite so past runs survive coordination
// directory cleanup.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the archive at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	// WAL mode so a status reader never blocks a writer.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if _, err := db.Exec(migrationV1); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	return &Store{db: db}, nil
}

// RecordRun appends one finished run.
func (s *Store) RecordRun(ctx context.Context, entry core.ArchiveEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, project_id, workers, total, passed, failed, skipped, started_at, ended_at, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.ProjectID, entry.Workers, entry.Total,
		entry.Passed, entry.Failed, entry.Skipped,
		entry.StartedAt, entry.EndedAt, entry.Notes,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.ArchiveEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, project_id, workers, total, passed, failed, skipped, started_at, ended_at, notes
		FROM runs ORDER BY ended_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []core.ArchiveEntry
	for rows.Next() {
		var e core.ArchiveEntry
		if err := rows.Scan(&e.RunID, &e.ProjectID, &e.Workers, &e.Total,
			&e.Passed, &e.Failed, &e.Skipped, &e.StartedAt, &e.EndedAt, &e.Notes); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
