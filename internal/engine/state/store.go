// Package state persists download history in a SQLite database.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tomefetch/tomefetch/internal/engine/types"
	"github.com/tomefetch/tomefetch/internal/utils"
)

// ErrNotFound is returned when no row matches the requested ID.
var ErrNotFound = errors.New("download not found")

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	dest_path    TEXT NOT NULL DEFAULT '',
	filename     TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	total_size   INTEGER NOT NULL DEFAULT 0,
	downloaded   INTEGER NOT NULL DEFAULT 0,
	content_type TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	created_at   INTEGER NOT NULL,
	completed_at INTEGER NOT NULL DEFAULT 0,
	time_taken   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS downloads_created_at ON downloads (created_at);
`

const columns = `id, url, dest_path, filename, status, total_size, downloaded,
	content_type, error, created_at, completed_at, time_taken`

// Store is a handle to the history database. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	// A single connection serializes writers; SQLite would return
	// SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure state db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	utils.Debug("State db opened: %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Record inserts entry or replaces the row with the same ID. CreatedAt of
// an existing row is preserved.
func (s *Store) Record(entry types.DownloadEntry) error {
	if entry.ID == "" {
		return errors.New("entry has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
INSERT INTO downloads (`+columns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	url = excluded.url,
	dest_path = excluded.dest_path,
	filename = excluded.filename,
	status = excluded.status,
	total_size = excluded.total_size,
	downloaded = excluded.downloaded,
	content_type = excluded.content_type,
	error = excluded.error,
	completed_at = excluded.completed_at,
	time_taken = excluded.time_taken`,
		entry.ID, entry.URL, entry.DestPath, entry.Filename, entry.Status,
		entry.TotalSize, entry.Downloaded, entry.ContentType, entry.Error,
		entry.CreatedAt, entry.CompletedAt, entry.TimeTaken,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", entry.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (types.DownloadEntry, error) {
	var e types.DownloadEntry
	err := row.Scan(&e.ID, &e.URL, &e.DestPath, &e.Filename, &e.Status,
		&e.TotalSize, &e.Downloaded, &e.ContentType, &e.Error,
		&e.CreatedAt, &e.CompletedAt, &e.TimeTaken)
	return e, err
}

// Get returns the row for id.
func (s *Store) Get(id string) (types.DownloadEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := scanEntry(s.db.QueryRow(`SELECT `+columns+` FROM downloads WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DownloadEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.DownloadEntry{}, fmt.Errorf("failed to load %s: %w", id, err)
	}
	return e, nil
}

// History returns all rows, newest first.
func (s *Store) History() ([]types.DownloadEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT ` + columns + ` FROM downloads ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []types.DownloadEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the row for id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// MarkInterrupted turns rows still marked as running or paused into errors.
// Such rows were left behind by a process that exited mid-download. It
// returns the number of rows changed.
func (s *Store) MarkInterrupted() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE downloads SET status = ?, error = ? WHERE status IN (?, ?, ?)`,
		types.StatusFailed.String(), "interrupted",
		types.StatusRunning.String(), types.StatusPaused.String(), types.StatusQueued)
	if err != nil {
		return 0, fmt.Errorf("failed to mark interrupted downloads: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		utils.Debug("Marked %d interrupted downloads", n)
	}
	return n, nil
}
