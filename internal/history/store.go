package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store persists the per-target answer history: a bounded append log of
// (option label, outcome) pairs keyed by target identifier.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS answer_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		label TEXT NOT NULL,
		success INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_answer_history_target ON answer_history(target, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Append records one outcome for target and evicts the oldest entries
// beyond window. A window of 0 or less keeps nothing and is a no-op.
func (s *Store) Append(ctx context.Context, target, label string, success bool, window int) error {
	if window <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answer_history (target, label, success, created_at)
		 VALUES (?, ?, ?, unixepoch())`,
		target, label, boolToInt(success))
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM answer_history
		 WHERE target = ? AND id NOT IN (
			SELECT id FROM answer_history WHERE target = ? ORDER BY id DESC LIMIT ?
		 )`,
		target, target, window)
	if err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// RecentSuccess returns the most recently successful option label recorded
// for target. The second return is false when none exists.
func (s *Store) RecentSuccess(ctx context.Context, target string) (string, bool, error) {
	var label string
	err := s.db.QueryRowContext(ctx,
		`SELECT label FROM answer_history
		 WHERE target = ? AND success = 1
		 ORDER BY id DESC LIMIT 1`,
		target).Scan(&label)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query history: %w", err)
	}
	return label, true, nil
}

// Count returns the number of entries recorded for target.
func (s *Store) Count(ctx context.Context, target string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answer_history WHERE target = ?`, target).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
