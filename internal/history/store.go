// Package history records completed tool runs (downloads, disc rips,
// library scans) so "what did you download last week" works across
// restarts. It is for finished work only; live task state stays on the
// in-memory board.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded tool run.
type Entry struct {
	ID         int64     `json:"id"`
	Tool       string    `json:"tool"`
	Subject    string    `json:"subject"` // URL, disc label, query
	Outcome    string    `json:"outcome"` // "done" or "error"
	Detail     string    `json:"detail,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists tool-run history in SQLite. All public methods are
// safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the history database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		tool        TEXT NOT NULL,
		subject     TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		detail      TEXT NOT NULL DEFAULT '',
		finished_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tool_history_tool ON tool_history (tool, finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one finished run. The entry's FinishedAt defaults to
// now when zero.
func (s *Store) Record(ctx context.Context, e Entry) error {
	when := e.FinishedAt
	if when.IsZero() {
		when = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_history (tool, subject, outcome, detail, finished_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Tool, e.Subject, e.Outcome, e.Detail, when.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Tool, err)
	}
	return nil
}

// Recent returns the most recent entries for a tool, newest first.
// An empty tool matches every tool. Limit must be positive.
func (s *Store) Recent(ctx context.Context, tool string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, tool, subject, outcome, detail, finished_at
	          FROM tool_history`
	args := []any{}
	if tool != "" {
		query += ` WHERE tool = ?`
		args = append(args, tool)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent %s: %w", tool, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var finished string
		if err := rows.Scan(&e.ID, &e.Tool, &e.Subject, &e.Outcome, &e.Detail, &finished); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than the cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tool_history WHERE finished_at < ?`,
		olderThan.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
