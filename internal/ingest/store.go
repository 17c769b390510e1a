package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists knowledge chunks in SQLite, keyed by source file so
// re-ingesting a file replaces its previous chunks.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the knowledge database at the given path.
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
	CREATE TABLE IF NOT EXISTS kb_chunks (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source      TEXT NOT NULL,
		key         TEXT NOT NULL,
		section     TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		ingested_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kb_chunks_source ON kb_chunks (source);
	CREATE INDEX IF NOT EXISTS idx_kb_chunks_key ON kb_chunks (key);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Replace swaps all chunks for a source file in one transaction and
// returns how many were stored.
func (s *Store) Replace(ctx context.Context, source string, chunks []Chunk) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("clear %s: %w", source, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kb_chunks (source, key, section, content, ingested_at)
			 VALUES (?, ?, ?, ?, ?)`,
			source, c.Key, c.Section, c.Content, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", c.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(chunks), nil
}

// BySource returns the stored chunks for one source file in insertion
// order.
func (s *Store) BySource(ctx context.Context, source string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, section, content FROM kb_chunks WHERE source = ? ORDER BY id`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("chunks for %s: %w", source, err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Key, &c.Section, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Sources lists every source file with stored chunks.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source FROM kb_chunks ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
