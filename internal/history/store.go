// Package history is the append-only interaction log: every prompt the
// user sends and the answer they received, whether it came from the model
// or the cache. Cache entries reference these rows for provenance.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidbz/incant/internal/domain"
)

// Store implements domain.InteractionLog on SQLite.
type Store struct {
	db *sql.DB
}

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS interactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL,
	model      TEXT NOT NULL,
	copied     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
`

// New opens the history database and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := db.Exec(createHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert appends one interaction and returns its assigned id.
func (s *Store) Insert(ctx context.Context, in *domain.Interaction) (int64, error) {
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (prompt, response, model, copied, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		in.Prompt, in.Response, in.Model, in.Copied, createdAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert interaction: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit interactions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*domain.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, response, model, copied, created_at
		 FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var interactions []*domain.Interaction
	for rows.Next() {
		var in domain.Interaction
		if err := rows.Scan(&in.ID, &in.Prompt, &in.Response, &in.Model, &in.Copied, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		interactions = append(interactions, &in)
	}
	return interactions, rows.Err()
}

// ByID returns one interaction or domain.ErrEntryNotFound.
func (s *Store) ByID(ctx context.Context, id int64) (*domain.Interaction, error) {
	var in domain.Interaction
	err := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, response, model, copied, created_at
		 FROM interactions WHERE id = ?`, id,
	).Scan(&in.ID, &in.Prompt, &in.Response, &in.Model, &in.Copied, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query interaction %d: %w", id, err)
	}
	return &in, nil
}

// MarkCopied records that the response was copied to the clipboard.
func (s *Store) MarkCopied(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions SET copied = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark interaction copied: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark interaction copied: %w", err)
	}
	if affected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
