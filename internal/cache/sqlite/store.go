// Package sqlite persists cache entries in a single-file SQLite database.
// It is the default backend: a single-user CLI wants durable state without
// a server process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidbz/incant/internal/domain"
	"github.com/davidbz/incant/internal/embedding"
	"github.com/davidbz/incant/internal/observability"
)

// Store implements domain.CacheStore on SQLite.
type Store struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	query        TEXT NOT NULL,
	embedding    BLOB NOT NULL,
	context_hash TEXT,
	response     TEXT NOT NULL,
	response_id  INTEGER,
	created_at   DATETIME NOT NULL,
	expires_at   DATETIME NOT NULL,
	hit_count    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
CREATE INDEX IF NOT EXISTS idx_cache_context ON cache_entries(context_hash);
`

// New opens the cache database and creates the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert persists a new entry and returns it with its assigned id.
func (s *Store) Insert(ctx context.Context, entry *domain.CacheEntry) (*domain.CacheEntry, error) {
	var contextHash, responseID any
	if entry.ContextHash != "" {
		contextHash = entry.ContextHash
	}
	if entry.ResponseID != 0 {
		responseID = entry.ResponseID
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries
		 (query, embedding, context_hash, response, response_id, created_at, expires_at, hit_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Query, embedding.ToBytes(entry.Embedding), contextHash,
		entry.Response, responseID,
		entry.CreatedAt.UTC(), entry.ExpiresAt.UTC(), entry.HitCount,
	)
	if err != nil {
		return nil, storeErr("insert cache entry", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeErr("insert cache entry id", err)
	}

	stored := *entry
	stored.ID = id
	return &stored, nil
}

// UpdateResponse overwrites response, provenance and expiry of an existing
// entry, leaving query, embedding, context hash and hit count untouched.
func (s *Store) UpdateResponse(ctx context.Context, id int64, response string, responseID int64, expiresAt time.Time) error {
	var respID any
	if responseID != 0 {
		respID = responseID
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET response = ?, response_id = ?, expires_at = ? WHERE id = ?`,
		response, respID, expiresAt.UTC(), id,
	)
	if err != nil {
		return storeErr("update cache entry", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update cache entry", err)
	}
	if affected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// IncrementHitCount bumps the hit counter in a single UPDATE so concurrent
// processes never lose an increment.
func (s *Store) IncrementHitCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE id = ?`, id)
	if err != nil {
		return storeErr("increment hit count", err)
	}
	return nil
}

// ScanLive returns all entries that have not expired at the given instant.
func (s *Store) ScanLive(ctx context.Context, now time.Time) ([]*domain.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, embedding, context_hash, response, response_id,
		        created_at, expires_at, hit_count
		 FROM cache_entries WHERE expires_at > ?`, now.UTC())
	if err != nil {
		return nil, storeErr("scan live cache entries", err)
	}
	defer rows.Close()

	return s.collect(ctx, rows)
}

// ListRecent returns up to limit entries ordered by creation time descending.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*domain.CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, embedding, context_hash, response, response_id,
		        created_at, expires_at, hit_count
		 FROM cache_entries ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("list recent cache entries", err)
	}
	defer rows.Close()

	return s.collect(ctx, rows)
}

func (s *Store) collect(ctx context.Context, rows *sql.Rows) ([]*domain.CacheEntry, error) {
	logger := observability.FromContext(ctx)

	var entries []*domain.CacheEntry
	for rows.Next() {
		var e domain.CacheEntry
		var blob []byte
		var contextHash sql.NullString
		var responseID sql.NullInt64
		if err := rows.Scan(
			&e.ID, &e.Query, &blob, &contextHash, &e.Response, &responseID,
			&e.CreatedAt, &e.ExpiresAt, &e.HitCount,
		); err != nil {
			return nil, storeErr("scan cache row", err)
		}

		vec, err := embedding.FromBytes(blob)
		if err != nil {
			// Corrupt blob; isolate the record instead of failing the scan.
			logger.Warn("skipping cache entry with corrupt embedding blob",
				observability.Int64("entry_id", e.ID),
				observability.Error(err))
			continue
		}
		e.Embedding = vec
		e.ContextHash = contextHash.String
		e.ResponseID = responseID.Int64
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate cache rows", err)
	}
	return entries, nil
}

// DeleteExpired removes all entries past their TTL, returning the count.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, storeErr("delete expired cache entries", err)
	}
	return res.RowsAffected()
}

// DeleteAll clears the table, returning the count removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, storeErr("clear cache", err)
	}
	return res.RowsAffected()
}

// DeleteByID removes one entry; false means it was not found.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE id = ?`, id)
	if err != nil {
		return false, storeErr("delete cache entry", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("delete cache entry", err)
	}
	return affected > 0, nil
}

// Stats aggregates cache-wide counters in SQL.
func (s *Store) Stats(ctx context.Context) (*domain.CacheStats, error) {
	var stats domain.CacheStats
	var oldest, newest sql.NullString
	var storageBytes sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(hit_count), 0),
		        COALESCE(SUM(LENGTH(embedding) + LENGTH(query) + LENGTH(response)), 0),
		        MIN(created_at), MAX(created_at),
		        COALESCE(SUM(expires_at <= ?), 0)
		 FROM cache_entries`, time.Now().UTC(),
	).Scan(&stats.Count, &stats.TotalHits, &storageBytes, &oldest, &newest, &stats.ExpiredCount)
	if err != nil {
		return nil, storeErr("cache stats", err)
	}

	stats.StorageBytes = storageBytes.Int64
	if oldest.Valid {
		ts, err := parseTimestamp(oldest.String)
		if err != nil {
			return nil, storeErr("cache stats", err)
		}
		stats.Oldest = ts
	}
	if newest.Valid {
		ts, err := parseTimestamp(newest.String)
		if err != nil {
			return nil, storeErr("cache stats", err)
		}
		stats.Newest = ts
	}
	return &stats, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// parseTimestamp reads MIN/MAX aggregate results, which the driver hands
// back as text. The first layout is the shape the driver itself writes for
// time.Time columns ("2006-01-02 15:04:05.999 +0000 UTC").
func parseTimestamp(v string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
