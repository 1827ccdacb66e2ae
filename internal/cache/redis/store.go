// Package redis implements the cache store on a Redis server, for setups
// that share one cache between machines. One hash per entry, an INCR
// counter for monotonic ids and a set of live ids; the hit counter uses
// HINCRBY so concurrent processes never lose an increment.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/incant/internal/domain"
	"github.com/davidbz/incant/internal/embedding"
	"github.com/davidbz/incant/internal/observability"
)

const (
	entryKeyPrefix = "incant:cache:entry:"
	idCounterKey   = "incant:cache:next_id"
	idSetKey       = "incant:cache:ids"
)

// Store implements domain.CacheStore on Redis.
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed cache store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func entryKey(id int64) string {
	return entryKeyPrefix + strconv.FormatInt(id, 10)
}

// Insert persists a new entry under a freshly allocated id.
func (s *Store) Insert(ctx context.Context, entry *domain.CacheEntry) (*domain.CacheEntry, error) {
	id, err := s.client.Incr(ctx, idCounterKey).Result()
	if err != nil {
		return nil, storeErr("allocate cache id", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, entryKey(id),
		"query", entry.Query,
		"embedding", embedding.ToBytes(entry.Embedding),
		"context_hash", entry.ContextHash,
		"response", entry.Response,
		"response_id", entry.ResponseID,
		"created_at", entry.CreatedAt.UTC().UnixNano(),
		"expires_at", entry.ExpiresAt.UTC().UnixNano(),
		"hit_count", entry.HitCount,
	)
	pipe.SAdd(ctx, idSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeErr("insert cache entry", err)
	}

	stored := *entry
	stored.ID = id
	return &stored, nil
}

// UpdateResponse overwrites response, provenance and expiry of an existing
// entry.
func (s *Store) UpdateResponse(ctx context.Context, id int64, response string, responseID int64, expiresAt time.Time) error {
	exists, err := s.client.Exists(ctx, entryKey(id)).Result()
	if err != nil {
		return storeErr("update cache entry", err)
	}
	if exists == 0 {
		return domain.ErrEntryNotFound
	}

	err = s.client.HSet(ctx, entryKey(id),
		"response", response,
		"response_id", responseID,
		"expires_at", expiresAt.UTC().UnixNano(),
	).Err()
	if err != nil {
		return storeErr("update cache entry", err)
	}
	return nil
}

// IncrementHitCount bumps the counter server-side via HINCRBY.
func (s *Store) IncrementHitCount(ctx context.Context, id int64) error {
	if err := s.client.HIncrBy(ctx, entryKey(id), "hit_count", 1).Err(); err != nil {
		return storeErr("increment hit count", err)
	}
	return nil
}

// ScanLive returns all entries that have not expired at the given instant.
func (s *Store) ScanLive(ctx context.Context, now time.Time) ([]*domain.CacheEntry, error) {
	entries, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	live := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live, nil
}

// ListRecent returns up to limit entries ordered by creation time descending.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*domain.CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	entries, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	// Newest first. Ids grow monotonically with insertion but refreshes do
	// not change ids, so order by CreatedAt.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// DeleteExpired removes all entries past their TTL, returning the count.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	entries, err := s.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, e := range entries {
		if !e.Expired(now) {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, entryKey(e.ID))
		pipe.SRem(ctx, idSetKey, e.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, storeErr("delete expired cache entry", err)
		}
		removed++
	}
	return removed, nil
}

// DeleteAll clears the cache, returning the count removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	ids, err := s.client.SMembers(ctx, idSetKey).Result()
	if err != nil {
		return 0, storeErr("clear cache", err)
	}

	var removed int64
	for _, idStr := range ids {
		id, convErr := strconv.ParseInt(idStr, 10, 64)
		if convErr != nil {
			continue
		}
		if err := s.client.Del(ctx, entryKey(id)).Err(); err != nil {
			return removed, storeErr("clear cache", err)
		}
		removed++
	}
	if err := s.client.Del(ctx, idSetKey).Err(); err != nil {
		return removed, storeErr("clear cache", err)
	}
	return removed, nil
}

// DeleteByID removes one entry; false means it was not found.
func (s *Store) DeleteByID(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.client.Del(ctx, entryKey(id)).Result()
	if err != nil {
		return false, storeErr("delete cache entry", err)
	}
	if err := s.client.SRem(ctx, idSetKey, id).Err(); err != nil {
		return false, storeErr("delete cache entry", err)
	}
	return deleted > 0, nil
}

// Stats aggregates counters over all stored entries.
func (s *Store) Stats(ctx context.Context) (*domain.CacheStats, error) {
	entries, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.CacheStats{}
	now := time.Now()
	for _, e := range entries {
		stats.Count++
		stats.TotalHits += e.HitCount
		stats.StorageBytes += int64(len(e.Query) + len(e.Response) + len(e.Embedding)*4)
		if e.Expired(now) {
			stats.ExpiredCount++
		}
		if stats.Oldest.IsZero() || e.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = e.CreatedAt
		}
		if e.CreatedAt.After(stats.Newest) {
			stats.Newest = e.CreatedAt
		}
	}
	return stats, nil
}

func (s *Store) loadAll(ctx context.Context) ([]*domain.CacheEntry, error) {
	logger := observability.FromContext(ctx)

	ids, err := s.client.SMembers(ctx, idSetKey).Result()
	if err != nil {
		return nil, storeErr("list cache ids", err)
	}

	entries := make([]*domain.CacheEntry, 0, len(ids))
	for _, idStr := range ids {
		id, convErr := strconv.ParseInt(idStr, 10, 64)
		if convErr != nil {
			continue
		}

		fields, err := s.client.HGetAll(ctx, entryKey(id)).Result()
		if err != nil {
			return nil, storeErr("load cache entry", err)
		}
		if len(fields) == 0 {
			// Stale id from an interrupted delete; drop it.
			_ = s.client.SRem(ctx, idSetKey, id).Err()
			continue
		}

		entry, parseErr := parseEntry(id, fields)
		if parseErr != nil {
			logger.Warn("skipping unreadable cache entry",
				observability.Int64("entry_id", id),
				observability.Error(parseErr))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseEntry(id int64, fields map[string]string) (*domain.CacheEntry, error) {
	vec, err := embedding.FromBytes([]byte(fields["embedding"]))
	if err != nil {
		return nil, fmt.Errorf("embedding blob: %w", err)
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}

	hitCount, _ := strconv.ParseInt(fields["hit_count"], 10, 64)
	responseID, _ := strconv.ParseInt(fields["response_id"], 10, 64)

	return &domain.CacheEntry{
		ID:          id,
		Query:       fields["query"],
		Embedding:   vec,
		ContextHash: fields["context_hash"],
		Response:    fields["response"],
		ResponseID:  responseID,
		CreatedAt:   time.Unix(0, createdAt).UTC(),
		ExpiresAt:   time.Unix(0, expiresAt).UTC(),
		HitCount:    hitCount,
	}, nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
