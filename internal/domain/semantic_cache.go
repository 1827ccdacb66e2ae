package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/incant/internal/embedding"
	"github.com/davidbz/incant/internal/observability"
)

// CacheSettings are the knobs the engine re-reads at the start of every
// Lookup and Store call, so configuration changes take effect without a
// process restart.
type CacheSettings struct {
	Enabled   bool
	Threshold float64
	TTL       time.Duration
}

// CacheSettingsSource supplies the current cache settings.
type CacheSettingsSource interface {
	CacheSettings() CacheSettings
}

// CacheService implements semantic caching: embedding-based similarity
// lookup with context-aware keying and lazy expiration.
type CacheService struct {
	embedder EmbeddingGenerator
	store    CacheStore
	settings CacheSettingsSource
	now      func() time.Time
}

// NewCacheService creates a new semantic cache engine.
func NewCacheService(embedder EmbeddingGenerator, store CacheStore, settings CacheSettingsSource) *CacheService {
	return &CacheService{
		embedder: embedder,
		store:    store,
		settings: settings,
		now:      time.Now,
	}
}

// Lookup finds the best cached answer for a query under the given context.
// Expired entries are pruned first (lazy deletion, no background sweeper).
// Returns ErrCacheMiss when nothing meets the similarity threshold and
// ErrEmbeddingUnavailable when the query could not be embedded; callers
// fall back to a fresh model call in both cases.
//
// The only side effect of a successful lookup is the matched entry's hit
// count increment.
func (s *CacheService) Lookup(ctx context.Context, query string, contextResponses []string) (*CacheMatch, error) {
	logger := observability.FromContext(ctx)

	cfg := s.settings.CacheSettings()
	if !cfg.Enabled {
		return nil, ErrCacheMiss
	}

	now := s.now()
	if pruned, err := s.store.DeleteExpired(ctx, now); err != nil {
		logger.Warn("pruning expired cache entries failed", observability.Error(err))
	} else if pruned > 0 {
		logger.Debug("pruned expired cache entries", observability.Int64("count", pruned))
	}

	queryVec, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	contextHash := HashContext(contextResponses)

	entries, err := s.store.ScanLive(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("scan live cache entries: %w", err)
	}

	best := s.selectMatch(ctx, queryVec, contextHash, cfg.Threshold, entries)
	if best == nil {
		logger.Debug("no cached entry above threshold",
			observability.Float64("threshold", cfg.Threshold),
			observability.Int("candidates", len(entries)))
		return nil, ErrCacheMiss
	}

	if err := s.store.IncrementHitCount(ctx, best.Entry.ID); err != nil {
		logger.Warn("incrementing hit count failed",
			observability.Int64("entry_id", best.Entry.ID),
			observability.Error(err))
	} else {
		best.Entry.HitCount++
	}

	logger.Debug("cache hit",
		observability.Int64("entry_id", best.Entry.ID),
		observability.Float64("similarity", best.Similarity))
	return best, nil
}

// selectMatch applies the candidate filter and selection policy.
//
// Context rule: a context-bearing query may match entries with the same
// context hash or context-independent entries; a context-free query only
// matches context-independent entries. An exact context match always beats
// a context-independent candidate regardless of similarity. Within a class
// the higher similarity wins; equal scores break toward the lowest id so
// selection stays deterministic.
func (s *CacheService) selectMatch(ctx context.Context, queryVec []float64, contextHash string, threshold float64, entries []*CacheEntry) *CacheMatch {
	logger := observability.FromContext(ctx)

	var best *CacheMatch
	var bestExact bool

	for _, entry := range entries {
		if entry.ContextHash != "" && entry.ContextHash != contextHash {
			continue
		}
		if contextHash == "" && entry.ContextHash != "" {
			continue
		}

		sim, err := embedding.CosineSimilarity(queryVec, entry.Embedding)
		if err != nil {
			// A stored vector from a different embedding model; skip the
			// record rather than aborting the whole scan.
			logger.Warn("skipping cache entry with incompatible embedding",
				observability.Int64("entry_id", entry.ID),
				observability.Error(err))
			continue
		}
		if sim < threshold {
			continue
		}

		exact := contextHash != "" && entry.ContextHash == contextHash
		switch {
		case best == nil:
		case exact && !bestExact:
		case !exact && bestExact:
			continue
		case sim < best.Similarity:
			continue
		case sim == best.Similarity && entry.ID >= best.Entry.ID:
			continue
		}

		best = &CacheMatch{Entry: entry, Similarity: sim}
		bestExact = exact
	}

	return best
}

// Store caches a freshly generated response. An empty context list stores
// the entry as context-independent. Embedding failure is fatal to this
// call and surfaces as ErrEmbeddingUnavailable; the caller decides whether
// to degrade. When caching is disabled the call is a silent no-op.
func (s *CacheService) Store(ctx context.Context, query, response string, responseID int64, contextResponses []string) (*CacheEntry, error) {
	logger := observability.FromContext(ctx)

	cfg := s.settings.CacheSettings()
	if !cfg.Enabled {
		return nil, nil
	}

	queryVec, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	now := s.now()
	entry := &CacheEntry{
		Query:       query,
		Embedding:   queryVec,
		ContextHash: HashContext(contextResponses),
		Response:    response,
		ResponseID:  responseID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(cfg.TTL),
		HitCount:    0,
	}

	stored, err := s.store.Insert(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("insert cache entry: %w", err)
	}

	logger.Debug("cached response",
		observability.Int64("entry_id", stored.ID),
		observability.Bool("context_dependent", stored.ContextHash != ""))
	return stored, nil
}

// Update refreshes an existing entry's response and provenance and resets
// its expiry. The embedding and context hash are not regenerated, so the
// entry keeps matching the same query and context it always did.
func (s *CacheService) Update(ctx context.Context, id int64, response string, responseID int64) error {
	cfg := s.settings.CacheSettings()

	if err := s.store.UpdateResponse(ctx, id, response, responseID, s.now().Add(cfg.TTL)); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return err
		}
		return fmt.Errorf("update cache entry %d: %w", id, err)
	}
	return nil
}

// PruneExpired removes all expired entries and returns the count removed.
func (s *CacheService) PruneExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

// ClearAll removes every entry and returns the count removed.
func (s *CacheService) ClearAll(ctx context.Context) (int64, error) {
	return s.store.DeleteAll(ctx)
}

// ClearByID removes one entry; false means it was not found.
func (s *CacheService) ClearByID(ctx context.Context, id int64) (bool, error) {
	return s.store.DeleteByID(ctx, id)
}

// ListRecent returns up to limit entries, newest first.
func (s *CacheService) ListRecent(ctx context.Context, limit int) ([]*CacheEntry, error) {
	return s.store.ListRecent(ctx, limit)
}

// Stats returns aggregate cache counters.
func (s *CacheService) Stats(ctx context.Context) (*CacheStats, error) {
	return s.store.Stats(ctx)
}
