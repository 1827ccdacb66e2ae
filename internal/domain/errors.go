package domain

import "errors"

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// ErrEmbeddingUnavailable indicates the embedding client could not be
// reached or failed after retries. Lookup callers should fall back to a
// fresh model call; store callers should skip caching.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// ErrStoreUnavailable indicates the cache storage backend failed. A failed
// store or update never blocks display of a freshly generated answer.
var ErrStoreUnavailable = errors.New("cache store unavailable")

// ErrEntryNotFound indicates a by-id operation addressed a missing entry.
// This is an expected outcome, not an exceptional one.
var ErrEntryNotFound = errors.New("cache entry not found")
