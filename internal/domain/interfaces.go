package domain

import (
	"context"
	"time"
)

// EmbeddingGenerator creates vector embeddings from text.
type EmbeddingGenerator interface {
	// Generate creates a vector embedding from text.
	Generate(ctx context.Context, text string) ([]float64, error)

	// GenerateBatch embeds several texts at once, preserving input order.
	GenerateBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// CompletionClient produces the response text stored on a cache miss.
type CompletionClient interface {
	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and returns a stream of chunks.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)

	// Name returns the provider identifier.
	Name() string
}

// CacheStore is the durable CRUD contract the cache engine depends on.
type CacheStore interface {
	// Insert assigns an id, persists all fields and returns the stored record.
	Insert(ctx context.Context, entry *CacheEntry) (*CacheEntry, error)

	// UpdateResponse overwrites response, provenance and expiry of an
	// existing entry. Query, embedding, context hash and hit count are
	// left untouched. Returns ErrEntryNotFound for a missing id.
	UpdateResponse(ctx context.Context, id int64, response string, responseID int64, expiresAt time.Time) error

	// IncrementHitCount adds one to the entry's hit count as a single
	// storage-level operation, safe under concurrent processes.
	IncrementHitCount(ctx context.Context, id int64) error

	// ScanLive returns all entries with expiresAt after now.
	ScanLive(ctx context.Context, now time.Time) ([]*CacheEntry, error)

	// DeleteExpired removes all entries with expiresAt at or before now
	// and returns the count removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// DeleteAll removes every entry and returns the count removed.
	DeleteAll(ctx context.Context) (int64, error)

	// DeleteByID removes one entry; false means it was not found.
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// ListRecent returns up to limit entries ordered by createdAt descending.
	ListRecent(ctx context.Context, limit int) ([]*CacheEntry, error)

	// Stats returns aggregate counters over the whole table.
	Stats(ctx context.Context) (*CacheStats, error)
}

// InteractionLog is the append-only interaction history.
type InteractionLog interface {
	// Insert appends one interaction and returns its assigned id.
	Insert(ctx context.Context, in *Interaction) (int64, error)

	// Recent returns up to limit interactions, newest first.
	Recent(ctx context.Context, limit int) ([]*Interaction, error)

	// ByID returns one interaction or ErrEntryNotFound.
	ByID(ctx context.Context, id int64) (*Interaction, error)

	// MarkCopied records that the response was copied to the clipboard.
	MarkCopied(ctx context.Context, id int64) error
}
