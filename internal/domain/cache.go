package domain

import "context"

// SemanticCache is the engine contract the session layer depends on.
// CacheService is the production implementation.
type SemanticCache interface {
	// Lookup finds the best cached answer for a query under the given
	// context, or ErrCacheMiss.
	Lookup(ctx context.Context, query string, contextResponses []string) (*CacheMatch, error)

	// Store caches a freshly generated response.
	Store(ctx context.Context, query, response string, responseID int64, contextResponses []string) (*CacheEntry, error)

	// Update refreshes an existing entry's response and expiry in place.
	Update(ctx context.Context, id int64, response string, responseID int64) error
}
