// Package session decides, per incoming query, whether to consult the
// semantic cache and how to react to a hit or miss. Cache failures degrade
// to a fresh model call and never block the user from seeing an answer.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/incant/internal/domain"
	"github.com/davidbz/incant/internal/observability"
)

// Mode selects the cache policy for one query.
type Mode int

const (
	// ModeNormal consults the cache and stores fresh answers.
	ModeNormal Mode = iota

	// ModeBypass never reads or writes the cache.
	ModeBypass

	// ModeRefresh skips the lookup and writes a fresh entry.
	ModeRefresh
)

const systemPrompt = "You are a command-line assistant. Translate the user's request " +
	"into a single shell command for a POSIX system. Reply with the command only, " +
	"no explanation and no code fences."

// Result is the answer delivered to the CLI layer.
type Result struct {
	Response   string
	Model      string
	FromCache  bool
	Similarity float64
	EntryID    int64 // cache entry that served or stored the answer, 0 if none
	LogID      int64 // interaction log id, 0 for cache hits
}

// Controller orchestrates model calls, logging and the semantic cache.
type Controller struct {
	cache  domain.SemanticCache
	client domain.CompletionClient
	log    domain.InteractionLog
	model  string
}

// NewController creates a session controller.
func NewController(cache domain.SemanticCache, client domain.CompletionClient, log domain.InteractionLog, model string) *Controller {
	return &Controller{
		cache:  cache,
		client: client,
		log:    log,
		model:  model,
	}
}

// Ask answers one query under the given mode. contextResponses are the
// prior answers the query may refer back to ("run it again").
func (c *Controller) Ask(ctx context.Context, query string, contextResponses []string, mode Mode) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query cannot be empty")
	}

	ctx = observability.WithModel(ctx, c.model)
	logger := observability.FromContext(ctx)

	if mode == ModeNormal {
		match, err := c.cache.Lookup(ctx, query, contextResponses)
		switch {
		case err == nil:
			logger.Debug("serving cached answer",
				observability.Int64("entry_id", match.Entry.ID),
				observability.Float64("similarity", match.Similarity))
			return &Result{
				Response:   match.Entry.Response,
				Model:      c.model,
				FromCache:  true,
				Similarity: match.Similarity,
				EntryID:    match.Entry.ID,
			}, nil
		case errors.Is(err, domain.ErrCacheMiss):
			// fall through to a fresh model call
		case errors.Is(err, domain.ErrEmbeddingUnavailable):
			logger.Warn("cache lookup unavailable, asking model directly",
				observability.Error(err))
		default:
			logger.Warn("cache lookup failed, asking model directly",
				observability.Error(err))
		}
	}

	response, logID, err := c.generate(ctx, query, contextResponses)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Response: response,
		Model:    c.model,
		LogID:    logID,
	}

	if mode != ModeBypass {
		entry, err := c.cache.Store(ctx, query, response, logID, contextResponses)
		if err != nil {
			// Caching is best effort; the answer still goes to the user.
			logger.Warn("storing answer in cache failed", observability.Error(err))
		} else if entry != nil {
			result.EntryID = entry.ID
		}
	}

	return result, nil
}

// Regenerate re-runs the model for a served cache hit and refreshes the
// same entry in place rather than storing a duplicate.
func (c *Controller) Regenerate(ctx context.Context, entryID int64, query string, contextResponses []string) (*Result, error) {
	ctx = observability.WithModel(ctx, c.model)
	logger := observability.FromContext(ctx)

	response, logID, err := c.generate(ctx, query, contextResponses)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Update(ctx, entryID, response, logID); err != nil {
		logger.Warn("refreshing cache entry failed",
			observability.Int64("entry_id", entryID),
			observability.Error(err))
	}

	return &Result{
		Response: response,
		Model:    c.model,
		EntryID:  entryID,
		LogID:    logID,
	}, nil
}

// generate calls the model and appends the exchange to the interaction
// log, returning the answer together with its own log id.
func (c *Controller) generate(ctx context.Context, query string, contextResponses []string) (string, int64, error) {
	logger := observability.FromContext(ctx)

	resp, err := c.client.Complete(ctx, c.buildRequest(query, contextResponses))
	if err != nil {
		return "", 0, fmt.Errorf("model call failed: %w", err)
	}

	response := strings.TrimSpace(resp.Content)

	logID, err := c.log.Insert(ctx, &domain.Interaction{
		Prompt:   query,
		Response: response,
		Model:    resp.Model,
	})
	if err != nil {
		// History is best effort too; 0 means provenance unknown.
		logger.Warn("logging interaction failed", observability.Error(err))
		logID = 0
	}

	return response, logID, nil
}

// buildRequest threads prior responses into the conversation so that
// follow-up queries resolve against them.
func (c *Controller) buildRequest(query string, contextResponses []string) *domain.CompletionRequest {
	messages := make([]domain.Message, 0, len(contextResponses)+2)
	messages = append(messages, domain.Message{Role: "system", Content: systemPrompt})
	for _, resp := range contextResponses {
		messages = append(messages, domain.Message{Role: "assistant", Content: resp})
	}
	messages = append(messages, domain.Message{Role: "user", Content: query})

	return &domain.CompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
}
