package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/incant/internal/domain"
	"github.com/davidbz/incant/internal/session"
)

// fakeCache records engine calls and returns canned results.
type fakeCache struct {
	lookupMatch *domain.CacheMatch
	lookupErr   error
	storeErr    error
	updateErr   error

	lookupCalls int
	storeCalls  int
	updateCalls int

	storedQuery    string
	storedResponse string
	storedLogID    int64
	storedContext  []string
	updatedID      int64
	updatedLogID   int64
}

func (f *fakeCache) Lookup(_ context.Context, _ string, _ []string) (*domain.CacheMatch, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.lookupMatch, nil
}

func (f *fakeCache) Store(_ context.Context, query, response string, responseID int64, contextResponses []string) (*domain.CacheEntry, error) {
	f.storeCalls++
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	f.storedQuery = query
	f.storedResponse = response
	f.storedLogID = responseID
	f.storedContext = contextResponses
	return &domain.CacheEntry{ID: 11, Query: query, Response: response, ResponseID: responseID}, nil
}

func (f *fakeCache) Update(_ context.Context, id int64, _ string, responseID int64) error {
	f.updateCalls++
	f.updatedID = id
	f.updatedLogID = responseID
	return f.updateErr
}

// fakeClient returns a fixed completion.
type fakeClient struct {
	content string
	err     error
	lastReq *domain.CompletionRequest
}

func (f *fakeClient) Complete(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CompletionResponse{
		ID:         "resp-1",
		Model:      req.Model,
		Provider:   "fake",
		Content:    f.content,
		FinishTime: time.Now(),
	}, nil
}

func (f *fakeClient) Stream(_ context.Context, _ *domain.CompletionRequest) (<-chan domain.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Name() string { return "fake" }

// fakeLog assigns sequential ids.
type fakeLog struct {
	nextID  int64
	err     error
	entries []*domain.Interaction
}

func (f *fakeLog) Insert(_ context.Context, in *domain.Interaction) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	stored := *in
	stored.ID = f.nextID
	f.entries = append(f.entries, &stored)
	return f.nextID, nil
}

func (f *fakeLog) Recent(_ context.Context, _ int) ([]*domain.Interaction, error) {
	return f.entries, nil
}

func (f *fakeLog) ByID(_ context.Context, _ int64) (*domain.Interaction, error) {
	return nil, domain.ErrEntryNotFound
}

func (f *fakeLog) MarkCopied(_ context.Context, _ int64) error { return nil }

func newController(cache *fakeCache, client *fakeClient, log *fakeLog) *session.Controller {
	return session.NewController(cache, client, log, "gpt-4o-mini")
}

func TestAsk_CacheHitServedWithoutModelCall(t *testing.T) {
	cache := &fakeCache{lookupMatch: &domain.CacheMatch{
		Entry:      &domain.CacheEntry{ID: 3, Response: "ls -la"},
		Similarity: 0.93,
	}}
	client := &fakeClient{content: "should not be called"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeNormal)
	require.NoError(t, err)
	require.True(t, result.FromCache)
	require.Equal(t, "ls -la", result.Response)
	require.Equal(t, int64(3), result.EntryID)
	require.InDelta(t, 0.93, result.Similarity, 1e-9)
	require.Nil(t, client.lastReq)
	require.Empty(t, log.entries)
}

func TestAsk_MissCallsModelLogsAndStores(t *testing.T) {
	cache := &fakeCache{lookupErr: domain.ErrCacheMiss}
	client := &fakeClient{content: "ls -la\n"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeNormal)
	require.NoError(t, err)
	require.False(t, result.FromCache)
	require.Equal(t, "ls -la", result.Response) // trimmed
	require.Equal(t, int64(1), result.LogID)
	require.Equal(t, 1, cache.storeCalls)
	require.Equal(t, "list files", cache.storedQuery)
	require.Equal(t, int64(1), cache.storedLogID)
	require.Len(t, log.entries, 1)
	require.Equal(t, "list files", log.entries[0].Prompt)
}

func TestAsk_BypassNeverTouchesCache(t *testing.T) {
	cache := &fakeCache{}
	client := &fakeClient{content: "ls"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeBypass)
	require.NoError(t, err)
	require.Equal(t, "ls", result.Response)
	require.Zero(t, cache.lookupCalls)
	require.Zero(t, cache.storeCalls)
	require.Len(t, log.entries, 1) // still logged
}

func TestAsk_RefreshSkipsLookupButStores(t *testing.T) {
	cache := &fakeCache{}
	client := &fakeClient{content: "ls"}
	log := &fakeLog{}

	_, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeRefresh)
	require.NoError(t, err)
	require.Zero(t, cache.lookupCalls)
	require.Equal(t, 1, cache.storeCalls)
}

func TestAsk_EmbeddingUnavailableDegradesToModel(t *testing.T) {
	cache := &fakeCache{lookupErr: domain.ErrEmbeddingUnavailable}
	client := &fakeClient{content: "ls"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeNormal)
	require.NoError(t, err)
	require.Equal(t, "ls", result.Response)
	require.False(t, result.FromCache)
}

func TestAsk_StoreFailureDoesNotBlockAnswer(t *testing.T) {
	cache := &fakeCache{lookupErr: domain.ErrCacheMiss, storeErr: domain.ErrStoreUnavailable}
	client := &fakeClient{content: "ls"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeNormal)
	require.NoError(t, err)
	require.Equal(t, "ls", result.Response)
	require.Zero(t, result.EntryID)
}

func TestAsk_ModelFailureSurfaces(t *testing.T) {
	cache := &fakeCache{lookupErr: domain.ErrCacheMiss}
	client := &fakeClient{err: errors.New("API returned status 401")}
	log := &fakeLog{}

	_, err := newController(cache, client, log).Ask(context.Background(), "list files", nil, session.ModeNormal)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model call failed")
}

func TestAsk_ContextResponsesThreadedIntoPrompt(t *testing.T) {
	cache := &fakeCache{lookupErr: domain.ErrCacheMiss}
	client := &fakeClient{content: "ls | sort"}
	log := &fakeLog{}

	_, err := newController(cache, client, log).Ask(context.Background(), "sort them", []string{"ls -la"}, session.ModeNormal)
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 3)
	require.Equal(t, "system", client.lastReq.Messages[0].Role)
	require.Equal(t, "assistant", client.lastReq.Messages[1].Role)
	require.Equal(t, "ls -la", client.lastReq.Messages[1].Content)
	require.Equal(t, "user", client.lastReq.Messages[2].Role)
	require.Equal(t, []string{"ls -la"}, cache.storedContext)
}

func TestAsk_EmptyQueryRejected(t *testing.T) {
	_, err := newController(&fakeCache{}, &fakeClient{}, &fakeLog{}).
		Ask(context.Background(), "   ", nil, session.ModeNormal)
	require.Error(t, err)
}

func TestRegenerate_UpdatesSameEntry(t *testing.T) {
	cache := &fakeCache{}
	client := &fakeClient{content: "ls -lah"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Regenerate(context.Background(), 5, "list files", nil)
	require.NoError(t, err)
	require.Equal(t, "ls -lah", result.Response)
	require.Equal(t, int64(5), result.EntryID)
	require.Equal(t, 1, cache.updateCalls)
	require.Equal(t, int64(5), cache.updatedID)
	require.Equal(t, result.LogID, cache.updatedLogID)
	require.Zero(t, cache.storeCalls) // refresh, not a duplicate store
}

func TestRegenerate_UpdateFailureDoesNotBlockAnswer(t *testing.T) {
	cache := &fakeCache{updateErr: domain.ErrStoreUnavailable}
	client := &fakeClient{content: "ls -lah"}
	log := &fakeLog{}

	result, err := newController(cache, client, log).Regenerate(context.Background(), 5, "list files", nil)
	require.NoError(t, err)
	require.Equal(t, "ls -lah", result.Response)
}
