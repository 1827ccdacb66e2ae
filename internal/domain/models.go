package domain

import "time"

// CacheEntry is a durable record of one previously answered query.
type CacheEntry struct {
	ID          int64     `json:"id"`
	Query       string    `json:"query"`
	Embedding   []float64 `json:"-"`
	ContextHash string    `json:"context_hash,omitempty"` // empty means context-independent
	Response    string    `json:"response"`
	ResponseID  int64     `json:"response_id,omitempty"` // interaction log id, 0 if unknown
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	HitCount    int64     `json:"hit_count"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheMatch pairs a cache entry with the similarity score of the lookup
// that produced it. It is transient and never persisted.
type CacheMatch struct {
	Entry      *CacheEntry
	Similarity float64
}

// CacheStats aggregates cache-wide counters for the stats command.
type CacheStats struct {
	Count        int64
	TotalHits    int64
	StorageBytes int64
	Oldest       time.Time
	Newest       time.Time
	ExpiredCount int64
}

// Interaction is one logged prompt/response exchange.
type Interaction struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Copied    bool      `json:"copied"`
	CreatedAt time.Time `json:"created_at"`
}

// CompletionRequest represents a unified LLM request.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// CompletionResponse represents a unified LLM response.
type CompletionResponse struct {
	ID         string    `json:"id"`
	Model      string    `json:"model"`
	Provider   string    `json:"provider"`
	Content    string    `json:"content"`
	Usage      Usage     `json:"usage"`
	FinishTime time.Time `json:"finish_time"`
}

// StreamChunk represents a single streaming response chunk.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error error  `json:"error,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}
