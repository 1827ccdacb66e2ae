// Package echo provides a completion client that echoes back input
// messages. It makes no external API calls, providing deterministic
// responses for testing and offline development.
package echo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/incant/internal/domain"
)

const (
	providerName = "echo"
	chunkDelay   = 10 * time.Millisecond
)

// Provider implements domain.CompletionClient by echoing the prompt.
type Provider struct {
	name string
}

// NewProvider creates a new echo provider. No configuration is required as
// this provider operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{name: providerName}
}

// Complete returns the echoed request content.
func (p *Provider) Complete(_ context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	echoContent := buildEchoContent(req.Messages)
	tokens := countTokens(echoContent)

	return &domain.CompletionResponse{
		ID:       fmt.Sprintf("echo-%d", time.Now().UnixNano()),
		Model:    req.Model,
		Provider: p.name,
		Content:  echoContent,
		Usage: domain.Usage{
			PromptTokens:     tokens,
			CompletionTokens: tokens,
			TotalTokens:      tokens * 2,
		},
		FinishTime: time.Now(),
	}, nil
}

// Stream returns the echoed content word by word.
func (p *Provider) Stream(ctx context.Context, req *domain.CompletionRequest) (<-chan domain.StreamChunk, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	echoContent := buildEchoContent(req.Messages)
	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		words := strings.Fields(echoContent)
		if len(words) == 0 {
			select {
			case chunks <- domain.StreamChunk{Delta: "", Done: true, Error: nil}:
			case <-ctx.Done():
			}
			return
		}

		for i, word := range words {
			delta := word
			if i < len(words)-1 {
				delta += " "
			}

			select {
			case <-ctx.Done():
				chunks <- domain.StreamChunk{Delta: "", Done: true, Error: ctx.Err()}
				return
			case chunks <- domain.StreamChunk{Delta: delta, Done: false, Error: nil}:
				time.Sleep(chunkDelay)
			}
		}

		select {
		case chunks <- domain.StreamChunk{Delta: "", Done: true, Error: nil}:
		case <-ctx.Done():
		}
	}()

	return chunks, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// buildEchoContent constructs the echo response from request messages.
func buildEchoContent(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, msg := range messages {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", msg.Role, msg.Content))
	}
	return builder.String()
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(strings.Fields(content))
}
