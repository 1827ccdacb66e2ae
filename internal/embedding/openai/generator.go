// Package openai generates embeddings through the OpenAI API. All failures
// surface as domain.ErrEmbeddingUnavailable after the retry schedule is
// exhausted, so callers can degrade to a fresh model call instead of
// aborting the query.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/incant/internal/domain"
	"github.com/davidbz/incant/internal/retry"
)

const (
	// Embedding dimensions for different OpenAI models.
	embeddingDimensionStandard = 1536 // Ada v2 and Small v3
	embeddingDimensionLarge    = 3072 // Large v3
)

// Generator generates embeddings using OpenAI.
type Generator struct {
	client openai.Client
	model  string
	retry  retry.Config
}

// NewGenerator creates a new OpenAI embedding generator.
func NewGenerator(config Config) (*Generator, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	if config.Model == "" {
		config.Model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  config.Model,
		retry:  retry.DefaultConfig(),
	}, nil
}

// Generate creates a vector embedding from text.
func (g *Generator) Generate(ctx context.Context, text string) ([]float64, error) {
	vectors, err := g.GenerateBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// GenerateBatch embeds several texts in one request, preserving input order.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, errors.New("texts cannot be empty")
	}
	for _, text := range texts {
		if text == "" {
			return nil, errors.New("text cannot be empty")
		}
	}

	resp, err := retry.Do(ctx, g.retry, func() (*openai.CreateEmbeddingResponse, error) {
		//nolint:exhaustruct // OpenAI SDK struct has many optional fields
		return g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(g.model),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			domain.ErrEmbeddingUnavailable, len(texts), len(resp.Data))
	}

	// The API reports an index per datum; order by it rather than trusting
	// response order.
	vectors := make([][]float64, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || int(datum.Index) >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range",
				domain.ErrEmbeddingUnavailable, datum.Index)
		}
		vectors[datum.Index] = datum.Embedding
	}

	return vectors, nil
}

// Name returns the generator identifier.
func (g *Generator) Name() string {
	return "openai"
}

// Dimension returns the vector dimension.
func (g *Generator) Dimension() int {
	switch g.model {
	case string(openai.EmbeddingModelTextEmbeddingAda002),
		string(openai.EmbeddingModelTextEmbedding3Small):
		return embeddingDimensionStandard
	case string(openai.EmbeddingModelTextEmbedding3Large):
		return embeddingDimensionLarge
	default:
		return embeddingDimensionStandard
	}
}
