package main

import (
	"context"
	"fmt"
	"io"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"

	redisstore "github.com/davidbz/incant/internal/cache/redis"
	"github.com/davidbz/incant/internal/cache/sqlite"
	"github.com/davidbz/incant/internal/config"
	"github.com/davidbz/incant/internal/domain"
	embeddingopenai "github.com/davidbz/incant/internal/embedding/openai"
	"github.com/davidbz/incant/internal/history"
	"github.com/davidbz/incant/internal/observability"
	"github.com/davidbz/incant/internal/provider/echo"
	provideropenai "github.com/davidbz/incant/internal/provider/openai"
	"github.com/davidbz/incant/internal/session"
)

// application bundles the dependencies a command pulls out of the container.
type application struct {
	dig.In

	Provider   *config.Provider
	Logger     *zap.Logger
	Cache      *domain.CacheService
	History    *history.Store
	Controller *session.Controller
}

// runApp builds the container, hands the resolved application to fn and
// closes any opened stores afterwards.
func runApp(fn func(app application) error) error {
	container, cleanup, err := buildContainer()
	if err != nil {
		return err
	}
	defer cleanup()

	return container.Invoke(fn)
}

func buildContainer() (*dig.Container, func(), error) {
	container := dig.New()

	var closers []io.Closer
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	constructors := []any{
		// Configuration
		func() (*config.Provider, error) {
			return config.NewProvider(configPath)
		},
		func(provider *config.Provider) (*config.Config, error) {
			cfg := provider.Config()
			if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			return cfg, nil
		},

		// Observability
		func(cfg *config.Config) (*zap.Logger, error) {
			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			return observability.InitLogger(level)
		},

		// Cache store, backend chosen by configuration
		func(cfg *config.Config, logger *zap.Logger) (domain.CacheStore, error) {
			switch cfg.Cache.Backend {
			case "redis":
				client := goredis.NewClient(&goredis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				closers = append(closers, client)
				return redisstore.New(client), nil
			case "", "sqlite":
				store, err := sqlite.New(cfg.CacheDBPath())
				if err != nil {
					return nil, err
				}
				closers = append(closers, store)
				return store, nil
			default:
				return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
			}
		},

		// Embedding generator
		func(cfg *config.Config, logger *zap.Logger) (domain.EmbeddingGenerator, error) {
			if cfg.Embedding.APIKey == "" {
				logger.Warn("OPENAI_API_KEY not set, semantic cache lookups disabled")
				return offlineEmbedder{}, nil
			}
			gen, err := embeddingopenai.NewGenerator(cfg.Embedding)
			if err != nil {
				return nil, err
			}
			logger.Debug("embedding generator ready",
				observability.String("provider", gen.Name()),
				observability.Int("dimension", gen.Dimension()))
			return gen, nil
		},

		// Completion client
		func(cfg *config.Config, logger *zap.Logger) (domain.CompletionClient, error) {
			if cfg.OpenAI.APIKey == "" {
				logger.Warn("OPENAI_API_KEY not set, using offline echo provider")
				return echo.NewProvider(), nil
			}
			return provideropenai.NewProvider(cfg.OpenAI)
		},

		// Interaction log
		func(cfg *config.Config, logger *zap.Logger) (*history.Store, error) {
			store, err := history.New(cfg.HistoryDBPath())
			if err != nil {
				return nil, err
			}
			closers = append(closers, store)
			return store, nil
		},

		// Domain services
		func(embedder domain.EmbeddingGenerator, store domain.CacheStore, provider *config.Provider) *domain.CacheService {
			return domain.NewCacheService(embedder, store, provider)
		},
		func(cfg *config.Config, cache *domain.CacheService, client domain.CompletionClient, log *history.Store) *session.Controller {
			return session.NewController(cache, client, log, cfg.OpenAI.Model)
		},
	}

	for _, ctor := range constructors {
		if err := container.Provide(ctor); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("build container: %w", err)
		}
	}

	return container, cleanup, nil
}

// offlineEmbedder stands in when no API key is configured. Every call
// reports the embedding service as unavailable, which the cache engine
// degrades to a plain model call.
type offlineEmbedder struct{}

func (offlineEmbedder) Generate(context.Context, string) ([]float64, error) {
	return nil, domain.ErrEmbeddingUnavailable
}

func (offlineEmbedder) GenerateBatch(context.Context, []string) ([][]float64, error) {
	return nil, domain.ErrEmbeddingUnavailable
}
