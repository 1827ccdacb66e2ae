// Package config loads settings from an optional YAML file overlaid by
// environment variables. A Provider wraps the loaded config with an
// explicit Reload hook so threshold and TTL changes take effect without a
// process restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/davidbz/incant/internal/domain"
	embeddingopenai "github.com/davidbz/incant/internal/embedding/openai"
	provideropenai "github.com/davidbz/incant/internal/provider/openai"
)

// Config holds all incant configuration.
type Config struct {
	DataDir   string                 `yaml:"data_dir"  env:"INCANT_DATA_DIR"`
	Cache     CacheConfig            `yaml:"cache"`
	Redis     RedisConfig            `yaml:"redis"`
	Log       LogConfig              `yaml:"log"`
	OpenAI    provideropenai.Config  `yaml:"-"`
	Embedding embeddingopenai.Config `yaml:"-"`
}

// CacheConfig controls the semantic cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"   env:"INCANT_CACHE_ENABLED"`
	Threshold float64       `yaml:"threshold" env:"INCANT_CACHE_THRESHOLD"`
	TTL       time.Duration `yaml:"ttl"       env:"INCANT_CACHE_TTL"`
	Backend   string        `yaml:"backend"   env:"INCANT_CACHE_BACKEND"` // sqlite or redis
}

// RedisConfig locates the optional shared cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"     env:"INCANT_REDIS_ADDR"`
	Password string `yaml:"password" env:"INCANT_REDIS_PASSWORD"`
	DB       int    `yaml:"db"       env:"INCANT_REDIS_DB"`
}

// LogConfig controls logger verbosity.
type LogConfig struct {
	Level string `yaml:"level" env:"INCANT_LOG_LEVEL"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".incant"),
		Cache: CacheConfig{
			Enabled:   true,
			Threshold: 0.85,
			TTL:       30 * 24 * time.Hour,
			Backend:   "sqlite",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads the YAML config file if present, expands environment
// variables in it, then applies environment overrides on top.
func Load(path string) (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case os.IsNotExist(err):
			// Optional file; defaults plus env suffice.
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".incant", "config.yaml")
}

// CacheDBPath is the SQLite cache database location.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// HistoryDBPath is the SQLite interaction log location.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Provider hands out the current config and allows explicit reloads, so
// the cache engine sees configuration changes without a restart.
type Provider struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewProvider loads the config from path and wraps it.
func NewProvider(path string) (*Provider, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Provider{path: path, cfg: cfg}, nil
}

// NewStaticProvider wraps an already built config; used by tests.
func NewStaticProvider(cfg *Config) *Provider {
	return &Provider{cfg: cfg}
}

// Config returns the current configuration.
func (p *Provider) Config() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg
}

// Reload re-reads the configuration from disk.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	cfg, err := Load(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return nil
}

// Swap replaces the current configuration; used by tests.
func (p *Provider) Swap(cfg *Config) {
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

// CacheSettings implements domain.CacheSettingsSource.
func (p *Provider) CacheSettings() domain.CacheSettings {
	cfg := p.Config()
	return domain.CacheSettings{
		Enabled:   cfg.Cache.Enabled,
		Threshold: cfg.Cache.Threshold,
		TTL:       cfg.Cache.TTL,
	}
}
