package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/docchat"
	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/ai/ollama"
	"github.com/poiesic/docchat/ai/openai"
	"github.com/poiesic/docchat/ingestion"
	"github.com/poiesic/docchat/tools"
	"github.com/poiesic/docchat/vector/qdrant"
)

const (
	providerOpenAI = "openai"
	providerOllama = "ollama"

	indexBadger = "badger"
	indexQdrant = "qdrant"
)

// Config is the on-disk configuration of the docchat CLI.
type Config struct {
	Storage   StorageConfig    `toml:"storage"`
	Index     IndexConfig      `toml:"index"`
	Ingestion IngestionConfig  `toml:"ingestion"`
	Chat      ChatConfig       `toml:"chat"`
	Providers []ProviderConfig `toml:"providers"`
}

type StorageConfig struct {
	Path     string `toml:"path"`
	InMemory bool   `toml:"in_memory"`
}

// IndexConfig selects the vector index. Backend "badger" keeps vectors in the
// document database; "qdrant" stores them in a Qdrant collection.
type IndexConfig struct {
	Backend    string   `toml:"backend"`
	URL        string   `toml:"url"`
	APIKeyEnv  string   `toml:"api_key_env"`
	Collection string   `toml:"collection"`
	Timeout    duration `toml:"timeout"`
}

type IngestionConfig struct {
	ChunkSize        int      `toml:"chunk_size"`
	ChunkOverlap     int      `toml:"chunk_overlap"`
	BatchSize        int      `toml:"batch_size"`
	EmbedConcurrency int      `toml:"embed_concurrency"`
	Workers          int      `toml:"workers"`
	MaxAttempts      int      `toml:"max_attempts"`
	RetryDelay       duration `toml:"retry_delay"`
	MaxFileSize      int64    `toml:"max_file_size"`
}

type ChatConfig struct {
	TopK int `toml:"top_k"`
	// WebSearchRate is the number of web searches allowed per second.
	WebSearchRate float64 `toml:"web_search_rate"`
}

// ProviderConfig describes one model provider. The first entry is the default.
type ProviderConfig struct {
	ID                 string  `toml:"id"`
	Type               string  `toml:"type"`
	Host               string  `toml:"host"`
	EmbeddingHost      string  `toml:"embedding_host"`
	ChatHost           string  `toml:"chat_host"`
	EmbeddingModel     string  `toml:"embedding_model"`
	ChatModel          string  `toml:"chat_model"`
	APIKeyEnv          string  `toml:"api_key_env"`
	EmbeddingRateLimit float64 `toml:"embedding_rate_limit"`
	EmbeddingBurst     int     `toml:"embedding_burst"`
}

// duration decodes TOML strings such as "500ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns the configuration used when no file is given: one
// local Ollama-compatible provider and vectors stored next to the documents.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Path: "docchat.db"},
		Index:   IndexConfig{Backend: indexBadger},
		Ingestion: IngestionConfig{
			ChunkSize:        ingestion.DefaultChunkSize,
			ChunkOverlap:     ingestion.DefaultChunkOverlap,
			BatchSize:        ingestion.DefaultBatchSize,
			EmbedConcurrency: ingestion.DefaultEmbedConcurrency,
			MaxAttempts:      ingestion.DefaultMaxAttempts,
			RetryDelay:       duration{ingestion.DefaultRetryDelay},
			MaxFileSize:      docchat.DefaultMaxFileSize,
		},
		Chat: ChatConfig{
			TopK:          tools.DefaultTopK,
			WebSearchRate: 1,
		},
		Providers: []ProviderConfig{{
			ID:             openai.DefaultID,
			Type:           providerOpenAI,
			Host:           aiDefaults.ChatHost,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
		}},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	// Providers in the file replace the default one rather than merging with it.
	defaults := cfg.Providers
	cfg.Providers = nil
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = defaults
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("ignoring unknown config keys", "file", path, "keys", undecoded)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the service would reject later.
func (c *Config) Validate() error {
	if c.Storage.Path == "" && !c.Storage.InMemory {
		return errors.New("config: storage.path is required")
	}
	switch c.Index.Backend {
	case "", indexBadger:
	case indexQdrant:
		if c.Index.URL == "" {
			return errors.New("config: index.url is required for the qdrant backend")
		}
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	if c.Ingestion.ChunkSize <= 0 {
		return errors.New("config: ingestion.chunk_size must be greater than 0")
	}
	if c.Ingestion.ChunkOverlap < 0 || c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return errors.New("config: ingestion.chunk_overlap must be between 0 and chunk_size")
	}
	if c.Chat.TopK < tools.MinTopK || c.Chat.TopK > tools.MaxTopK {
		return fmt.Errorf("config: chat.top_k must be between %d and %d", tools.MinTopK, tools.MaxTopK)
	}
	if len(c.Providers) == 0 {
		return errors.New("config: at least one provider is required")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		switch p.Type {
		case providerOpenAI, providerOllama:
		default:
			return fmt.Errorf("config: providers[%d]: unknown type %q", i, p.Type)
		}
		id := p.providerID()
		if seen[id] {
			return fmt.Errorf("config: duplicate provider id %q", id)
		}
		seen[id] = true
	}
	return nil
}

func (p ProviderConfig) providerID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Type
}

// aiConfig converts the provider entry, resolving the API key from the environment.
func (p ProviderConfig) aiConfig() *ai.Config {
	cfg := ai.DefaultConfig()
	if p.Host != "" {
		ai.WithHost(p.Host)(cfg)
	}
	if p.EmbeddingHost != "" {
		cfg.EmbeddingHost = p.EmbeddingHost
	}
	if p.ChatHost != "" {
		cfg.ChatHost = p.ChatHost
	}
	if p.EmbeddingModel != "" {
		cfg.EmbeddingModel = p.EmbeddingModel
	}
	if p.ChatModel != "" {
		cfg.ChatModel = p.ChatModel
	}
	if p.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(p.APIKeyEnv)
	}
	ai.WithEmbeddingRateLimit(p.EmbeddingRateLimit, p.EmbeddingBurst)(cfg)
	return cfg
}

// buildProviders creates the configured providers in file order.
func (c *Config) buildProviders() ([]ai.AIProvider, error) {
	providers := make([]ai.AIProvider, 0, len(c.Providers))
	for _, p := range c.Providers {
		var (
			provider ai.AIProvider
			err      error
		)
		switch p.Type {
		case providerOllama:
			provider, err = ollama.NewProvider(p.providerID(), p.aiConfig())
		default:
			provider, err = openai.NewProvider(p.providerID(), p.aiConfig())
		}
		if err != nil {
			for _, created := range providers {
				created.Close()
			}
			return nil, fmt.Errorf("failed to create provider %s: %w", p.providerID(), err)
		}
		providers = append(providers, provider)
	}
	return providers, nil
}

// serviceOptions translates the configuration into docchat options.
func (c *Config) serviceOptions() ([]docchat.Option, error) {
	chunker, err := ingestion.NewChunker(c.Ingestion.ChunkSize, c.Ingestion.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []ingestion.Option{ingestion.WithChunker(chunker)}
	if c.Ingestion.BatchSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithBatchSize(c.Ingestion.BatchSize))
	}
	if c.Ingestion.EmbedConcurrency > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithEmbedConcurrency(c.Ingestion.EmbedConcurrency))
	}
	if c.Ingestion.MaxAttempts > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithRetry(c.Ingestion.MaxAttempts, c.Ingestion.RetryDelay.Duration))
	}

	opts := []docchat.Option{
		docchat.WithPipelineOptions(pipelineOpts...),
		docchat.WithDefaultTopK(c.Chat.TopK),
		docchat.WithWebSearchOptions(tools.WithSearchRateLimit(c.Chat.WebSearchRate, 1)),
	}
	if c.Storage.InMemory {
		opts = append(opts, docchat.WithInMemory())
	}
	if c.Ingestion.Workers > 0 {
		opts = append(opts, docchat.WithWorkers(c.Ingestion.Workers))
	}
	if c.Ingestion.MaxFileSize > 0 {
		opts = append(opts, docchat.WithMaxFileSize(c.Ingestion.MaxFileSize))
	}
	if c.Index.Backend == indexQdrant {
		qcfg := qdrant.Config{
			URL:        c.Index.URL,
			Collection: c.Index.Collection,
			Timeout:    c.Index.Timeout.Duration,
		}
		if c.Index.APIKeyEnv != "" {
			qcfg.APIKey = os.Getenv(c.Index.APIKeyEnv)
		}
		opts = append(opts, docchat.WithQdrant(qcfg))
	}
	return opts, nil
}
