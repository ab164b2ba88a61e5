// Package ollama provides an ai.AIProvider backed by Ollama's native API.
package ollama

import (
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/ai/llm"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultID is the provider ID used when none is configured.
const DefaultID = "ollama"

// Provider implements ai.AIProvider with langchaingo's Ollama client.
type Provider struct {
	id         string
	config     *ai.Config
	chat       *ollama.LLM
	embedder   ai.Embedder
	summarizer *llm.Summarizer
	logger     *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates an Ollama provider. Hosts are given without the /v1
// suffix; one is stripped if present.
func NewProvider(id string, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = DefaultID
	}

	embedClient, err := ollama.New(
		ollama.WithServerURL(serverURL(config.EmbeddingHost)),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := llm.NewEmbedder(embedClient, "ollama-embedder")
	if err != nil {
		return nil, err
	}

	chatClient, err := ollama.New(
		ollama.WithServerURL(serverURL(config.ChatHost)),
		ollama.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Provider{
		id:         id,
		config:     config,
		chat:       chatClient,
		embedder:   ai.NewRateLimitedEmbedder(embedder, config.EmbeddingRateLimit, config.EmbeddingBurst),
		summarizer: llm.NewSummarizer(chatClient, config.ChatModel),
		logger:     slog.Default().With("component", "ollama-provider", "provider", id),
	}, nil
}

func serverURL(host string) string {
	return strings.TrimSuffix(strings.TrimSuffix(host, "/v1"), "/")
}

// ID returns the provider ID.
func (p *Provider) ID() string { return p.id }

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder { return p.embedder }

// Summarizer returns the summarization service.
func (p *Provider) Summarizer() ai.Summarizer { return p.summarizer }

// ChatModel returns a streaming chat model.
func (p *Provider) ChatModel(model string) (ai.ChatModel, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ai.ErrModelRequired
	}
	return llm.NewChatModel(p.chat, model), nil
}

// DefaultChatModel returns the configured chat model.
func (p *Provider) DefaultChatModel() string { return p.config.ChatModel }

// Close is a no-op; the HTTP client needs no cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}
