// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/ai/llm"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultID is the provider ID used when none is configured.
const DefaultID = "openai"

// Provider implements ai.AIProvider using OpenAI-compatible services.
type Provider struct {
	id         string
	config     *ai.Config
	chat       *openai.LLM
	embedder   ai.Embedder
	summarizer *llm.Summarizer
	logger     *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(id string, config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if id == "" {
		id = DefaultID
	}

	// Local OpenAI-compatible services accept any token.
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	embedClient, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := llm.NewEmbedder(embedClient, "openai-embedder")
	if err != nil {
		return nil, err
	}

	chatClient, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(token),
		openai.WithModel(config.ChatModel),
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
		logger:     slog.Default().With("component", "openai-provider", "provider", id),
	}, nil
}

// ID returns the provider ID.
func (p *Provider) ID() string {
	return p.id
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Summarizer returns the summarization service.
func (p *Provider) Summarizer() ai.Summarizer {
	return p.summarizer
}

// ChatModel returns a streaming chat model. All models share one client.
func (p *Provider) ChatModel(model string) (ai.ChatModel, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ai.ErrModelRequired
	}
	return llm.NewChatModel(p.chat, model), nil
}

// DefaultChatModel returns the configured chat model.
func (p *Provider) DefaultChatModel() string {
	return p.config.ChatModel
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
