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

package mock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/core"
)

// ProviderID is the ID of providers created by NewMockProvider.
const ProviderID = "mock"

// DefaultModel is the chat model name MockProvider reports as its default.
const DefaultModel = "mock-chat"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder, summarizer and named chat models.
type MockProvider struct {
	id         string
	embedder   *MockEmbedder
	summarizer *MockSummarizer

	mu     sync.Mutex
	models map[string]*MockChatModel
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider creates a new mock provider with default mock services.
// Any model name resolves; unknown names stream "ok".
func NewMockProvider() *MockProvider {
	return NewMockProviderWithServices(ProviderID, NewMockEmbedder(), NewMockSummarizer())
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(id string, embedder *MockEmbedder, summarizer *MockSummarizer) *MockProvider {
	return &MockProvider{
		id:         id,
		embedder:   embedder,
		summarizer: summarizer,
		models:     map[string]*MockChatModel{},
	}
}

// ID returns the provider ID.
func (p *MockProvider) ID() string {
	return p.id
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Summarizer returns the mock summarizer.
func (p *MockProvider) Summarizer() ai.Summarizer {
	return p.summarizer
}

// ChatModel returns the registered model, creating a default one on first use.
// A model named "missing" is reported as not found.
func (p *MockProvider) ChatModel(model string) (ai.ChatModel, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ai.ErrModelRequired
	}
	if model == "missing" {
		return nil, fmt.Errorf("model %q %w", model, core.ErrNotFound)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[model]
	if !ok {
		m = NewMockChatModel(model, "ok")
		p.models[model] = m
	}
	return m, nil
}

// SetChatModel registers a scripted chat model under its name.
func (p *MockProvider) SetChatModel(m *MockChatModel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[m.ModelName] = m
}

// DefaultChatModel returns DefaultModel.
func (p *MockProvider) DefaultChatModel() string {
	return DefaultModel
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockSummarizer returns the underlying mock summarizer for test assertions.
func (p *MockProvider) GetMockSummarizer() *MockSummarizer {
	return p.summarizer
}
