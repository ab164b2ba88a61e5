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

// Package ai provides abstractions for the AI services used by docchat.
//
// The indexing pipeline and the chat orchestrator depend on these interfaces
// rather than on concrete backends:
//
//   - Embedder: Generates vector embeddings from text
//   - ChatModel: Streams a reply to a conversation
//   - Summarizer: Writes a short summary of a document
//   - AIProvider: Aggregates the services of one backend
//
// A Registry resolves the (provider ID, model name) pair of a chat request to
// one provider and one ChatModel. Unknown providers wrap core.ErrNotFound and
// blank model names wrap core.ErrValidation.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/ollama: Ollama's native API through langchaingo
//   - ai/llm: the langchaingo adapters shared by both
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, ollama.NewProvider) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockProvider, mock.NewMockEmbedder) return CONCRETE types so tests
// can inject behavior and assert on calls.
//
// # Rate Limiting
//
// NewRateLimitedEmbedder wraps any Embedder with a token bucket. Providers
// apply it when Config.EmbeddingRateLimit is set.
package ai
