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

package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/tmc/langchaingo/llms"
)

// Summarizer implements ai.Summarizer with a single non-streaming completion.
type Summarizer struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

var _ ai.Summarizer = (*Summarizer)(nil)

// NewSummarizer creates a summarizer that uses model on client.
func NewSummarizer(client llms.Model, model string) *Summarizer {
	return &Summarizer{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "summarizer"),
	}
}

// Summarize returns the model's summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(summaryPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(text)},
		},
	}

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithModel(s.model),
		llms.WithTemperature(0.0),
	)
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}

	parts := make([]string, 0, len(response.Choices))
	for _, choice := range response.Choices {
		if c := strings.TrimSpace(choice.Content); c != "" {
			parts = append(parts, c)
		}
	}
	s.logger.Debug("generated summary", "input", len(text), "choices", len(response.Choices))
	return strings.Join(parts, "\n\n"), nil
}
