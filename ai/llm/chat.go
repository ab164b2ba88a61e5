package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/tmc/langchaingo/llms"
)

// ChatModel implements ai.ChatModel over a langchaingo model.
// One client serves every model name; the name is passed per call.
type ChatModel struct {
	client llms.Model
	model  string
	logger *slog.Logger
}

var _ ai.ChatModel = (*ChatModel)(nil)

// NewChatModel binds a model name to a langchaingo client.
func NewChatModel(client llms.Model, model string) *ChatModel {
	return &ChatModel{
		client: client,
		model:  model,
		logger: slog.Default().With("component", "chat-model", "model", model),
	}
}

// Name returns the model identifier.
func (m *ChatModel) Name() string {
	return m.model
}

// StreamChat streams a reply to messages, forwarding every fragment to onFragment.
func (m *ChatModel) StreamChat(ctx context.Context, messages []ai.ChatMessage, onFragment ai.FragmentFunc) (string, error) {
	var full strings.Builder
	stream := func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		full.Write(chunk)
		if onFragment == nil {
			return nil
		}
		return onFragment(ctx, string(chunk))
	}

	resp, err := m.client.GenerateContent(ctx, toMessageContent(messages),
		llms.WithModel(m.model),
		llms.WithStreamingFunc(stream),
	)
	if err != nil {
		m.logger.Error("chat generation failed", "err", err)
		return "", err
	}

	// Providers that ignore the streaming callback still return the reply.
	if full.Len() == 0 && resp != nil && len(resp.Choices) > 0 {
		content := resp.Choices[0].Content
		if content != "" {
			if err := stream(ctx, []byte(content)); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}

func toMessageContent(messages []ai.ChatMessage) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.MessageContent{
			Role:  chatMessageType(msg.Role),
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}
	return content
}

func chatMessageType(role ai.ChatRole) llms.ChatMessageType {
	switch role {
	case ai.ChatRoleSystem:
		return llms.ChatMessageTypeSystem
	case ai.ChatRoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
