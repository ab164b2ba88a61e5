package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/docchat/ai"
)

// MockChatModel is a test double for ai.ChatModel.
// By default it streams Fragments in order; StreamChatFunc replaces that.
type MockChatModel struct {
	ModelName string
	Fragments []string

	// StreamChatFunc is called by StreamChat if set.
	StreamChatFunc func(ctx context.Context, messages []ai.ChatMessage, onFragment ai.FragmentFunc) (string, error)

	mu    sync.Mutex
	calls [][]ai.ChatMessage
}

var _ ai.ChatModel = (*MockChatModel)(nil)

// NewMockChatModel creates a chat model that streams fragments.
func NewMockChatModel(name string, fragments ...string) *MockChatModel {
	return &MockChatModel{ModelName: name, Fragments: fragments}
}

// Name returns the model name.
func (m *MockChatModel) Name() string {
	return m.ModelName
}

// StreamChat records messages and streams the scripted fragments.
func (m *MockChatModel) StreamChat(ctx context.Context, messages []ai.ChatMessage, onFragment ai.FragmentFunc) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]ai.ChatMessage(nil), messages...))
	m.mu.Unlock()

	if m.StreamChatFunc != nil {
		return m.StreamChatFunc(ctx, messages, onFragment)
	}

	var full strings.Builder
	for _, fragment := range m.Fragments {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		full.WriteString(fragment)
		if onFragment != nil {
			if err := onFragment(ctx, fragment); err != nil {
				return "", err
			}
		}
	}
	return full.String(), nil
}

// Calls returns the conversations passed to StreamChat.
func (m *MockChatModel) Calls() [][]ai.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ai.ChatMessage(nil), m.calls...)
}

// MockSummarizer is a test double for ai.Summarizer.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, returns the first sentence of the text.
	SummarizeFunc func(ctx context.Context, text string) (string, error)

	mu     sync.Mutex
	inputs []string
}

var _ ai.Summarizer = (*MockSummarizer)(nil)

// NewMockSummarizer creates a summarizer with default behavior.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize records text and returns its first sentence.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, text)
	m.mu.Unlock()

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}
	text = strings.TrimSpace(text)
	if i := strings.Index(text, ". "); i >= 0 {
		return text[:i+1], nil
	}
	return text, nil
}

// Inputs returns every text passed to Summarize.
func (m *MockSummarizer) Inputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}
