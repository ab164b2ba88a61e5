package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatRole identifies the speaker of a ChatMessage sent to a language model.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of the conversation handed to a ChatModel.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// FragmentFunc receives each piece of streamed model output in order.
// Returning an error stops generation and is returned by StreamChat.
type FragmentFunc func(ctx context.Context, fragment string) error

// ChatModel generates a streamed reply from a conversation.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Name returns the model identifier sent to the provider.
	Name() string

	// StreamChat sends messages to the model and calls onFragment for every
	// fragment of the reply. It returns the full reply text.
	// Cancelling ctx stops generation between fragments.
	StreamChat(ctx context.Context, messages []ChatMessage, onFragment FragmentFunc) (string, error)
}

// Summarizer produces a short summary of a document's text.
// Implementations must be thread-safe for concurrent use.
type Summarizer interface {
	// Summarize returns a summary of text in a few sentences.
	Summarize(ctx context.Context, text string) (string, error)
}

// AIProvider aggregates the AI services of one backend.
// A provider owns its embedder and summarizer and hands out chat models by name,
// all sharing the provider's configuration.
type AIProvider interface {
	// ID returns the identifier used to select the provider.
	ID() string

	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Summarizer returns the document summarization service.
	Summarizer() Summarizer

	// ChatModel returns a streaming chat model for the given model name.
	ChatModel(model string) (ChatModel, error)

	// DefaultChatModel returns the model used when a request names none.
	DefaultChatModel() string

	// Close releases resources held by the provider and its services.
	Close() error
}
