// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.ChatModel,
// ai.Summarizer and ai.AIProvider for use in unit tests. The mocks allow tests
// to run without external AI service dependencies and enable controlled,
// deterministic behavior.
//
// # Usage in Tests
//
//	provider := mock.NewMockProvider()
//	provider.SetChatModel(mock.NewMockChatModel("mock-chat", "The sky ", "is blue."))
//
//	// Custom behavior injection
//	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("embedding service down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockChatModel: Streams its scripted fragments in order
//   - MockSummarizer: Returns the first sentence of the text
//   - MockProvider: Aggregates the above; any model name resolves
package mock
