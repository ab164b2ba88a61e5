// Package llm adapts langchaingo models to the ai interfaces.
//
// The ai/openai and ai/ollama providers construct langchaingo clients and wrap
// them with the Embedder, ChatModel and Summarizer types defined here, so both
// backends share one streaming and prompting implementation.
package llm
