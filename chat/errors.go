package chat

import "errors"

var (
	// ErrSessionRepositoryRequired is returned when a session repository is not provided.
	ErrSessionRepositoryRequired = errors.New("session repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrToolRegistryRequired is returned when a tool registry is not provided.
	ErrToolRegistryRequired = errors.New("tool registry required")

	// ErrProviderRegistryRequired is returned when a provider registry is not provided.
	ErrProviderRegistryRequired = errors.New("provider registry required")
)
