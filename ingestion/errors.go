package ingestion

import (
	"errors"
	"fmt"

	"github.com/poiesic/docchat/core"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrPipelineRequired is returned when a queue is created without a pipeline.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrExtractorRequired is returned when a queue is created without an extractor registry.
	ErrExtractorRequired = errors.New("extractor registry required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is less than 1.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidChunking is returned for chunk sizes that cannot make progress.
	ErrInvalidChunking = fmt.Errorf("%w: chunk overlap must be smaller than chunk size", core.ErrValidation)

	// ErrEmbeddingCount is returned when a provider returns a different number
	// of vectors than texts it was given.
	ErrEmbeddingCount = fmt.Errorf("%w: embedding count mismatch", core.ErrProvider)

	// ErrChunkCountChanged is returned when re-embedding a document would
	// produce a different number of chunks than it was completed with.
	ErrChunkCountChanged = fmt.Errorf("%w: chunk count changed", core.ErrConflict)

	// ErrQueueClosed is returned when work is submitted after Release.
	ErrQueueClosed = errors.New("indexing queue is closed")
)
