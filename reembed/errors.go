package reembed

import "errors"

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrPipelineRequired is returned when a pipeline is not provided.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrExtractorRequired is returned when an extractor registry is not provided.
	ErrExtractorRequired = errors.New("extractor registry required")
)
