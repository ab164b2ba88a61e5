package tools

import (
	"errors"
	"fmt"

	"github.com/poiesic/docchat/core"
)

var (
	// ErrUnknownTool is returned by Resolve for ids missing from the registry.
	ErrUnknownTool = fmt.Errorf("%w: unknown tool", core.ErrNotFound)

	// ErrDuplicateTool is returned when two registered tools share an id.
	ErrDuplicateTool = fmt.Errorf("%w: duplicate tool id", core.ErrValidation)

	// ErrEmbedderRequired is returned when RetrieveTool is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorIndexRequired is returned when RetrieveTool is built without a vector index.
	ErrVectorIndexRequired = errors.New("vector index required")
)
