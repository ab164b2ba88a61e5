// Package tools holds the capabilities a chat turn can invoke to gather
// grounding context: retrieval over the document's chunks, web search and a
// structured reasoning scaffold.
//
// The set of tools is closed. Every variant implements Tool and is registered
// once at startup in a Registry, which only selects tools and never invokes
// them.
package tools

import (
	"context"

	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
)

// ID identifies a tool. Values are stable and appear on persisted messages.
type ID string

const (
	RetrieveID  ID = "retrieve"
	WebSearchID ID = "web_search"
	DeepThinkID ID = "deep_think"
)

// Context carries the per-turn state a tool may need.
type Context struct {
	DocumentID core.ID
	Namespace  string // vector index namespace of the document
	TopK       int    // requested retrieval size, 0 for the tool default
}

// Result is a tool's contribution to the grounding context.
type Result struct {
	ToolID  ID
	Content string

	// Chunks holds the matches behind Content for retrieval tools.
	Chunks []storage.VectorMatch
}

// Tool is one capability in the registry.
type Tool interface {
	ID() ID
	Title() string
	Description() string
	EnabledByDefault() bool

	// Invoke runs the tool for a user query. Failures the conversation can
	// continue without are reported inside Result rather than as an error.
	Invoke(ctx context.Context, query string, tc Context) (Result, error)
}

// IDs returns the ids of tools in order.
func IDs(tools []Tool) []ID {
	ids := make([]ID, len(tools))
	for i, t := range tools {
		ids[i] = t.ID()
	}
	return ids
}
