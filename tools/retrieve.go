package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
)

const (
	// DefaultTopK is the number of chunks retrieved when the turn asks for none.
	DefaultTopK = 5

	MinTopK = 1
	MaxTopK = 20
)

// RetrieveTool grounds a turn in the chunks of the session's document most
// similar to the user's message.
type RetrieveTool struct {
	embedder ai.Embedder
	index    storage.VectorIndex
	topK     int
	logger   *slog.Logger
}

var _ Tool = (*RetrieveTool)(nil)

// RetrieveOption configures a RetrieveTool.
type RetrieveOption func(*RetrieveTool) error

// WithDefaultTopK sets the retrieval size used when a turn does not pick one.
func WithDefaultTopK(k int) RetrieveOption {
	return func(t *RetrieveTool) error {
		t.topK = ClampTopK(k)
		return nil
	}
}

// WithRetrieveLogger sets a custom logger.
func WithRetrieveLogger(logger *slog.Logger) RetrieveOption {
	return func(t *RetrieveTool) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewRetrieveTool creates the retrieval tool.
func NewRetrieveTool(embedder ai.Embedder, index storage.VectorIndex, opts ...RetrieveOption) (*RetrieveTool, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	t := &RetrieveTool{
		embedder: embedder,
		index:    index,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	t.logger = t.logger.With("component", "retrieve-tool")
	return t, nil
}

func (t *RetrieveTool) ID() ID                 { return RetrieveID }
func (t *RetrieveTool) Title() string          { return "Retrieve" }
func (t *RetrieveTool) EnabledByDefault() bool { return true }

func (t *RetrieveTool) Description() string {
	return "Searches the current document for the passages most relevant to the question."
}

// Invoke embeds the query and returns the closest chunks of the document,
// labelled with their ordinals. Identical chunk texts are reported once.
func (t *RetrieveTool) Invoke(ctx context.Context, query string, tc Context) (Result, error) {
	result := Result{ToolID: RetrieveID}

	namespace := tc.Namespace
	if namespace == "" {
		namespace = core.Namespace(tc.DocumentID)
	}
	k := t.topK
	if tc.TopK != 0 {
		k = ClampTopK(tc.TopK)
	}

	vector, err := t.embedder.EmbedText(ctx, query)
	if err != nil {
		return result, fmt.Errorf("%w: embedding query: %w", core.ErrProvider, err)
	}
	matches, err := t.index.Query(ctx, namespace, vector, k)
	if err != nil {
		return result, fmt.Errorf("%w: querying %s: %w", core.ErrProvider, namespace, err)
	}

	boostVerbatim(matches, query)

	seen := make(map[string]bool, len(matches))
	var sb strings.Builder
	for _, m := range matches {
		if seen[m.Record.Text] {
			continue
		}
		seen[m.Record.Text] = true
		result.Chunks = append(result.Chunks, m)

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[chunk:%d] %s", m.Record.Ordinal, m.Record.Text)
	}
	result.Content = sb.String()

	t.logger.Debug("retrieved chunks", "namespace", namespace, "requested", k, "returned", len(result.Chunks))
	return result, nil
}

// ClampTopK bounds a retrieval size to [MinTopK, MaxTopK].
func ClampTopK(k int) int {
	return min(max(k, MinTopK), MaxTopK)
}

// boostVerbatim raises chunks that contain the query's words and re-sorts.
func boostVerbatim(matches []storage.VectorMatch, query string) {
	words := significantWords(query)
	for i := range matches {
		if containsAllWords(matches[i].Record.Text, words) {
			matches[i].Score += verbatimBoost
		}
	}
	storage.RankMatches(matches)
}
