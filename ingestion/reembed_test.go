package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docchat/ai/mock"
	"github.com/poiesic/docchat/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantVectors(v []float32) func(context.Context, []string) ([][]float32, error) {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = v
		}
		return out, nil
	}
}

func TestPipeline_Reembed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, store, provider)
	doc := createDocument(t, store, "sky.txt", skyText)
	_, err := p.Run(ctx, doc.ID, skyText)
	require.NoError(t, err)
	before := namespaceSize(t, store, doc.ID)

	replacement := make([]float32, mock.Dimension)
	replacement[0] = 1
	provider.GetMockEmbedder().EmbedTextsFunc = constantVectors(replacement)

	count, err := p.Reembed(ctx, doc.ID, skyText)
	require.NoError(t, err)
	assert.Equal(t, before, count)
	assert.Equal(t, before, namespaceSize(t, store, doc.ID))

	matches, err := store.Vectors.Query(ctx, core.Namespace(doc.ID), replacement, 100)
	require.NoError(t, err)
	for _, m := range matches {
		assert.Equal(t, replacement, m.Record.Vector)
	}

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, before, got.ChunkCount)
}

func TestPipeline_ReembedRequiresCompleted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	doc := createDocument(t, store, "sky.txt", skyText)

	_, err := p.Reembed(ctx, doc.ID, skyText)
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = p.Reembed(ctx, core.ID(999), skyText)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestPipeline_ReembedChunkCountChanged(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, store, provider)
	doc := createDocument(t, store, "sky.txt", skyText)
	_, err := p.Run(ctx, doc.ID, skyText)
	require.NoError(t, err)
	before := namespaceSize(t, store, doc.ID)

	small, err := NewChunker(16, 0)
	require.NoError(t, err)
	rechunked := newTestPipeline(t, store, provider, WithChunker(small))

	_, err = rechunked.Reembed(ctx, doc.ID, skyText)
	assert.ErrorIs(t, err, ErrChunkCountChanged)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, before, namespaceSize(t, store, doc.ID))
}

func TestPipeline_ReembedUpsertFailureKeepsChunks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	provider := mock.NewMockProvider()
	doc := createDocument(t, store, "sky.txt", skyText)
	_, err := newTestPipeline(t, store, provider).Run(ctx, doc.ID, skyText)
	require.NoError(t, err)
	before := namespaceSize(t, store, doc.ID)
	require.Positive(t, before)

	index := &failingIndex{VectorIndex: store.Vectors, err: errors.New("vector store down")}
	p, err := NewPipeline(store.Documents, index, provider.Embedder(), WithRetry(1, 0))
	require.NoError(t, err)

	_, err = p.Reembed(ctx, doc.ID, skyText)
	require.ErrorIs(t, err, core.ErrProvider)

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, before, got.ChunkCount)
	assert.Equal(t, before, namespaceSize(t, store, doc.ID))
}

func TestPipeline_ReembedDocumentDeletedMidway(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	provider := mock.NewMockProvider()
	p := newTestPipeline(t, store, provider)
	doc := createDocument(t, store, "sky.txt", skyText)
	_, err := p.Run(ctx, doc.ID, skyText)
	require.NoError(t, err)

	embedding := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider.GetMockEmbedder().EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		once.Do(func() { close(embedding) })
		<-release
		return constantVectors(mock.Vector("sky"))(ctx, texts)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := p.Reembed(ctx, doc.ID, skyText)
		errc <- err
	}()

	<-embedding
	require.NoError(t, store.Documents.DeleteDocument(ctx, doc.ID, nil))
	require.NoError(t, store.Vectors.Delete(ctx, core.Namespace(doc.ID)))
	close(release)

	assert.ErrorIs(t, <-errc, core.ErrNotFound)
	assert.Zero(t, namespaceSize(t, store, doc.ID))
}
