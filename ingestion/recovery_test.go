package ingestion

import (
	"context"
	"testing"

	"github.com/poiesic/docchat/ai/mock"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_ResolvesTransientDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())

	// Interrupted mid-indexing with a partial write.
	interrupted := createDocument(t, store, "interrupted.txt", skyText)
	_, err := store.Documents.TransitionStatus(ctx, interrupted.ID, core.StatusProcessing, nil)
	require.NoError(t, err)
	require.NoError(t, store.Vectors.Upsert(ctx, core.Namespace(interrupted.ID), []storage.VectorRecord{
		{ChunkID: "partial", DocumentID: interrupted.ID, Text: "partial", Vector: mock.Vector("partial")},
	}))

	// Indexed but never marked completed.
	indexed := createDocument(t, store, "indexed.txt", skyText)
	_, err = store.Documents.TransitionStatus(ctx, indexed.ID, core.StatusProcessing, nil)
	require.NoError(t, err)
	_, err = store.Documents.TransitionStatus(ctx, indexed.ID, core.StatusProcessed, func(d *core.Document) {
		d.ChunkCount = 1
	})
	require.NoError(t, err)

	untouched := createDocument(t, store, "new.txt", skyText)

	report, err := p.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{interrupted.ID}, report.Failed)
	assert.Equal(t, []core.ID{indexed.ID}, report.Completed)

	got, err := store.Documents.GetDocument(ctx, interrupted.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, InterruptedMessage, got.Error)
	assert.Zero(t, namespaceSize(t, store, interrupted.ID))

	got, err = store.Documents.GetDocument(ctx, indexed.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.ChunkCount)

	got, err = store.Documents.GetDocument(ctx, untouched.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCreated, got.Status)

	// Nothing left to do on a second pass.
	report, err = p.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.Completed)
}

func TestRecover_FailedDocumentCanRerun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())

	doc := createDocument(t, store, "sky.txt", skyText)
	_, err := store.Documents.TransitionStatus(ctx, doc.ID, core.StatusProcessing, nil)
	require.NoError(t, err)

	_, err = p.Recover(ctx)
	require.NoError(t, err)

	_, err = p.Run(ctx, doc.ID, skyText)
	require.NoError(t, err)

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
}
