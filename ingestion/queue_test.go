package ingestion

import (
	"context"
	"testing"

	"github.com/poiesic/docchat/ai/mock"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQueue_RequiresDependencies(t *testing.T) {
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())

	_, err := NewQueue(nil, store.Documents, extract.NewRegistry())
	assert.ErrorIs(t, err, ErrPipelineRequired)

	_, err = NewQueue(p, nil, extract.NewRegistry())
	assert.ErrorIs(t, err, ErrDocumentRepositoryRequired)

	_, err = NewQueue(p, store.Documents, nil)
	assert.ErrorIs(t, err, ErrExtractorRequired)
}

func TestQueue_IndexesDocuments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	q, err := NewQueue(p, store.Documents, extract.NewRegistry(), WithWorkers(2))
	require.NoError(t, err)
	defer q.Release()

	var ids []core.ID
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		doc := createDocument(t, store, name, skyText)
		require.NoError(t, q.Enqueue(doc.ID))
		ids = append(ids, doc.ID)
	}
	q.Wait()

	for _, id := range ids {
		got, err := store.Documents.GetDocument(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusCompleted, got.Status, "document %d", id)
		assert.Equal(t, 1, got.ChunkCount)
	}
}

func TestQueue_ExtractionFailureRejects(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	q, err := NewQueue(p, store.Documents, extract.NewRegistry(), WithWorkers(1))
	require.NoError(t, err)
	defer q.Release()

	doc := createDocument(t, store, "broken.txt", "\xff\xfe not utf-8")
	require.NoError(t, q.Enqueue(doc.ID))
	q.Wait()

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestQueue_RerunExtractionFailureUpdatesError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	q, err := NewQueue(p, store.Documents, extract.NewRegistry(), WithWorkers(1))
	require.NoError(t, err)
	defer q.Release()

	doc := createDocument(t, store, "broken.txt", "\xff\xfe not utf-8")
	_, err = store.Documents.TransitionStatus(ctx, doc.ID, core.StatusFailed, func(d *core.Document) {
		d.Error = "embedding provider unavailable"
	})
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(doc.ID))
	q.Wait()

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.NotEqual(t, "embedding provider unavailable", got.Error)
}

func TestQueue_EmptyExtractionFails(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	q, err := NewQueue(p, store.Documents, extract.NewRegistry(), WithWorkers(1))
	require.NoError(t, err)
	defer q.Release()

	doc, err := store.Documents.CreateDocument(ctx, &core.Document{
		Name:     "scripts.html",
		FileType: core.FileTypeHTML,
	}, []byte("<html><script>var x = 1;</script></html>"))
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(doc.ID))
	q.Wait()

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Contains(t, got.Error, core.ErrEmptyDocument.Error())
}

func TestQueue_EnqueueAfterRelease(t *testing.T) {
	store := newTestStore(t)
	p := newTestPipeline(t, store, mock.NewMockProvider())
	q, err := NewQueue(p, store.Documents, extract.NewRegistry())
	require.NoError(t, err)

	q.Release()
	assert.ErrorIs(t, q.Enqueue(1), ErrQueueClosed)
}
