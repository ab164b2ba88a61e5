package badger

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestDocument(t *testing.T, store *Store, name, body string) *core.Document {
	t.Helper()
	doc, err := store.Documents.CreateDocument(context.Background(), &core.Document{
		Name:     name,
		FileType: core.FileTypeText,
	}, []byte(body))
	require.NoError(t, err)
	return doc
}

func TestCreateDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := createTestDocument(t, store, "notes.txt", "The sky is blue.")
	assert.NotZero(t, doc.ID)
	assert.Equal(t, core.StatusCreated, doc.Status)
	assert.Equal(t, core.ContentHash([]byte("The sky is blue.")), doc.ContentHash)
	assert.EqualValues(t, len("The sky is blue."), doc.Size)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.ContentHash, got.ContentHash)

	raw, err := store.Documents.GetContent(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", string(raw))
}

func TestCreateDocument_Invalid(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Documents.CreateDocument(context.Background(), &core.Document{FileType: core.FileTypeText}, []byte("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestGetDocument_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Documents.GetDocument(context.Background(), 999)
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestTransitionStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")

	updated, err := store.Documents.TransitionStatus(ctx, doc.ID, core.StatusProcessing, nil)
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessing, updated.Status)

	updated, err = store.Documents.TransitionStatus(ctx, doc.ID, core.StatusProcessed, func(d *core.Document) {
		d.ChunkCount = 3
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.ChunkCount)

	processed, err := store.Documents.ListDocumentsByStatus(ctx, core.StatusProcessed)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, doc.ID, processed[0].ID)

	processing, err := store.Documents.ListDocumentsByStatus(ctx, core.StatusProcessing)
	require.NoError(t, err)
	assert.Empty(t, processing)
}

func TestTransitionStatus_IllegalEdge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")

	_, err := store.Documents.TransitionStatus(ctx, doc.ID, core.StatusCompleted, nil)
	require.ErrorIs(t, err, core.ErrConflict)

	got, err := store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCreated, got.Status)
}

func TestTransitionStatus_ConcurrentSingleWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Documents.TransitionStatus(ctx, doc.ID, core.StatusProcessing, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, core.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestListDocuments(t *testing.T) {
	store := newTestStore(t)
	first := createTestDocument(t, store, "a.txt", "alpha")
	second := createTestDocument(t, store, "b.txt", "beta")

	docs, err := store.Documents.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, first.ID, docs[0].ID)
	assert.Equal(t, second.ID, docs[1].ID)
}

func TestListDocumentsByStatus_InvalidStatus(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Documents.ListDocumentsByStatus(context.Background(), "archived")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDeleteDocument_Cascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	other := createTestDocument(t, store, "b.txt", "beta")

	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)
	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: core.RoleUser, Content: "hi"})
	require.NoError(t, err)
	otherSession, err := store.Sessions.CreateSession(ctx, other.ID)
	require.NoError(t, err)

	require.NoError(t, store.Documents.DeleteDocument(ctx, doc.ID, nil))

	_, err = store.Documents.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Documents.GetContent(ctx, doc.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.Sessions.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	msgKeys, err := store.Backend.collectKeys(makePartialMessageKey(session.ID))
	require.NoError(t, err)
	assert.Empty(t, msgKeys)

	created, err := store.Documents.ListDocumentsByStatus(ctx, core.StatusCreated)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, other.ID, created[0].ID)

	_, err = store.Sessions.GetSession(ctx, otherSession.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, store.Documents.DeleteDocument(ctx, doc.ID, nil), storage.ErrNotFound)
}

func TestDeleteDocument_GuardVetoes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	var seen core.DocumentStatus
	err = store.Documents.DeleteDocument(ctx, doc.ID, func(d *core.Document) error {
		seen = d.Status
		return core.ErrConflict
	})
	require.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, core.StatusCreated, seen)

	// A vetoed delete leaves everything in place.
	_, err = store.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	_, err = store.Documents.GetContent(ctx, doc.ID)
	require.NoError(t, err)
	_, err = store.Sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
}

func TestDeleteDocument_RacesTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Either the transition lands first and the guard sees it, or the
	// delete lands first and the transition finds no document.
	for i := 0; i < 20; i++ {
		doc := createTestDocument(t, store, "a.txt", "alpha")

		var wg sync.WaitGroup
		var deleteErr, transitionErr error
		var guarded core.DocumentStatus
		wg.Add(2)
		go func() {
			defer wg.Done()
			deleteErr = store.Documents.DeleteDocument(ctx, doc.ID, func(d *core.Document) error {
				guarded = d.Status
				if d.Status == core.StatusProcessing {
					return core.ErrConflict
				}
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_, transitionErr = store.Documents.TransitionStatus(ctx, doc.ID, core.StatusProcessing, nil)
		}()
		wg.Wait()

		got, err := store.Documents.GetDocument(ctx, doc.ID)
		if err != nil {
			require.ErrorIs(t, err, storage.ErrNotFound)
			require.NoError(t, deleteErr)
			assert.Error(t, transitionErr)
			continue
		}
		// The document survived, so the run claimed it.
		require.NoError(t, transitionErr)
		assert.Equal(t, core.StatusProcessing, got.Status)
		assert.Error(t, deleteErr)
		if guarded == core.StatusProcessing {
			assert.ErrorIs(t, deleteErr, core.ErrConflict)
		}
	}
}
