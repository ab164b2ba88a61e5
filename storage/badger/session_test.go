package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")

	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotZero(t, session.ID)
	assert.Equal(t, doc.ID, session.DocumentID)

	got, err := store.Sessions.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.DocumentID, got.DocumentID)

	sessions, err := store.Sessions.ListSessions(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
}

func TestCreateSession_UnknownDocument(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Sessions.CreateSession(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAppendMessage_Sequences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	user, err := store.Sessions.AppendMessage(ctx, &core.Message{
		SessionID: session.ID, Role: core.RoleUser, Content: "What color is the sky?",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, user.Sequence)
	assert.NotZero(t, user.ID)

	agent, err := store.Sessions.AppendMessage(ctx, &core.Message{
		SessionID:  session.ID,
		Role:       core.RoleAgent,
		Content:    "Blue.",
		ProviderID: "mock",
		ModelName:  "mock-chat",
		ToolIDs:    []string{"retrieve"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, agent.Sequence)

	messages, err := store.Sessions.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, core.RoleUser, messages[0].Role)
	assert.Equal(t, "Blue.", messages[1].Content)
	assert.Equal(t, []string{"retrieve"}, messages[1].ToolIDs)
	assert.Equal(t, "mock", messages[1].ProviderID)
}

func TestAppendMessage_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: core.RoleUser, Content: "  "})
	assert.ErrorIs(t, err, core.ErrEmptyContent)

	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: "system", Content: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: 777, Role: core.RoleUser, Content: "x"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	messages, err := store.Sessions.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAppendMessage_ConcurrentGapFree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	const writers = 32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Sessions.AppendMessage(ctx, &core.Message{
				SessionID: session.ID,
				Role:      core.RoleUser,
				Content:   fmt.Sprintf("message %d", i),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	messages, err := store.Sessions.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, writers)
	for i, msg := range messages {
		assert.EqualValues(t, i+1, msg.Sequence)
	}
}

func TestAppendMessage_SessionsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	first, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)
	second, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	for range 3 {
		_, err := store.Sessions.AppendMessage(ctx, &core.Message{SessionID: first.ID, Role: core.RoleUser, Content: "a"})
		require.NoError(t, err)
	}
	msg, err := store.Sessions.AppendMessage(ctx, &core.Message{SessionID: second.ID, Role: core.RoleUser, Content: "b"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, msg.Sequence)
}

func TestListMessages_DetectsGap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	for range 3 {
		_, err := store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: core.RoleUser, Content: "x"})
		require.NoError(t, err)
	}

	// Corrupt the history by removing the middle message.
	err = store.Backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeMessageKey(session.ID, 2)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	_, err = store.Sessions.ListMessages(ctx, session.ID)
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}

func TestAppendMessage_DetectsCounterCorruption(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := createTestDocument(t, store, "a.txt", "alpha")
	session, err := store.Sessions.CreateSession(ctx, doc.ID)
	require.NoError(t, err)

	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: core.RoleUser, Content: "x"})
	require.NoError(t, err)

	err = store.Backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeMessageKey(session.ID, 1)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	_, err = store.Sessions.AppendMessage(ctx, &core.Message{SessionID: session.ID, Role: core.RoleAgent, Content: "y"})
	assert.ErrorIs(t, err, core.ErrInvariantViolation)
}
