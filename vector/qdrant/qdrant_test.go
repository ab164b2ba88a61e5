package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal in-memory stand-in for the Qdrant REST API.
type fakeServer struct {
	mu        sync.Mutex
	created   bool
	dimension int
	points    map[string]point
	apiKeys   []string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fake := &fakeServer{points: map[string]point{}}
	srv := httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(srv.Close)
	return fake, srv
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	path := strings.TrimPrefix(r.URL.Path, "/collections/docchat")
	switch {
	case path == "" && r.Method == http.MethodGet:
		if !f.created {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"config": map[string]any{
			"params": map[string]any{"vectors": map[string]any{"size": f.dimension}},
		}}})
	case path == "" && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Size int `json:"size"`
			} `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.created = true
		f.dimension = body.Vectors.Size
		writeJSON(w, map[string]any{"result": true})
	case !f.created:
		http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
	case path == "/points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case path == "/points/search":
		var body struct {
			Vector []float32      `json:"vector"`
			Limit  int            `json:"limit"`
			Filter map[string]any `json:"filter"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		ns := filterNamespace(body.Filter)
		var results []map[string]any
		for _, p := range f.points {
			if p.Payload[payloadNamespace] != ns {
				continue
			}
			results = append(results, map[string]any{
				"id":      p.ID,
				"score":   storage.CosineSimilarity(body.Vector, p.Vector),
				"payload": p.Payload,
			})
		}
		writeJSON(w, map[string]any{"result": results})
	case path == "/points/delete":
		var body struct {
			Filter map[string]any `json:"filter"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		ns := filterNamespace(body.Filter)
		for id, p := range f.points {
			if p.Payload[payloadNamespace] == ns {
				delete(f.points, id)
			}
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	default:
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func filterNamespace(filter map[string]any) string {
	must, _ := filter["must"].([]any)
	if len(must) == 0 {
		return ""
	}
	cond, _ := must[0].(map[string]any)
	match, _ := cond["match"].(map[string]any)
	ns, _ := match["value"].(string)
	return ns
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func records(docID core.ID, vectors ...[]float32) []storage.VectorRecord {
	out := make([]storage.VectorRecord, len(vectors))
	for i, v := range vectors {
		out[i] = storage.VectorRecord{
			ChunkID:    core.Namespace(docID) + "-" + string(rune('a'+i)),
			DocumentID: docID,
			Ordinal:    i,
			Text:       "chunk " + string(rune('a'+i)),
			Vector:     v,
		}
	}
	return out
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestIndex_UpsertQueryDelete(t *testing.T) {
	fake, srv := newFakeServer(t)
	idx, err := New(Config{URL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc-1", records(1, []float32{1, 0}, []float32{0, 1}, []float32{1, 0})))
	require.NoError(t, idx.Upsert(ctx, "doc-2", records(2, []float32{1, 0})))
	assert.Equal(t, 2, fake.dimension)
	assert.Len(t, fake.points, 4)

	matches, err := idx.Query(ctx, "doc-1", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Record.Ordinal)
	assert.Equal(t, 2, matches[1].Record.Ordinal)
	assert.Equal(t, core.ID(1), matches[0].Record.DocumentID)
	assert.Equal(t, "chunk a", matches[0].Record.Text)

	require.NoError(t, idx.Delete(ctx, "doc-1"))
	matches, err = idx.Query(ctx, "doc-1", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Query(ctx, "doc-2", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	for _, key := range fake.apiKeys {
		assert.Equal(t, "secret", key)
	}
}

func TestIndex_UpsertSameOrdinalReplaces(t *testing.T) {
	fake, srv := newFakeServer(t)
	idx, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc-1", records(1, []float32{1, 0})))
	require.NoError(t, idx.Upsert(ctx, "doc-1", records(1, []float32{0, 1})))
	assert.Len(t, fake.points, 1)
	assert.Equal(t, PointID("doc-1", 0), PointID("doc-1", 0))
	assert.NotEqual(t, PointID("doc-1", 0), PointID("doc-2", 0))
}

func TestIndex_MissingCollection(t *testing.T) {
	_, srv := newFakeServer(t)
	idx, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	matches, err := idx.Query(ctx, "doc-1", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NoError(t, idx.Delete(ctx, "doc-1"))
}

func TestIndex_Validation(t *testing.T) {
	_, srv := newFakeServer(t)
	idx, err := New(Config{URL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = idx.Query(ctx, "doc-1", []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	err = idx.Upsert(ctx, "doc-1", records(1, []float32{1, 0}, []float32{1}))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	require.NoError(t, idx.Upsert(ctx, "doc-1", records(1, []float32{1, 0})))
	err = idx.Upsert(ctx, "doc-2", records(2, []float32{1, 0, 0}))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestIndex_ServerErrorIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	idx, err := New(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), "doc-1", []float32{1, 0}, 3)
	assert.ErrorIs(t, err, core.ErrProvider)
}
