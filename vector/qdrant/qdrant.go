// Package qdrant implements storage.VectorIndex against a Qdrant server over
// its REST API. One collection holds every namespace; namespaces are kept
// apart by a payload filter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
)

const (
	defaultCollection = "docchat"
	defaultTimeout    = 15 * time.Second

	payloadNamespace = "namespace"
	payloadDocument  = "document_id"
	payloadChunkID   = "chunk_id"
	payloadOrdinal   = "ordinal"
	payloadText      = "text"
	payloadMetaKey   = "metadata"
)

// pointSpace derives stable point IDs from namespace and ordinal so an upsert
// of the same chunk replaces the previous point.
var pointSpace = uuid.MustParse("6f1c7a52-3b0e-4d5e-9a57-0c2b8f3e6d41")

var (
	// ErrURLRequired is returned when no server URL is configured.
	ErrURLRequired = errors.New("qdrant url is required")
)

// Config configures the Qdrant client.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Index is a storage.VectorIndex backed by a Qdrant collection.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	dimension int
}

var _ storage.VectorIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		i.logger = logger
		return nil
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Index) error {
		i.client = client
		return nil
	}
}

// New creates an Index. The collection is created on the first upsert.
func New(cfg Config, opts ...Option) (*Index, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = defaultCollection
	}

	idx := &Index{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "qdrant"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// PointID returns the Qdrant point ID of a chunk.
func PointID(namespace string, ordinal int) string {
	return uuid.NewSHA1(pointSpace, []byte(namespace+"/"+strconv.Itoa(ordinal))).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes records into a namespace, replacing points with the same ordinal.
func (i *Index) Upsert(ctx context.Context, namespace string, records []storage.VectorRecord) error {
	if namespace == "" {
		return fmt.Errorf("%w: empty namespace", storage.ErrInvalidQuery)
	}
	if len(records) == 0 {
		return nil
	}
	dim := len(records[0].Vector)
	for _, rec := range records {
		if len(rec.Vector) == 0 || len(rec.Vector) != dim {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				storage.ErrDimensionMismatch, rec.Ordinal, len(rec.Vector), dim)
		}
	}
	if err := i.ensureCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]point, len(records))
	for n, rec := range records {
		payload := map[string]any{
			payloadNamespace: namespace,
			payloadDocument:  rec.DocumentID.String(),
			payloadChunkID:   rec.ChunkID,
			payloadOrdinal:   rec.Ordinal,
			payloadText:      rec.Text,
		}
		if len(rec.Metadata) > 0 {
			payload[payloadMetaKey] = rec.Metadata
		}
		points[n] = point{ID: PointID(namespace, rec.Ordinal), Vector: rec.Vector, Payload: payload}
	}

	body := map[string]any{"points": points}
	return i.do(ctx, http.MethodPut, i.collectionURL("/points?wait=true"), body, nil)
}

// Query returns the topK records of the namespace closest to vector.
func (i *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]storage.VectorMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidQuery, topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	// Over-fetch so equal scores at the cut can be re-ranked by ordinal.
	req := map[string]any{
		"vector":       vector,
		"limit":        topK * 2,
		"with_payload": true,
		"filter":       namespaceFilter(namespace),
	}
	var resp struct {
		Result []struct {
			Score   float32 `json:"score"`
			Payload struct {
				DocumentID string            `json:"document_id"`
				ChunkID    string            `json:"chunk_id"`
				Ordinal    int               `json:"ordinal"`
				Text       string            `json:"text"`
				Metadata   map[string]string `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	err := i.do(ctx, http.MethodPost, i.collectionURL("/points/search"), req, &resp)
	if isMissingCollection(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	matches := make([]storage.VectorMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		docID, _ := core.ParseID(r.Payload.DocumentID)
		matches = append(matches, storage.VectorMatch{
			Record: storage.VectorRecord{
				ChunkID:    r.Payload.ChunkID,
				DocumentID: docID,
				Ordinal:    r.Payload.Ordinal,
				Text:       r.Payload.Text,
				Metadata:   r.Payload.Metadata,
			},
			Score: r.Score,
		})
	}
	return storage.TopK(matches, topK), nil
}

// Delete removes every point of the namespace.
func (i *Index) Delete(ctx context.Context, namespace string) error {
	body := map[string]any{"filter": namespaceFilter(namespace)}
	err := i.do(ctx, http.MethodPost, i.collectionURL("/points/delete?wait=true"), body, nil)
	if isMissingCollection(err) {
		return nil
	}
	return err
}

// ensureCollection creates the collection with cosine distance once per process.
func (i *Index) ensureCollection(ctx context.Context, dimension int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dimension != 0 {
		if i.dimension != dimension {
			return fmt.Errorf("%w: collection %s uses %d dimensions, got %d",
				storage.ErrDimensionMismatch, i.collection, i.dimension, dimension)
		}
		return nil
	}

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	err := i.do(ctx, http.MethodGet, i.collectionURL(""), nil, &info)
	switch {
	case err == nil:
		size := info.Result.Config.Params.Vectors.Size
		if size != 0 && size != dimension {
			return fmt.Errorf("%w: collection %s uses %d dimensions, got %d",
				storage.ErrDimensionMismatch, i.collection, size, dimension)
		}
	case isMissingCollection(err):
		body := map[string]any{
			"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
		}
		if err := i.do(ctx, http.MethodPut, i.collectionURL(""), body, nil); err != nil {
			return err
		}
		i.logger.Info("created collection", "collection", i.collection, "dimension", dimension)
	default:
		return err
	}

	i.dimension = dimension
	return nil
}

func (i *Index) collectionURL(suffix string) string {
	return i.url + "/collections/" + i.collection + suffix
}

func namespaceFilter(namespace string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": payloadNamespace, "match": map[string]any{"value": namespace}},
		},
	}
}

// statusError is a non-2xx reply from the server.
type statusError struct {
	method string
	url    string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.url, e.code, e.body)
}

func isMissingCollection(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (i *Index) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %w", core.ErrProvider, &statusError{
			method: method, url: url, code: resp.StatusCode, body: strings.TrimSpace(string(msg)),
		})
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding qdrant response: %w", core.ErrProvider, err)
		}
	}
	return nil
}
