// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docchat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/ai/openai"
	"github.com/poiesic/docchat/chat"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/extract"
	"github.com/poiesic/docchat/ingestion"
	"github.com/poiesic/docchat/reembed"
	"github.com/poiesic/docchat/storage"
	"github.com/poiesic/docchat/storage/badger"
	"github.com/poiesic/docchat/tools"
	"github.com/poiesic/docchat/vector/qdrant"
)

// DefaultMaxFileSize is the largest upload accepted.
const DefaultMaxFileSize = 10 << 20

// Service ties document storage, background indexing and chat together.
type Service struct {
	store      *badger.Store
	index      storage.VectorIndex
	providers  *ai.Registry
	extractors *extract.Registry
	pipeline   *ingestion.Pipeline
	queue      *ingestion.Queue
	tools      *tools.Registry
	chat       *chat.Orchestrator

	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Service.
type Option func(*options)

type options struct {
	inMemory      bool
	aiConfig      *ai.Config
	providers     []ai.AIProvider
	qdrant        *qdrant.Config
	pipelineOpts  []ingestion.Option
	workers       int
	maxFileSize   int64
	defaultTopK   int
	searchOpts    []tools.WebSearchOption
	monitor       chat.Monitor
	logger        *slog.Logger
	resumePending bool
}

// WithInMemory keeps all state in memory. The path passed to Open is ignored.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// WithAIConfig configures the default OpenAI-compatible provider.
// Ignored when providers are set with WithProviders.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *options) { o.aiConfig = cfg }
}

// WithProviders registers AI providers. The first is the default and serves
// embeddings and summaries for indexing.
func WithProviders(providers ...ai.AIProvider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// WithQdrant stores chunk vectors in Qdrant instead of the local store.
func WithQdrant(cfg qdrant.Config) Option {
	return func(o *options) { o.qdrant = &cfg }
}

// WithPipelineOptions tunes the indexing pipeline.
func WithPipelineOptions(opts ...ingestion.Option) Option {
	return func(o *options) { o.pipelineOpts = append(o.pipelineOpts, opts...) }
}

// WithWorkers sets the number of documents indexed at once.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithMaxFileSize sets the upload size limit in bytes.
func WithMaxFileSize(n int64) Option {
	return func(o *options) { o.maxFileSize = n }
}

// WithDefaultTopK sets how many chunks retrieval returns by default.
func WithDefaultTopK(k int) Option {
	return func(o *options) { o.defaultTopK = k }
}

// WithWebSearchOptions configures the web search tool.
func WithWebSearchOptions(opts ...tools.WebSearchOption) Option {
	return func(o *options) { o.searchOpts = append(o.searchOpts, opts...) }
}

// WithChatMonitor observes every chat turn.
func WithChatMonitor(m chat.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithoutResume leaves documents still in created status alone at Open
// instead of queueing them.
func WithoutResume() Option {
	return func(o *options) { o.resumePending = false }
}

// Open opens or creates the store at path, resolves documents a previous
// process left mid-indexing and starts the indexing queue.
func Open(path string, opts ...Option) (*Service, error) {
	o := &options{
		maxFileSize:   DefaultMaxFileSize,
		defaultTopK:   tools.DefaultTopK,
		logger:        slog.Default(),
		resumePending: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With("component", "docchat")

	store, err := badger.OpenStore(path, o.inMemory)
	if err != nil {
		return nil, err
	}
	s := &Service{
		store:       store,
		extractors:  extract.NewRegistry(),
		maxFileSize: o.maxFileSize,
		logger:      logger,
	}
	if err := s.init(o); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init(o *options) error {
	providers := o.providers
	if len(providers) == 0 {
		cfg := o.aiConfig
		if cfg == nil {
			cfg = ai.DefaultConfig()
		}
		provider, err := openai.NewProvider(openai.DefaultID, cfg)
		if err != nil {
			return err
		}
		providers = []ai.AIProvider{provider}
	}
	registry, err := ai.NewRegistry(providers...)
	if err != nil {
		return err
	}
	s.providers = registry
	provider := registry.Default()

	s.index = s.store.Vectors
	if o.qdrant != nil {
		index, err := qdrant.New(*o.qdrant, qdrant.WithLogger(o.logger))
		if err != nil {
			return err
		}
		s.index = index
	}

	pipelineOpts := append([]ingestion.Option{
		ingestion.WithSummarizer(provider.Summarizer()),
		ingestion.WithLogger(o.logger),
	}, o.pipelineOpts...)
	s.pipeline, err = ingestion.NewPipeline(s.store.Documents, s.index, provider.Embedder(), pipelineOpts...)
	if err != nil {
		return err
	}

	if _, err := s.pipeline.Recover(context.Background()); err != nil {
		return fmt.Errorf("recovering documents: %w", err)
	}

	queueOpts := []ingestion.QueueOption{ingestion.WithQueueLogger(o.logger)}
	if o.workers > 0 {
		queueOpts = append(queueOpts, ingestion.WithWorkers(o.workers))
	}
	s.queue, err = ingestion.NewQueue(s.pipeline, s.store.Documents, s.extractors, queueOpts...)
	if err != nil {
		return err
	}

	retrieve, err := tools.NewRetrieveTool(provider.Embedder(), s.index,
		tools.WithDefaultTopK(o.defaultTopK), tools.WithRetrieveLogger(o.logger))
	if err != nil {
		return err
	}
	search, err := tools.NewWebSearchTool(append([]tools.WebSearchOption{tools.WithSearchLogger(o.logger)}, o.searchOpts...)...)
	if err != nil {
		return err
	}
	s.tools, err = tools.NewRegistry(retrieve, search, tools.DeepThinkTool{})
	if err != nil {
		return err
	}

	s.chat, err = chat.NewOrchestrator(s.store.Sessions, s.store.Documents, s.tools, s.providers,
		chat.WithLogger(o.logger), chat.WithMonitor(o.monitor))
	if err != nil {
		return err
	}

	if o.resumePending {
		return s.resumePending()
	}
	return nil
}

// resumePending queues uploads that were stored but never indexed.
func (s *Service) resumePending() error {
	pending, err := s.store.Documents.ListDocumentsByStatus(context.Background(), core.StatusCreated)
	if err != nil {
		return err
	}
	for _, doc := range pending {
		if err := s.queue.Enqueue(doc.ID); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		s.logger.Info("resumed pending documents", "count", len(pending))
	}
	return nil
}

// UploadDocument stores a document and queues it for indexing. It returns as
// soon as the document is stored in the created status.
func (s *Service) UploadDocument(ctx context.Context, name string, raw []byte) (*core.Document, error) {
	name = strings.TrimSpace(name)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, name)
	}
	if int64(len(raw)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, name, len(raw), s.maxFileSize)
	}
	fileType, err := extract.DetectFileType(name)
	if err != nil {
		return nil, err
	}
	if !s.extractors.Supports(fileType) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, fileType)
	}

	doc, err := s.store.Documents.CreateDocument(ctx, &core.Document{Name: name, FileType: fileType}, raw)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded", "document", doc.ID, "name", doc.Name, "size", doc.Size)

	if err := s.queue.Enqueue(doc.ID); err != nil {
		return doc, err
	}
	return doc, nil
}

// Reindex queues another indexing run for a failed document.
func (s *Service) Reindex(ctx context.Context, id core.ID) error {
	doc, err := s.store.Documents.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != core.StatusFailed {
		return fmt.Errorf("%w: document %d is %s, only failed documents can be re-indexed",
			core.ErrConflict, id, doc.Status)
	}
	return s.queue.Enqueue(id)
}

// Reembed rebuilds the vectors of every completed document with the default
// provider's current embedder. Run it after changing the embedding model.
func (s *Service) Reembed(ctx context.Context, progress io.Writer) (*reembed.Report, error) {
	r, err := reembed.NewReembedder(s.store.Documents, s.extractors, s.pipeline,
		reembed.WithProgress(progress))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// DeleteDocument removes a document with its content, sessions, messages and chunks.
// A document being indexed cannot be deleted.
//
// The record is removed before the chunks. A writer that is still running
// either fails to move the removed document or, like Reembed, checks for it
// after writing and drops its own chunks.
func (s *Service) DeleteDocument(ctx context.Context, id core.ID) error {
	err := s.store.Documents.DeleteDocument(ctx, id, func(doc *core.Document) error {
		if doc.Status == core.StatusProcessing || doc.Status == core.StatusProcessed {
			return fmt.Errorf("%w: document %d is %s", core.ErrConflict, id, doc.Status)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.index.Delete(context.WithoutCancel(ctx), core.Namespace(id)); err != nil {
		s.logger.Error("document deleted but its chunks remain", "document", id, "err", err)
		return fmt.Errorf("%w: deleting chunks: %w", core.ErrProvider, err)
	}
	s.logger.Info("document deleted", "document", id)
	return nil
}

// GetDocument returns a document by ID.
func (s *Service) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	return s.store.Documents.GetDocument(ctx, id)
}

// ListDocuments returns every document ordered by ID.
func (s *Service) ListDocuments(ctx context.Context) ([]*core.Document, error) {
	return s.store.Documents.ListDocuments(ctx)
}

// GetContent returns the raw bytes of a document.
func (s *Service) GetContent(ctx context.Context, id core.ID) ([]byte, error) {
	return s.store.Documents.GetContent(ctx, id)
}

// CreateSession opens a chat session about a document.
func (s *Service) CreateSession(ctx context.Context, documentID core.ID) (*core.Session, error) {
	return s.store.Sessions.CreateSession(ctx, documentID)
}

// ListSessions returns the sessions of a document.
func (s *Service) ListSessions(ctx context.Context, documentID core.ID) ([]*core.Session, error) {
	return s.store.Sessions.ListSessions(ctx, documentID)
}

// ListMessages returns the history of a session in sequence order.
func (s *Service) ListMessages(ctx context.Context, sessionID core.ID) ([]*core.Message, error) {
	return s.store.Sessions.ListMessages(ctx, sessionID)
}

// StreamReply runs one chat turn. A request without a model uses the
// selected provider's default model.
func (s *Service) StreamReply(ctx context.Context, req chat.Request) (<-chan chat.Event, error) {
	if strings.TrimSpace(req.ModelName) == "" {
		provider, err := s.providers.Get(req.ProviderID)
		if err != nil {
			return nil, err
		}
		req.ModelName = provider.DefaultChatModel()
	}
	return s.chat.StreamReply(ctx, req)
}

// Tools returns every available tool.
func (s *Service) Tools() []tools.Tool {
	return s.tools.All()
}

// Providers returns the registered provider IDs, default first.
func (s *Service) Providers() []string {
	return s.providers.IDs()
}

// Wait blocks until all queued indexing work has finished.
func (s *Service) Wait() {
	s.queue.Wait()
}

// Close stops indexing and releases every resource. Runs still in flight are
// cancelled and their documents recorded as failed.
func (s *Service) Close() error {
	if s.queue != nil {
		s.queue.Release()
	}
	var errs []error
	if s.providers != nil {
		if err := s.providers.Close(); err != nil {
			s.logger.Error("error closing AI providers", "err", err)
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
