package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/extract"
)

// ContentSource provides the stored document and raw bytes a queued run needs.
type ContentSource interface {
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)
	GetContent(ctx context.Context, id core.ID) ([]byte, error)
}

// Queue runs indexing in the background on a bounded worker pool.
// Uploads return as soon as the document is enqueued.
type Queue struct {
	pipeline   *Pipeline
	source     ContentSource
	extractors *extract.Registry
	pool       *ants.Pool
	poolSize   int
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// ctx outlives enqueuing requests and is cancelled by Release.
	ctx    context.Context
	cancel context.CancelFunc
}

// QueueOption configures a Queue.
type QueueOption func(*Queue) error

// WithWorkers sets the number of documents indexed at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(size int) QueueOption {
	return func(q *Queue) error {
		if size < 1 {
			size = 1
		}
		q.poolSize = size
		return nil
	}
}

// WithQueueLogger sets a custom logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// NewQueue creates an indexing queue.
func NewQueue(pipeline *Pipeline, source ContentSource, extractors *extract.Registry, opts ...QueueOption) (*Queue, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if source == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if extractors == nil {
		return nil, ErrExtractorRequired
	}

	q := &Queue{
		pipeline:   pipeline,
		source:     source,
		extractors: extractors,
		poolSize:   max(runtime.NumCPU()/2, 1),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(q.poolSize)
	if err != nil {
		return nil, err
	}
	q.pool = pool
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.logger = q.logger.With("component", "indexing-queue")
	return q, nil
}

// Enqueue schedules a document for indexing. The caller's context is not
// carried into the run.
func (q *Queue) Enqueue(id core.ID) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.wg.Add(1)
	q.mu.Unlock()

	err := q.pool.Submit(func() {
		defer q.wg.Done()
		q.process(q.ctx, id)
	})
	if err != nil {
		q.wg.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrQueueClosed
		}
		return err
	}
	q.logger.Debug("document enqueued", "document", id)
	return nil
}

// process extracts a document's text and runs the pipeline on it.
func (q *Queue) process(ctx context.Context, id core.ID) {
	logger := q.logger.With("document", id)

	doc, err := q.source.GetDocument(ctx, id)
	if err != nil {
		logger.Error("failed to load document", "err", err)
		return
	}
	raw, err := q.source.GetContent(ctx, id)
	if err != nil {
		logger.Error("failed to load content", "err", err)
		if rejectErr := q.pipeline.Reject(ctx, id, err); rejectErr != nil {
			logger.Error("failed to reject document", "err", rejectErr)
		}
		return
	}
	text, err := q.extractors.Extract(ctx, raw, doc.FileType)
	if err != nil {
		if rejectErr := q.pipeline.Reject(ctx, id, err); rejectErr != nil {
			logger.Error("failed to reject document", "err", rejectErr)
		}
		return
	}

	// Errors are recorded on the document by the pipeline.
	if _, err := q.pipeline.Run(ctx, id, text); err != nil {
		logger.Debug("indexing run ended with error", "err", err)
	}
}

// Wait blocks until every enqueued document has been processed.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Running returns the number of documents currently being indexed.
func (q *Queue) Running() int {
	return q.pool.Running()
}

// Release cancels in-flight runs, waits for them to record their outcome and
// stops the pool. Cancelled runs leave their documents failed.
func (q *Queue) Release() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.pool.Release()
}
