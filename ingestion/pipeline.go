package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/docchat/ai"
	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of chunks sent per embedding call.
	DefaultBatchSize = 16

	// DefaultEmbedConcurrency bounds the embedding calls in flight per run.
	DefaultEmbedConcurrency = 4

	// DefaultMaxAttempts is the number of tries per embedding batch.
	DefaultMaxAttempts = 3

	// DefaultRetryDelay is the base backoff between embedding attempts.
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxSummaryInput is the number of characters handed to the summarizer.
	DefaultMaxSummaryInput = 8000

	// DefaultSummaryRetryDelay is the wait before the single summary retry.
	DefaultSummaryRetryDelay = 2 * time.Second
)

// Pipeline indexes one document per Run: chunk, embed, store, summarize.
// The document's status record is the only coordination between runs.
type Pipeline struct {
	docs       storage.DocumentRepository
	index      storage.VectorIndex
	embedder   ai.Embedder
	summarizer ai.Summarizer
	chunker    *Chunker

	batchSize         int
	concurrency       int
	maxAttempts       int
	retryDelay        time.Duration
	maxSummaryInput   int
	summaryRetryDelay time.Duration

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("chunker cannot be nil")
		}
		p.chunker = c
		return nil
	}
}

// WithSummarizer enables document summaries.
func WithSummarizer(s ai.Summarizer) Option {
	return func(p *Pipeline) error {
		p.summarizer = s
		return nil
	}
}

// WithBatchSize sets the number of chunks per embedding call.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.batchSize = size
		return nil
	}
}

// WithEmbedConcurrency sets how many embedding batches run at once.
func WithEmbedConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.concurrency = n
		return nil
	}
}

// WithRetry sets the attempts and base delay for embedding batches.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithSummaryLimits sets the summarizer input cap and the delay before its retry.
func WithSummaryLimits(maxInput int, retryDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxInput < 1 {
			return fmt.Errorf("summary input limit must be positive, got %d", maxInput)
		}
		p.maxSummaryInput = maxInput
		p.summaryRetryDelay = retryDelay
		return nil
	}
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	docs storage.DocumentRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		docs:              docs,
		index:             index,
		embedder:          embedder,
		chunker:           DefaultChunker(),
		batchSize:         DefaultBatchSize,
		concurrency:       DefaultEmbedConcurrency,
		maxAttempts:       DefaultMaxAttempts,
		retryDelay:        DefaultRetryDelay,
		maxSummaryInput:   DefaultMaxSummaryInput,
		summaryRetryDelay: DefaultSummaryRetryDelay,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "indexing-pipeline")
	return p, nil
}

// Run indexes a document's extracted text and returns its summary.
//
// The document must be created, or failed for an explicit re-run. Any other
// status, or a concurrent run claiming the document first, returns an error
// wrapping core.ErrConflict and leaves the document untouched. Failures after
// the document is claimed move it to failed with the cause recorded.
func (p *Pipeline) Run(ctx context.Context, documentID core.ID, text string) (string, error) {
	var previous core.DocumentStatus
	doc, err := p.docs.TransitionStatus(ctx, documentID, core.StatusProcessing, func(d *core.Document) {
		previous = d.Status
		d.Error = ""
		d.Summary = ""
		d.ChunkCount = 0
	})
	if err != nil {
		return "", err
	}

	logger := p.logger.With("document", documentID)
	logger.Info("indexing started", "name", doc.Name, "rerun", previous == core.StatusFailed)
	started := time.Now()
	namespace := core.Namespace(documentID)

	if previous == core.StatusFailed {
		if err := p.index.Delete(ctx, namespace); err != nil {
			err = fmt.Errorf("%w: clearing stale chunks: %w", core.ErrProvider, err)
			p.fail(ctx, documentID, err)
			return "", err
		}
	}

	count, err := p.indexText(ctx, doc, namespace, text)
	if err != nil {
		p.fail(ctx, documentID, err)
		return "", err
	}

	if _, err := p.docs.TransitionStatus(ctx, documentID, core.StatusProcessed, func(d *core.Document) {
		d.ChunkCount = count
	}); err != nil {
		p.fail(ctx, documentID, err)
		return "", err
	}

	summary := p.summarize(ctx, logger, text)

	// Past this point the chunks are durable; a lost completion write is
	// finished by Recover rather than discarding the index.
	if _, err := p.docs.TransitionStatus(context.WithoutCancel(ctx), documentID, core.StatusCompleted, func(d *core.Document) {
		d.Summary = summary
	}); err != nil {
		logger.Error("failed to complete document", "err", err)
		return "", err
	}

	logger.Info("indexing completed", "chunks", count, "elapsed", time.Since(started))
	return summary, nil
}

// indexText chunks, embeds and stores text, returning the chunk count.
func (p *Pipeline) indexText(ctx context.Context, doc *core.Document, namespace, text string) (int, error) {
	records, err := p.buildRecords(ctx, doc, text)
	if err != nil {
		return 0, err
	}
	if err := p.index.Upsert(ctx, namespace, records); err != nil {
		return 0, fmt.Errorf("%w: storing chunks: %w", core.ErrProvider, err)
	}
	return len(records), nil
}

// buildRecords chunks and embeds text into records ready for the index.
func (p *Pipeline) buildRecords(ctx context.Context, doc *core.Document, text string) ([]storage.VectorRecord, error) {
	texts, err := p.chunker.Chunk(text)
	if err != nil {
		return nil, fmt.Errorf("%w: chunking: %w", core.ErrValidation, err)
	}
	if len(texts) == 0 {
		return nil, core.ErrEmptyDocument
	}

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	records := make([]storage.VectorRecord, len(texts))
	for i, chunk := range texts {
		records[i] = storage.VectorRecord{
			ChunkID:    uuid.NewString(),
			DocumentID: doc.ID,
			Ordinal:    i,
			Text:       chunk,
			Vector:     vectors[i],
			Metadata: map[string]string{
				"document":  doc.Name,
				"file_type": string(doc.FileType),
				"chars":     strconv.Itoa(utf8.RuneCountInString(chunk)),
			},
		}
	}
	return records, nil
}

// embed embeds texts in concurrent batches. The first failing batch cancels the rest.
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	retry := Backoff{Attempts: p.maxAttempts, Delay: p.retryDelay}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]
		g.Go(func() error {
			err := retry.Do(gctx, p.logger, func() error {
				out, err := p.embedder.EmbedTexts(gctx, batch)
				if err != nil {
					return err
				}
				if len(out) != len(batch) {
					return fmt.Errorf("%w: sent %d texts, received %d vectors", ErrEmbeddingCount, len(batch), len(out))
				}
				copy(vectors[start:end], out)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: embedding chunks %d-%d: %w", core.ErrProvider, start, end-1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// summarize returns a summary of text, or "" if the summarizer fails twice.
func (p *Pipeline) summarize(ctx context.Context, logger *slog.Logger, text string) string {
	if p.summarizer == nil {
		return ""
	}
	input := truncateRunes(text, p.maxSummaryInput)

	var summary string
	err := Backoff{Attempts: 2, Delay: p.summaryRetryDelay}.Do(ctx, logger, func() error {
		var err error
		summary, err = p.summarizer.Summarize(ctx, input)
		return err
	})
	if err != nil {
		logger.Warn("summary skipped", "err", err)
		return ""
	}
	return summary
}

// fail records cause on the document and removes any partial chunks.
// It runs detached from ctx so a cancelled caller still resolves the document.
func (p *Pipeline) fail(ctx context.Context, documentID core.ID, cause error) {
	ctx = context.WithoutCancel(ctx)
	logger := p.logger.With("document", documentID)
	logger.Error("indexing failed", "err", cause)

	if err := p.index.Delete(ctx, core.Namespace(documentID)); err != nil {
		logger.Warn("failed to remove partial chunks", "err", err)
	}
	if _, err := p.docs.TransitionStatus(ctx, documentID, core.StatusFailed, func(d *core.Document) {
		d.Error = cause.Error()
		d.ChunkCount = 0
	}); err != nil {
		logger.Error("failed to record indexing failure", "err", err)
	}
}

// Reject moves a document that never reached the pipeline, for example
// because its content could not be extracted, to failed. A failed document
// on an explicit re-run is claimed first so its Error holds the new cause.
func (p *Pipeline) Reject(ctx context.Context, documentID core.ID, cause error) error {
	ctx = context.WithoutCancel(ctx)
	record := func(d *core.Document) {
		d.Error = cause.Error()
	}

	_, err := p.docs.TransitionStatus(ctx, documentID, core.StatusFailed, record)
	if errors.Is(err, core.ErrConflict) {
		doc, getErr := p.docs.GetDocument(ctx, documentID)
		if getErr != nil {
			return getErr
		}
		if doc.Status != core.StatusFailed {
			return err
		}
		if _, err = p.docs.TransitionStatus(ctx, documentID, core.StatusProcessing, nil); err == nil {
			_, err = p.docs.TransitionStatus(ctx, documentID, core.StatusFailed, record)
		}
	}
	if err != nil {
		return err
	}
	p.logger.Warn("document rejected", "document", documentID, "err", cause)
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
