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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docchat/core"
	"github.com/poiesic/docchat/extract"
	"github.com/poiesic/docchat/ingestion"
	"github.com/poiesic/docchat/storage"
)

// DefaultReportInterval is the number of documents between progress lines.
const DefaultReportInterval = 10

// Report lists the outcome of a run.
type Report struct {
	Reembedded []core.ID
	Failed     map[core.ID]error
	Chunks     int
}

// Reembedder re-embeds every completed document in a store.
type Reembedder struct {
	docs           storage.DocumentRepository
	extractors     *extract.Registry
	pipeline       *ingestion.Pipeline
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithProgress writes progress lines to w.
// Default is io.Discard.
func WithProgress(w io.Writer) Option {
	return func(r *Reembedder) error {
		if w == nil {
			w = io.Discard
		}
		r.progress = w
		return nil
	}
}

// WithReportInterval sets how many documents pass between progress lines.
func WithReportInterval(n int) Option {
	return func(r *Reembedder) error {
		if n < 1 {
			return fmt.Errorf("report interval must be greater than 0, got %d", n)
		}
		r.reportInterval = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewReembedder creates a reembedder. The pipeline supplies the chunker,
// embedder and vector index the new vectors are built with.
func NewReembedder(
	docs storage.DocumentRepository,
	extractors *extract.Registry,
	pipeline *ingestion.Pipeline,
	opts ...Option,
) (*Reembedder, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if extractors == nil {
		return nil, ErrExtractorRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	r := &Reembedder{
		docs:           docs,
		extractors:     extractors,
		pipeline:       pipeline,
		progress:       io.Discard,
		reportInterval: DefaultReportInterval,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "reembedder")
	return r, nil
}

// Run re-embeds all completed documents. A document that fails is recorded
// in the report and skipped; its previous vectors stay in place unless the
// index failed mid-write. Only cancellation of ctx aborts the run.
func (r *Reembedder) Run(ctx context.Context) (*Report, error) {
	docs, err := r.docs.ListDocumentsByStatus(ctx, core.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	report := &Report{Failed: make(map[core.ID]error)}
	if len(docs) == 0 {
		fmt.Fprintf(r.progress, "No completed documents to re-embed\n")
		return report, nil
	}
	fmt.Fprintf(r.progress, "Re-embedding %d documents\n", len(docs))

	tracker := NewProgressTracker(r.progress, len(docs), r.reportInterval)
	tracker.Start()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		count, err := r.reembed(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			r.logger.Warn("failed to re-embed document", "document", doc.ID, "err", err)
			report.Failed[doc.ID] = err
			tracker.Done(true)
			continue
		}
		report.Reembedded = append(report.Reembedded, doc.ID)
		report.Chunks += count
		tracker.Done(false)
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Re-embedding complete. %d documents, %d chunks in %v\n",
		len(report.Reembedded), report.Chunks, elapsed.Round(time.Millisecond))
	return report, nil
}

func (r *Reembedder) reembed(ctx context.Context, doc *core.Document) (int, error) {
	raw, err := r.docs.GetContent(ctx, doc.ID)
	if err != nil {
		return 0, err
	}
	text, err := r.extractors.Extract(ctx, raw, doc.FileType)
	if err != nil {
		return 0, err
	}
	return r.pipeline.Reembed(ctx, doc.ID, text)
}
