package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/docchat/core"
)

// Reembed replaces the vectors of a completed document with ones from the
// pipeline's current embedder. The document record is not modified.
//
// The text is chunked again and must yield the same number of chunks the
// document was completed with, otherwise ErrChunkCountChanged is returned and
// the index is left untouched. The new vectors must also keep the dimension
// the namespace was written with. Documents in any other status return an error
// wrapping core.ErrConflict. A document deleted while its vectors were being
// written returns core.ErrNotFound and leaves no chunks behind.
func (p *Pipeline) Reembed(ctx context.Context, documentID core.ID, text string) (int, error) {
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if doc.Status != core.StatusCompleted {
		return 0, fmt.Errorf("%w: document %d is %s, only completed documents can be re-embedded",
			core.ErrConflict, documentID, doc.Status)
	}

	started := time.Now()
	records, err := p.buildRecords(ctx, doc, text)
	if err != nil {
		return 0, err
	}
	if len(records) != doc.ChunkCount {
		return 0, fmt.Errorf("%w: document %d has %d chunks, re-chunking produced %d",
			ErrChunkCountChanged, documentID, doc.ChunkCount, len(records))
	}

	// Records are keyed by ordinal and the count is unchanged, so the upsert
	// overwrites every old vector in place. A failed upsert leaves the
	// document completed with the same number of chunks.
	namespace := core.Namespace(documentID)
	if err := p.index.Upsert(ctx, namespace, records); err != nil {
		return 0, fmt.Errorf("%w: storing chunks: %w", core.ErrProvider, err)
	}

	// A delete that ran during the upsert has already dropped the namespace
	// and would miss what was written after it.
	if _, err := p.docs.GetDocument(context.WithoutCancel(ctx), documentID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			if delErr := p.index.Delete(context.WithoutCancel(ctx), namespace); delErr != nil {
				p.logger.Error("failed to drop chunks of deleted document", "document", documentID, "err", delErr)
			}
		}
		return 0, err
	}

	p.logger.Info("document re-embedded", "document", documentID,
		"chunks", len(records), "elapsed", time.Since(started))
	return len(records), nil
}
