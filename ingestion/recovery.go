package ingestion

import (
	"context"
	"errors"

	"github.com/poiesic/docchat/core"
)

// InterruptedMessage is recorded on documents whose run did not survive a restart.
const InterruptedMessage = "indexing interrupted before completion"

// RecoveryReport lists the documents Recover resolved.
type RecoveryReport struct {
	Failed    []core.ID // processing documents moved to failed
	Completed []core.ID // processed documents moved to completed
}

// Recover resolves documents left in a transient status by a previous
// process. Runs interrupted mid-indexing are failed and their partial chunks
// removed. Runs that indexed every chunk but never recorded completion are
// completed without a summary.
//
// Recover must run before any new work is enqueued.
func (p *Pipeline) Recover(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	processing, err := p.docs.ListDocumentsByStatus(ctx, core.StatusProcessing)
	if err != nil {
		return report, err
	}
	for _, doc := range processing {
		if err := p.index.Delete(ctx, core.Namespace(doc.ID)); err != nil {
			p.logger.Warn("failed to remove partial chunks", "document", doc.ID, "err", err)
		}
		_, err := p.docs.TransitionStatus(ctx, doc.ID, core.StatusFailed, func(d *core.Document) {
			d.Error = InterruptedMessage
			d.ChunkCount = 0
		})
		if err != nil {
			if errors.Is(err, core.ErrConflict) {
				continue
			}
			return report, err
		}
		report.Failed = append(report.Failed, doc.ID)
	}

	processed, err := p.docs.ListDocumentsByStatus(ctx, core.StatusProcessed)
	if err != nil {
		return report, err
	}
	for _, doc := range processed {
		if _, err := p.docs.TransitionStatus(ctx, doc.ID, core.StatusCompleted, nil); err != nil {
			if errors.Is(err, core.ErrConflict) {
				continue
			}
			return report, err
		}
		report.Completed = append(report.Completed, doc.ID)
	}

	if len(report.Failed) > 0 || len(report.Completed) > 0 {
		p.logger.Info("recovered interrupted documents",
			"failed", len(report.Failed), "completed", len(report.Completed))
	}
	return report, nil
}
