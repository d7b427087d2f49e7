package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/logger"
)

// BatchResult summarises one batch run.
type BatchResult struct {
	// Selected is the number of unanalyzed rows found at the start of the run.
	Selected int
	// Analyzed counts rows whose labels were written.
	Analyzed int
	// Failed counts rows whose write-back failed.
	Failed int
	// Err aggregates the per-row write-back failures, nil when Failed is 0.
	Err error
}

// BatchAnalyzer classifies every unanalyzed row and writes the labels back.
type BatchAnalyzer struct {
	store      database.Store
	classifier *Classifier
	log        *slog.Logger
	now        func() time.Time

	// running admits one Run at a time; waiters give up when their ctx ends.
	running *semaphore.Weighted
}

// NewBatchAnalyzer creates a BatchAnalyzer.
func NewBatchAnalyzer(store database.Store, classifier *Classifier, log *slog.Logger) *BatchAnalyzer {
	if log == nil {
		log = logger.Discard()
	}
	return &BatchAnalyzer{
		store:      store,
		classifier: classifier,
		log:        log.With("component", "batch_analyzer"),
		now:        func() time.Time { return time.Now().UTC() },
		running:    semaphore.NewWeighted(1),
	}
}

// Run processes rows one at a time, oldest first. A failed write is logged,
// counted and skipped. The returned error is non-nil only when the selection
// query fails or ctx is done; in the latter case the partial result is still
// returned. Overlapping calls are serialised; a call still waiting for the
// previous run when ctx ends returns ctx.Err() without touching any row.
func (b *BatchAnalyzer) Run(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	if err := b.running.Acquire(ctx, 1); err != nil {
		b.log.WarnContext(ctx, "Gave up waiting for running batch analysis", "error", err)
		return result, fmt.Errorf("waiting for running batch analysis: %w", err)
	}
	defer b.running.Release(1)

	items, err := b.store.UnanalyzedFeedback(ctx)
	if err != nil {
		b.log.ErrorContext(ctx, "Failed to select unanalyzed feedback", "error", err)
		return result, fmt.Errorf("failed to select unanalyzed feedback: %w", err)
	}
	result.Selected = len(items)

	if len(items) == 0 {
		b.log.InfoContext(ctx, "No unanalyzed feedback found")
		return result, nil
	}
	b.log.InfoContext(ctx, "Starting batch analysis", "count", len(items))
	startTime := time.Now()

	var errs *multierror.Error
	for i := range items {
		if ctx.Err() != nil {
			b.log.WarnContext(ctx, "Batch analysis interrupted",
				"analyzed_so_far", result.Analyzed, "total", len(items), "error", ctx.Err())
			result.Err = errs.ErrorOrNil()
			return result, ctx.Err()
		}

		item := &items[i]
		analysis := b.classifier.Classify(ctx, item.Content)

		// A cancelled call degrades to the error fallback; do not persist it.
		if ctx.Err() != nil {
			continue
		}

		if err := b.store.SaveAnalysis(ctx, item.ID, analysis, b.now()); err != nil {
			b.log.ErrorContext(ctx, "Failed to save analysis, skipping row", "feedback_id", item.ID, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("feedback %s: %w", item.ID, err))
			result.Failed++
			continue
		}
		result.Analyzed++
	}

	result.Err = errs.ErrorOrNil()
	b.log.InfoContext(ctx, "Batch analysis completed",
		"selected", result.Selected,
		"analyzed", result.Analyzed,
		"failed", result.Failed,
		"duration", time.Since(startTime))
	return result, nil
}
