package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/cloudsignal/internal/analysis"
	"github.com/edgard/cloudsignal/internal/config"
	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/logger"
)

// TaskFunc is the signature of a scheduled task. The context is cancelled
// when the scheduler stops.
type TaskFunc func(ctx context.Context) error

// TaskDeps contains the dependencies used by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Batch  *analysis.BatchAnalyzer
	// Timeout bounds a single batch analysis run. Zero means no bound.
	Timeout time.Duration
}

// RegisterAllTasks returns every known task keyed by the name used in the
// scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]TaskFunc {
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}

	tasks := map[string]TaskFunc{
		config.TaskSQLMaintenance: newSQLMaintenanceTask(deps),
	}
	if deps.Batch != nil {
		tasks[config.TaskFeedbackAnalysis] = newFeedbackAnalysisTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

// newFeedbackAnalysisTask runs the batch analyzer over unanalyzed feedback.
func newFeedbackAnalysisTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", config.TaskFeedbackAnalysis)

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled feedback analysis task...")
		startTime := time.Now()

		if deps.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
			defer cancel()
		}

		result, err := deps.Batch.Run(ctx)
		duration := time.Since(startTime)

		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			log.WarnContext(ctx, "Feedback analysis timed out or was cancelled",
				"analyzed", result.Analyzed, "error", err, "duration", duration)
			return fmt.Errorf("feedback analysis timed out or was cancelled: %w", err)
		case err != nil:
			log.ErrorContext(ctx, "Feedback analysis failed", "error", err, "duration", duration)
			return fmt.Errorf("feedback analysis failed: %w", err)
		}

		if result.Selected == 0 {
			log.InfoContext(ctx, "Feedback analysis completed - no unanalyzed feedback found", "duration", duration)
			return nil
		}

		log.InfoContext(ctx, "Feedback analysis completed",
			"analyzed", result.Analyzed,
			"failed", result.Failed,
			"duration", duration)
		return result.Err
	}
}

// newSQLMaintenanceTask creates the scheduled task function for running database maintenance.
func newSQLMaintenanceTask(deps TaskDeps) TaskFunc {
	log := deps.Logger.With("task", config.TaskSQLMaintenance)

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := time.Now()

		err := deps.Store.RunSQLMaintenance(ctx)
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed successfully", "duration", duration)
		return nil
	}
}
