package database

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"

	"github.com/edgard/cloudsignal/internal/feedback"
	"github.com/edgard/cloudsignal/internal/logger"
)

// ErrNotFound is returned when a write targets a feedback id that does not exist.
var ErrNotFound = errors.New("feedback not found")

// MaxRecentLimit caps RecentFeedback queries.
const MaxRecentLimit = 200

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// ListFeedback returns every row, newest first.
	ListFeedback(ctx context.Context) ([]feedback.Item, error)

	// RecentFeedback returns the newest 'limit' rows, newest first.
	RecentFeedback(ctx context.Context, limit int) ([]feedback.Item, error)

	// UnanalyzedFeedback returns rows whose priority is NULL or empty, oldest first.
	UnanalyzedFeedback(ctx context.Context) ([]feedback.Item, error)

	// SaveAnalysis writes the labels and analysis time for one row.
	SaveAnalysis(ctx context.Context, id string, analysis feedback.Analysis, analyzedAt time.Time) error

	// InsertFeedback stores a new row, assigning an id and timestamp when absent.
	InsertFeedback(ctx context.Context, item *feedback.Item) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
	}
}

// ListFeedback returns all rows ordered by descending timestamp.
func (s *sqlxStore) ListFeedback(ctx context.Context) ([]feedback.Item, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback ORDER BY timestamp DESC, id DESC`

	var rows []Feedback
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.queryError(ctx, "list feedback", err)
	}

	s.logger.DebugContext(ctx, "Listed feedback", "count", len(rows))
	return toItems(rows), nil
}

// RecentFeedback returns the newest rows. Non-positive limits fall back to 20
// and limits above MaxRecentLimit are capped.
func (s *sqlxStore) RecentFeedback(ctx context.Context, limit int) ([]feedback.Item, error) {
	if limit <= 0 {
		limit = 20
		s.logger.DebugContext(ctx, "Invalid limit provided, using default", "default_limit", limit)
	} else if limit > MaxRecentLimit {
		limit = MaxRecentLimit
		s.logger.DebugContext(ctx, "Limit exceeded maximum value, capping", "capped_limit", limit)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `SELECT ` + feedbackColumns + ` FROM feedback ORDER BY timestamp DESC, id DESC LIMIT ?`

	var rows []Feedback
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, s.queryError(ctx, "get recent feedback", err)
	}

	s.logger.DebugContext(ctx, "Fetched recent feedback", "limit", limit, "count", len(rows))
	return toItems(rows), nil
}

// UnanalyzedFeedback returns rows still waiting for classification.
func (s *sqlxStore) UnanalyzedFeedback(ctx context.Context) ([]feedback.Item, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query := `SELECT ` + feedbackColumns + ` FROM feedback
	          WHERE priority IS NULL OR priority = ''
	          ORDER BY timestamp ASC, id ASC`

	var rows []Feedback
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.queryError(ctx, "get unanalyzed feedback", err)
	}

	s.logger.DebugContext(ctx, "Fetched unanalyzed feedback", "count", len(rows))
	return toItems(rows), nil
}

// SaveAnalysis updates the five labels and analyzed_at of a single row.
func (s *sqlxStore) SaveAnalysis(ctx context.Context, id string, analysis feedback.Analysis, analyzedAt time.Time) error {
	if id == "" {
		return errors.New("feedback id cannot be empty")
	}

	query := `UPDATE feedback
	          SET sentiment = ?, priority = ?, category = ?, impact = ?, themes = ?, analyzed_at = ?
	          WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(analysis.Sentiment),
		string(analysis.Priority),
		string(analysis.Category),
		string(analysis.Impact),
		feedback.JoinThemes(analysis.Themes),
		analyzedAt.UTC(),
		id,
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving analysis", "feedback_id", id, "error", err)
		return fmt.Errorf("failed to save analysis for feedback %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "Could not get affected row count when saving analysis",
			"feedback_id", id, "error", err)
	case affected == 0:
		return fmt.Errorf("save analysis for feedback %s: %w", id, ErrNotFound)
	}

	s.logger.DebugContext(ctx, "Analysis saved", "feedback_id", id, "priority", analysis.Priority)
	return nil
}

// InsertFeedback inserts a new row. Content and source are required.
func (s *sqlxStore) InsertFeedback(ctx context.Context, item *feedback.Item) error {
	if item == nil {
		return errors.New("cannot insert nil feedback")
	}
	if strings.TrimSpace(item.Content) == "" {
		return errors.New("feedback must have non-empty content")
	}
	if strings.TrimSpace(item.Source) == "" {
		return errors.New("feedback must have a source")
	}

	if item.ID == "" {
		item.ID = ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now().UTC()
	}

	query := `
        INSERT INTO feedback (` + feedbackColumns + `)
        VALUES (:id, :content, :source, :author, :timestamp, :sentiment, :priority,
                :category, :impact, :themes, :analyzed_at)`

	if _, err := s.db.NamedExecContext(ctx, query, fromItem(item)); err != nil {
		s.logger.ErrorContext(ctx, "Error inserting feedback", "feedback_id", item.ID, "error", err)
		return fmt.Errorf("failed to insert feedback %s: %w", item.ID, err)
	}

	s.logger.DebugContext(ctx, "Feedback inserted", "feedback_id", item.ID, "source", item.Source)
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func (s *sqlxStore) queryError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation", "operation", op, "error", err)
		return err
	}
	s.logger.ErrorContext(ctx, "Query failed", "operation", op, "error", err)
	return fmt.Errorf("failed to %s: %w", op, err)
}

func toItems(rows []Feedback) []feedback.Item {
	items := make([]feedback.Item, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToItem())
	}
	return items
}
