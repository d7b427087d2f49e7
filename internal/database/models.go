package database

import (
	"database/sql"
	"time"

	"github.com/edgard/cloudsignal/internal/feedback"
)

// Feedback is a row of the feedback table. Label columns stay NULL until the
// row is analyzed; themes are stored comma-joined.
type Feedback struct {
	ID        string         `db:"id"`
	Content   string         `db:"content"`
	Source    string         `db:"source"`
	Author    sql.NullString `db:"author"`
	Timestamp time.Time      `db:"timestamp"`

	Sentiment sql.NullString `db:"sentiment"`
	Priority  sql.NullString `db:"priority"`
	Category  sql.NullString `db:"category"`
	Impact    sql.NullString `db:"impact"`
	Themes    sql.NullString `db:"themes"`

	AnalyzedAt sql.NullTime `db:"analyzed_at"`
}

const feedbackColumns = `id, content, source, author, timestamp, sentiment, priority, category, impact, themes, analyzed_at`

// ToItem converts the row into its presentation form. Stored labels outside
// the known sets are dropped rather than passed through.
func (f *Feedback) ToItem() feedback.Item {
	item := feedback.Item{
		ID:        f.ID,
		Content:   f.Content,
		Source:    f.Source,
		Timestamp: f.Timestamp,
	}
	if f.Author.Valid && f.Author.String != "" {
		author := f.Author.String
		item.Author = &author
	}
	if v, ok := feedback.ParseSentiment(f.Sentiment.String); f.Sentiment.Valid && ok {
		item.Sentiment = &v
	}
	if v, ok := feedback.ParsePriority(f.Priority.String); f.Priority.Valid && ok {
		item.Priority = &v
	}
	if v, ok := feedback.ParseCategory(f.Category.String); f.Category.Valid && ok {
		item.Category = &v
	}
	if v, ok := feedback.ParseImpact(f.Impact.String); f.Impact.Valid && ok {
		item.Impact = &v
	}
	if f.Themes.Valid {
		item.Themes = feedback.SplitThemes(f.Themes.String)
	}
	if f.AnalyzedAt.Valid {
		at := f.AnalyzedAt.Time
		item.AnalyzedAt = &at
	}
	return item
}

// fromItem builds a row for insertion. Labels are copied only when set.
func fromItem(item *feedback.Item) *Feedback {
	row := &Feedback{
		ID:        item.ID,
		Content:   item.Content,
		Source:    item.Source,
		Timestamp: item.Timestamp.UTC(),
	}
	if item.Author != nil {
		row.Author = sql.NullString{String: *item.Author, Valid: true}
	}
	if item.Sentiment != nil {
		row.Sentiment = sql.NullString{String: string(*item.Sentiment), Valid: true}
	}
	if item.Priority != nil {
		row.Priority = sql.NullString{String: string(*item.Priority), Valid: true}
	}
	if item.Category != nil {
		row.Category = sql.NullString{String: string(*item.Category), Valid: true}
	}
	if item.Impact != nil {
		row.Impact = sql.NullString{String: string(*item.Impact), Valid: true}
	}
	if item.Themes != nil {
		row.Themes = sql.NullString{String: feedback.JoinThemes(item.Themes), Valid: true}
	}
	if item.AnalyzedAt != nil {
		row.AnalyzedAt = sql.NullTime{Time: item.AnalyzedAt.UTC(), Valid: true}
	}
	return row
}
