package feedback

import (
	"strings"
	"time"
)

// Item is a single feedback row as presented to the UI and the chat context.
// Label fields are nil until the item has been analyzed.
type Item struct {
	ID         string     `json:"id"`
	Content    string     `json:"content"`
	Source     string     `json:"source"`
	Author     *string    `json:"author"`
	Timestamp  time.Time  `json:"timestamp"`
	Sentiment  *Sentiment `json:"sentiment"`
	Priority   *Priority  `json:"priority"`
	Category   *Category  `json:"category"`
	Impact     *Impact    `json:"impact"`
	Themes     []string   `json:"themes"`
	AnalyzedAt *time.Time `json:"analyzed_at"`
}

// JoinThemes renders themes in their persisted comma-joined form.
func JoinThemes(themes []string) string {
	return strings.Join(themes, ",")
}

// SplitThemes parses a persisted themes string. Empty entries are dropped and
// an empty input yields nil.
func SplitThemes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	themes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			themes = append(themes, p)
		}
	}
	if len(themes) == 0 {
		return nil
	}
	return themes
}
