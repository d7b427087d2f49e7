// Package feedback defines the feedback item ("signal") and the closed label
// sets produced by classification.
package feedback

import (
	"fmt"
	"strings"
)

// Sentiment is the emotional tone of a feedback item.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Priority ranks urgency, P0 being the most urgent.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Category is the kind of issue a feedback item describes.
type Category string

const (
	CategoryBug            Category = "bug"
	CategoryFeatureRequest Category = "feature-request"
	CategoryDocumentation  Category = "documentation"
	CategoryPerformance    Category = "performance"
	CategoryBilling        Category = "billing"
	CategoryUX             Category = "ux"
	CategoryGeneral        Category = "general"
)

// Impact estimates how many users or how much business is affected.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactHigh     Impact = "high"
	ImpactMedium   Impact = "medium"
	ImpactLow      Impact = "low"
)

var (
	Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}
	Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}
	Categories = []Category{
		CategoryBug, CategoryFeatureRequest, CategoryDocumentation,
		CategoryPerformance, CategoryBilling, CategoryUX, CategoryGeneral,
	}
	Impacts = []Impact{ImpactCritical, ImpactHigh, ImpactMedium, ImpactLow}
)

// Default labels used when the model gives no usable value for a field.
const (
	DefaultSentiment = SentimentNeutral
	DefaultPriority  = PriorityP2
	DefaultCategory  = CategoryGeneral
	DefaultImpact    = ImpactMedium
)

// Theme markers for the default themes list and the two fallback paths.
const (
	ThemeGeneral    = "general"
	ThemeUnanalyzed = "unanalyzed"
	ThemeError      = "error"
)

// ParseSentiment normalises s and reports whether it names a known sentiment.
func ParseSentiment(s string) (Sentiment, bool) {
	v := Sentiment(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Sentiments {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// ParsePriority accepts "P0".."P3" in any case.
func ParsePriority(s string) (Priority, bool) {
	v := Priority(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Priorities {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// ParseCategory normalises s and reports whether it names a known category.
// "feature request" and "feature_request" are accepted as spellings of
// feature-request.
func ParseCategory(s string) (Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	v := Category(norm)
	for _, known := range Categories {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// ParseImpact normalises s and reports whether it names a known impact level.
func ParseImpact(s string) (Impact, bool) {
	v := Impact(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Impacts {
		if v == known {
			return v, true
		}
	}
	return "", false
}

// Analysis is the label set produced for one feedback item.
type Analysis struct {
	Sentiment Sentiment `json:"sentiment"`
	Priority  Priority  `json:"priority"`
	Category  Category  `json:"category"`
	Impact    Impact    `json:"impact"`
	Themes    []string  `json:"themes"`
}

// DefaultAnalysis returns the all-default label set carrying the given themes.
func DefaultAnalysis(themes ...string) Analysis {
	if len(themes) == 0 {
		themes = []string{ThemeGeneral}
	}
	return Analysis{
		Sentiment: DefaultSentiment,
		Priority:  DefaultPriority,
		Category:  DefaultCategory,
		Impact:    DefaultImpact,
		Themes:    themes,
	}
}

func (a Analysis) String() string {
	return fmt.Sprintf("%s/%s/%s/%s %v", a.Priority, a.Category, a.Sentiment, a.Impact, a.Themes)
}
