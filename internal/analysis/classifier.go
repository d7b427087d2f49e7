// Package analysis turns feedback into labels and answers questions about it,
// using the model gateway and the feedback store.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/edgard/cloudsignal/internal/feedback"
	"github.com/edgard/cloudsignal/internal/gateway"
	"github.com/edgard/cloudsignal/internal/logger"
)

// DefaultClassifyMaxTokens is the output budget used when none is configured.
const DefaultClassifyMaxTokens = 200

// jsonObjectRegex matches from the first '{' to the last '}' of the model output.
var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// Classifier derives an Analysis for a feedback item through the model gateway.
type Classifier struct {
	gateway   gateway.Client
	maxTokens int
	log       *slog.Logger
}

// NewClassifier creates a Classifier. A non-positive maxTokens uses
// DefaultClassifyMaxTokens.
func NewClassifier(gw gateway.Client, maxTokens int, log *slog.Logger) *Classifier {
	if log == nil {
		log = logger.Discard()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultClassifyMaxTokens
	}
	return &Classifier{
		gateway:   gw,
		maxTokens: maxTokens,
		log:       log.With("component", "classifier"),
	}
}

// Classify never fails. Gateway errors yield the default labels with the
// "error" theme; output without a decodable JSON object yields the default
// labels with the "unanalyzed" theme. Otherwise each field is validated on its
// own and falls back to its default when missing or invalid.
func (c *Classifier) Classify(ctx context.Context, content string) feedback.Analysis {
	text, err := c.gateway.Run(ctx, fmt.Sprintf(ClassificationPrompt, content), c.maxTokens)
	if err != nil {
		c.log.ErrorContext(ctx, "Classification call failed", "error", err)
		return feedback.DefaultAnalysis(feedback.ThemeError)
	}

	analysis, ok := ParseClassification(text)
	if !ok {
		c.log.WarnContext(ctx, "Model output has no usable JSON object",
			"response_text", logger.TruncateString(text, 200))
		return analysis
	}

	c.log.DebugContext(ctx, "Feedback classified", "analysis", analysis.String())
	return analysis
}

// ParseClassification extracts an Analysis from raw model output. The boolean
// reports whether a JSON object was found and decoded; when false the result
// carries the "unanalyzed" theme.
func ParseClassification(text string) (feedback.Analysis, bool) {
	match := jsonObjectRegex.FindString(text)
	if match == "" {
		return feedback.DefaultAnalysis(feedback.ThemeUnanalyzed), false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		return feedback.DefaultAnalysis(feedback.ThemeUnanalyzed), false
	}

	analysis := feedback.DefaultAnalysis()
	if v, ok := feedback.ParseSentiment(stringField(fields, "sentiment")); ok {
		analysis.Sentiment = v
	}
	if v, ok := feedback.ParsePriority(stringField(fields, "priority")); ok {
		analysis.Priority = v
	}
	if v, ok := feedback.ParseCategory(stringField(fields, "category")); ok {
		analysis.Category = v
	}
	if v, ok := feedback.ParseImpact(stringField(fields, "impact")); ok {
		analysis.Impact = v
	}
	if themes := themesField(fields); len(themes) > 0 {
		analysis.Themes = themes
	}
	return analysis, true
}

// stringField returns the named field when it is a JSON string, "" otherwise.
func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := fields[name]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// themesField accepts a JSON array of strings, or a single comma-separated
// string. Non-string elements are skipped.
func themesField(fields map[string]json.RawMessage) []string {
	raw, ok := fields["themes"]
	if !ok {
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		return CleanThemes(strings.Split(single, ","))
	}

	themes := make([]string, 0, len(list))
	for _, elem := range list {
		var s string
		if err := json.Unmarshal(elem, &s); err == nil {
			themes = append(themes, s)
		}
	}
	return CleanThemes(themes)
}

// CleanThemes trims themes, drops empty ones and duplicates, and replaces
// commas so the persisted comma-joined form splits back to the same list.
func CleanThemes(themes []string) []string {
	seen := make(map[string]struct{}, len(themes))
	cleaned := make([]string, 0, len(themes))
	for _, t := range themes {
		t = strings.Join(strings.Fields(strings.ReplaceAll(t, ",", " ")), " ")
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		cleaned = append(cleaned, t)
	}
	return cleaned
}
