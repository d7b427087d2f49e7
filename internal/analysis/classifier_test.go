package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/cloudsignal/internal/feedback"
	"github.com/edgard/cloudsignal/internal/gateway"
)

func stubGateway(text string, err error) gateway.Client {
	return gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		return text, err
	})
}

func assertClosedLabels(t *testing.T, a feedback.Analysis) {
	t.Helper()
	assert.Contains(t, feedback.Sentiments, a.Sentiment)
	assert.Contains(t, feedback.Priorities, a.Priority)
	assert.Contains(t, feedback.Categories, a.Category)
	assert.Contains(t, feedback.Impacts, a.Impact)
	assert.NotEmpty(t, a.Themes)
}

func TestClassify_AlwaysReturnsClosedLabels(t *testing.T) {
	outputs := []string{
		"",
		"I cannot help with that.",
		"{not json at all}",
		`{"sentiment": 7, "priority": "urgent", "category": ["bug"], "impact": null, "themes": "x"}`,
		`Sure! {"priority": "p1", "category": "Feature Request"} Hope that helps.`,
	}
	for _, out := range outputs {
		c := NewClassifier(stubGateway(out, nil), 0, nil)
		assertClosedLabels(t, c.Classify(context.Background(), "anything"))
	}

	c := NewClassifier(stubGateway("", errors.New("boom")), 0, nil)
	assertClosedLabels(t, c.Classify(context.Background(), "anything"))
}

func TestClassify_FullObject(t *testing.T) {
	out := `Here you go:
{
  "sentiment": "negative",
  "priority": "P0",
  "category": "bug",
  "impact": "critical",
  "themes": ["login", "crash"]
}`
	c := NewClassifier(stubGateway(out, nil), 0, nil)

	got := c.Classify(context.Background(), "App crashes on login for all users")
	assert.Equal(t, feedback.Analysis{
		Sentiment: feedback.SentimentNegative,
		Priority:  feedback.PriorityP0,
		Category:  feedback.CategoryBug,
		Impact:    feedback.ImpactCritical,
		Themes:    []string{"login", "crash"},
	}, got)
}

func TestClassify_PartialObjectUsesDefaults(t *testing.T) {
	c := NewClassifier(stubGateway(`{"priority":"P1"}`, nil), 0, nil)

	got := c.Classify(context.Background(), "Billing page shows wrong amount")
	assert.Equal(t, feedback.PriorityP1, got.Priority)
	assert.Equal(t, feedback.SentimentNeutral, got.Sentiment)
	assert.Equal(t, feedback.CategoryGeneral, got.Category)
	assert.Equal(t, feedback.ImpactMedium, got.Impact)
	assert.Equal(t, []string{feedback.ThemeGeneral}, got.Themes)
}

func TestClassify_InvalidFieldsFallBackIndividually(t *testing.T) {
	out := `{"sentiment":"furious","priority":"P9","category":"feature_request","impact":"HIGH","themes":[1, " docs ", "", "docs", "a,b"]}`
	got, ok := ParseClassification(out)
	require.True(t, ok)

	assert.Equal(t, feedback.DefaultSentiment, got.Sentiment)
	assert.Equal(t, feedback.DefaultPriority, got.Priority)
	assert.Equal(t, feedback.CategoryFeatureRequest, got.Category)
	assert.Equal(t, feedback.ImpactHigh, got.Impact)
	assert.Equal(t, []string{"docs", "a b"}, got.Themes)
}

func TestClassify_FallbackMarkersAreDistinct(t *testing.T) {
	noJSON := NewClassifier(stubGateway("no braces here", nil), 0, nil).
		Classify(context.Background(), "x")
	undecodable := NewClassifier(stubGateway("{priority: P0", nil), 0, nil).
		Classify(context.Background(), "x")
	broken := NewClassifier(stubGateway("{ broken }", nil), 0, nil).
		Classify(context.Background(), "x")
	failed := NewClassifier(stubGateway("", errors.New("gateway down")), 0, nil).
		Classify(context.Background(), "x")

	assert.Equal(t, feedback.DefaultAnalysis(feedback.ThemeUnanalyzed), noJSON)
	assert.Equal(t, feedback.DefaultAnalysis(feedback.ThemeUnanalyzed), undecodable)
	assert.Equal(t, feedback.DefaultAnalysis(feedback.ThemeUnanalyzed), broken)
	assert.Equal(t, feedback.DefaultAnalysis(feedback.ThemeError), failed)
	assert.NotEqual(t, noJSON.Themes, failed.Themes)
}

func TestClassify_PromptAndBudget(t *testing.T) {
	var gotPrompt string
	var gotTokens int
	gw := gateway.ClientFunc(func(_ context.Context, prompt string, maxTokens int) (string, error) {
		gotPrompt, gotTokens = prompt, maxTokens
		return `{}`, nil
	})

	got := NewClassifier(gw, 0, nil).Classify(context.Background(), "Docs for R2 are confusing")
	assert.Equal(t, DefaultClassifyMaxTokens, gotTokens)
	assert.Contains(t, gotPrompt, `Feedback: "Docs for R2 are confusing"`)
	assert.True(t, strings.Contains(gotPrompt, "Rules for Priority:"))
	assert.Equal(t, feedback.DefaultAnalysis(), got)

	NewClassifier(gw, 64, nil).Classify(context.Background(), "x")
	assert.Equal(t, 64, gotTokens)
}

func TestCleanThemes(t *testing.T) {
	assert.Equal(t, []string{"slow dashboard", "api"},
		CleanThemes([]string{"  slow   dashboard ", "api", "api", "  ", ""}))
	assert.Empty(t, CleanThemes(nil))
}
