package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/feedback"
)

// maxChatBodyBytes bounds the chat request body.
const maxChatBodyBytes = 64 << 10

// Sources listed in the dashboard navigation.
var dashboardSources = []string{"discord", "github", "support", "twitter", "forums"}

// Canned questions offered in the chat panel.
var suggestedQuestions = []suggestion{
	{Label: "P0 Issues", Question: "What are the P0 critical issues?"},
	{Label: "Bug Summary", Question: "Summarize bug reports"},
	{Label: "Feature Requests", Question: "What features are requested?"},
	{Label: "Prioritization", Question: "What should we prioritize?"},
}

type suggestion struct {
	Label    string
	Question string
}

// dashboardData is the template data for the dashboard page.
type dashboardData struct {
	Title       string
	Priorities  []feedback.Priority
	Categories  []feedback.Category
	Sources     []string
	Sentiments  []feedback.Sentiment
	Suggestions []suggestion
}

type handlers struct {
	store     database.Store
	batch     BatchRunner
	chat      Responder
	templates *template.Template
	log       *slog.Logger
}

// feedbackResponse is the body of GET /api/feedback.
type feedbackResponse struct {
	Feedback []feedback.Item `json:"feedback"`
}

// analyzeResponse is the body of POST /api/analyze.
type analyzeResponse struct {
	Success  bool `json:"success"`
	Analyzed int  `json:"analyzed"`
	Failed   int  `json:"failed"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// dashboard handles GET / and renders the single-page UI.
func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) error {
	var buf bytes.Buffer
	err := h.templates.ExecuteTemplate(&buf, "dashboard.html", dashboardData{
		Title:       "CloudSignal | Feedback Intelligence",
		Priorities:  feedback.Priorities,
		Categories:  feedback.Categories,
		Sources:     dashboardSources,
		Sentiments:  feedback.Sentiments,
		Suggestions: suggestedQuestions,
	})
	if err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	return nil
}

// listFeedback handles GET /api/feedback.
func (h *handlers) listFeedback(w http.ResponseWriter, r *http.Request) error {
	items, err := h.store.ListFeedback(r.Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []feedback.Item{}
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Feedback: items})
	return nil
}

// analyze handles POST /api/analyze by running one batch pass.
func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) error {
	result, err := h.batch.Run(r.Context())
	if err != nil {
		return err
	}
	if result.Err != nil {
		h.log.WarnContext(r.Context(), "Batch analysis finished with failed rows",
			"failed", result.Failed, "error", result.Err)
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:  true,
		Analyzed: result.Analyzed,
		Failed:   result.Failed,
	})
	return nil
}

// chatQuestion handles POST /api/chat.
func (h *handlers) chatQuestion(w http.ResponseWriter, r *http.Request) error {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON body: %v", err)
		}
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return badRequest("question is required")
	}

	answer, err := h.chat.Respond(r.Context(), question)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: answer})
	return nil
}
