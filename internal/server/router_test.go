package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/cloudsignal/internal/analysis"
	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/feedback"
	"github.com/edgard/cloudsignal/internal/gateway"
)

type batchFunc func(ctx context.Context) (analysis.BatchResult, error)

func (f batchFunc) Run(ctx context.Context) (analysis.BatchResult, error) { return f(ctx) }

type responderFunc func(ctx context.Context, question string) (string, error)

func (f responderFunc) Respond(ctx context.Context, q string) (string, error) { return f(ctx, q) }

func setupStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

// newTestHandler wires the real analysis components over a stub gateway.
func newTestHandler(t *testing.T, store database.Store, gw gateway.Client) http.Handler {
	t.Helper()
	classifier := analysis.NewClassifier(gw, 0, nil)
	h, err := NewHandler(Deps{
		Store: store,
		Batch: analysis.NewBatchAnalyzer(store, classifier, nil),
		Chat:  analysis.NewChatResponder(store, gw, 0, 0, nil),
	}, nil)
	require.NoError(t, err)
	return h
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestRouter_NotFound(t *testing.T) {
	h := newTestHandler(t, setupStore(t), gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		return "", nil
	}))

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/feedback"},
		{http.MethodGet, "/api/unknown"},
		{http.MethodGet, "/api/analyze"},
		{http.MethodGet, "/api/chat"},
		{http.MethodDelete, "/"},
		{http.MethodGet, "/api/feedback/"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, "")
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "Not Found", rec.Body.String())
			assertCORS(t, rec)
		})
	}
}

func TestRouter_Options(t *testing.T) {
	h := newTestHandler(t, setupStore(t), gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		return "", nil
	}))

	for _, path := range []string{"/", "/api/chat", "/anything/at/all"} {
		rec := do(t, h, http.MethodOptions, path, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		assertCORS(t, rec)
	}
}

func TestDashboard(t *testing.T) {
	h := newTestHandler(t, setupStore(t), gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		return "", nil
	}))

	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assertCORS(t, rec)

	body := rec.Body.String()
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `data-filter-value="feature-request"`)
	assert.Contains(t, body, `data-question="What should we prioritize?"`)
}

func TestEndToEnd_SeedAnalyzeList(t *testing.T) {
	store := setupStore(t)
	item := feedback.Item{Content: "App crashes on login for all users", Source: "support"}
	require.NoError(t, store.InsertFeedback(context.Background(), &item))

	gw := gateway.ClientFunc(func(_ context.Context, prompt string, _ int) (string, error) {
		return `{"sentiment":"negative","priority":"P0","category":"bug","impact":"critical","themes":["login","crash"]}`, nil
	})
	h := newTestHandler(t, store, gw)

	rec := do(t, h, http.MethodGet, "/api/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var before struct {
		Feedback []map[string]any `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &before))
	require.Len(t, before.Feedback, 1)
	assert.Nil(t, before.Feedback[0]["priority"])

	callTime := time.Now().UTC().Truncate(time.Second)
	rec = do(t, h, http.MethodPost, "/api/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"analyzed":1,"failed":0}`, rec.Body.String())
	assertCORS(t, rec)

	rec = do(t, h, http.MethodGet, "/api/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var after struct {
		Feedback []feedback.Item `json:"feedback"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	require.Len(t, after.Feedback, 1)
	got := after.Feedback[0]
	assert.Equal(t, item.ID, got.ID)
	require.NotNil(t, got.Priority)
	assert.Equal(t, feedback.PriorityP0, *got.Priority)
	assert.Equal(t, feedback.CategoryBug, *got.Category)
	assert.Equal(t, []string{"login", "crash"}, got.Themes)
	require.NotNil(t, got.AnalyzedAt)
	assert.False(t, got.AnalyzedAt.Before(callTime))

	rec = do(t, h, http.MethodPost, "/api/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"analyzed":0,"failed":0}`, rec.Body.String())
}

func TestListFeedback_EmptyIsArray(t *testing.T) {
	h := newTestHandler(t, setupStore(t), gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		return "", nil
	}))

	rec := do(t, h, http.MethodGet, "/api/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"feedback":[]}`, rec.Body.String())
}

func TestChat(t *testing.T) {
	store := setupStore(t)
	gw := gateway.ClientFunc(func(_ context.Context, prompt string, _ int) (string, error) {
		return "1. Nothing urgent.", nil
	})
	h := newTestHandler(t, store, gw)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"question":"What should we prioritize?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"1. Nothing urgent."}`, rec.Body.String())
	assertCORS(t, rec)
}

func TestChat_BadRequests(t *testing.T) {
	h := newTestHandler(t, setupStore(t), gateway.ClientFunc(func(context.Context, string, int) (string, error) {
		t.Error("gateway must not be called")
		return "", nil
	}))

	for name, body := range map[string]string{
		"empty body":     "",
		"malformed":      `{"question":`,
		"blank question": `{"question":"   "}`,
		"missing field":  `{}`,
		"wrong type":     `{"question":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/chat", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assertCORS(t, rec)
		})
	}
}

func TestRouter_ErrorsBecome500(t *testing.T) {
	h, err := NewHandler(Deps{
		Store: setupStore(t),
		Batch: batchFunc(func(context.Context) (analysis.BatchResult, error) {
			return analysis.BatchResult{}, errors.New("database is locked")
		}),
		Chat: responderFunc(func(context.Context, string) (string, error) {
			panic("responder exploded")
		}),
	}, nil)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/analyze", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"database is locked"}`, rec.Body.String())
	assertCORS(t, rec)

	rec = do(t, h, http.MethodPost, "/api/chat", `{"question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"responder exploded"}`, rec.Body.String())
	assertCORS(t, rec)
}

func TestAnalyze_ReportsFailedRows(t *testing.T) {
	h, err := NewHandler(Deps{
		Store: setupStore(t),
		Batch: batchFunc(func(context.Context) (analysis.BatchResult, error) {
			return analysis.BatchResult{Selected: 3, Analyzed: 2, Failed: 1, Err: errors.New("row x")}, nil
		}),
		Chat: responderFunc(func(context.Context, string) (string, error) { return "", nil }),
	}, nil)
	require.NoError(t, err)

	rec := do(t, h, http.MethodPost, "/api/analyze", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"analyzed":2,"failed":1}`, rec.Body.String())
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
