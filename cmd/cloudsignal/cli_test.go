package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/cloudsignal/internal/analysis"
	"github.com/edgard/cloudsignal/internal/config"
	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/gateway"
	"github.com/edgard/cloudsignal/internal/logger"
	"github.com/edgard/cloudsignal/internal/server"
)

const seedYAML = `feedback:
  - content: "App crashes on login for all users"
    source: Support
    author: dana
    timestamp: 2026-01-15T10:30:00Z
  - content: "Please add dark mode"
    source: github
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSeed(t *testing.T) {
	items, err := loadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "support", items[0].Source)
	require.NotNil(t, items[0].Author)
	assert.Equal(t, "dana", *items[0].Author)
	assert.Equal(t, 2026, items[0].Timestamp.Year())

	assert.Nil(t, items[1].Author)
	assert.True(t, items[1].Timestamp.IsZero())
}

func TestLoadSeed_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":          "",
		"missing source": "feedback:\n  - content: x\n",
		"unknown field":  "feedback:\n  - content: x\n    source: y\n    priority: P0\n",
		"not yaml":       "feedback: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loadSeed(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestCLI_SeedAndVacuum(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  path: "+dbPath+"\nlogger:\n  level: error\n")
	seedPath := writeFile(t, dir, "seed.yaml", seedYAML)

	var out bytes.Buffer
	err := newCLIApp(&out).RunContext(context.Background(),
		[]string{"cloudsignal", "--config", cfgPath, "seed", seedPath})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "inserted 2 of 2 feedback rows")

	db, err := database.NewDB(dbPath)
	require.NoError(t, err)
	items, err := database.NewStore(db, nil).ListFeedback(context.Background())
	database.CloseDB(db)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	out.Reset()
	err = newCLIApp(&out).RunContext(context.Background(),
		[]string{"cloudsignal", "--config", cfgPath, "vacuum"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "vacuum completed")
}

func TestCLI_AnalyzeNeedsCredentials(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml",
		"database:\n  path: "+filepath.Join(dir, "cli.db")+"\nlogger:\n  level: error\n")

	err := newCLIApp(&bytes.Buffer{}).RunContext(context.Background(),
		[]string{"cloudsignal", "--config", cfgPath, "analyze"})
	require.ErrorIs(t, err, gateway.ErrNoCredentials)
}

func testEnv(t *testing.T) *env {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "serve.db")

	db, err := database.NewDB(cfg.Database.Path)
	require.NoError(t, err)
	rt := &env{cfg: cfg, log: logger.Discard(), db: db, store: database.NewStore(db, nil)}
	t.Cleanup(rt.close)
	return rt
}

func TestServerDeps_WithoutCredentials(t *testing.T) {
	rt := testEnv(t)
	deps, batch, err := serverDeps(context.Background(), rt)
	require.NoError(t, err)
	assert.Nil(t, batch)

	h, err := server.NewHandler(deps, nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feedback", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), gateway.ErrNoCredentials.Error())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"question":"hi"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, analysis.ChatErrorReply, resp["response"])
}

func TestServerDeps_WithCredentials(t *testing.T) {
	rt := testEnv(t)
	rt.cfg.Gateway.WorkersAI.AccountID = "acct"
	rt.cfg.Gateway.WorkersAI.APIToken = "token"

	deps, batch, err := serverDeps(context.Background(), rt)
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Same(t, batch, deps.Batch)
}

func TestServerDeps_OtherGatewayErrorsFail(t *testing.T) {
	rt := testEnv(t)
	rt.cfg.Gateway.Provider = "llamafile"

	_, _, err := serverDeps(context.Background(), rt)
	require.Error(t, err)
	assert.NotErrorIs(t, err, gateway.ErrNoCredentials)
}

func TestCLI_SeedArgs(t *testing.T) {
	err := newCLIApp(&bytes.Buffer{}).RunContext(context.Background(), []string{"cloudsignal", "seed"})
	require.Error(t, err)
}

func TestCLI_UnknownCommand(t *testing.T) {
	err := newCLIApp(&bytes.Buffer{}).RunContext(context.Background(), []string{"cloudsignal", "frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frobnicate")
}
