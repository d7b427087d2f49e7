// Package server implements the CloudSignal HTTP surface: the dashboard page
// and the JSON API used by it.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/edgard/cloudsignal/internal/analysis"
	"github.com/edgard/cloudsignal/internal/config"
	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// BatchRunner runs one batch analysis pass.
type BatchRunner interface {
	Run(ctx context.Context) (analysis.BatchResult, error)
}

// Responder answers a chat question.
type Responder interface {
	Respond(ctx context.Context, question string) (string, error)
}

// Deps holds the collaborators used by the handlers.
type Deps struct {
	Store database.Store
	Batch BatchRunner
	Chat  Responder
}

// NewHandler builds the routed handler with request logging.
func NewHandler(deps Deps, log *slog.Logger) (http.Handler, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "http")

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	h := &handlers{
		store:     deps.Store,
		batch:     deps.Batch,
		chat:      deps.Chat,
		templates: tmpl,
		log:       log,
	}

	rt := newRouter(log)
	rt.handle(http.MethodGet, "/", h.dashboard)
	rt.handle(http.MethodGet, "", h.dashboard)
	rt.handle(http.MethodGet, "/api/feedback", h.listFeedback)
	rt.handle(http.MethodPost, "/api/analyze", h.analyze)
	rt.handle(http.MethodPost, "/api/chat", h.chatQuestion)

	return logger.Middleware(log)(rt), nil
}

// NewServer creates the HTTP server for cfg.
func NewServer(cfg config.ServerConfig, deps Deps, log *slog.Logger) (*http.Server, error) {
	handler, err := NewHandler(deps, log)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

// Run serves until ctx is cancelled, then shuts the server down within
// shutdownTimeout.
func Run(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, log *slog.Logger) error {
	if log == nil {
		log = logger.Discard()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("HTTP server listening", "addr", srv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	}
}
