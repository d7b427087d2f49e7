// Package app orchestrates the long-running CloudSignal components: the HTTP
// server and the task scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/cloudsignal/internal/logger"
	"github.com/edgard/cloudsignal/internal/scheduler"
	"github.com/edgard/cloudsignal/internal/server"
)

// App manages the lifecycle of the server and the scheduler.
type App struct {
	logger          *slog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
	scheduler       *scheduler.Scheduler
}

// New creates an App from already constructed components.
func New(log *slog.Logger, srv *http.Server, shutdownTimeout time.Duration, sched *scheduler.Scheduler) *App {
	if log == nil {
		log = logger.Discard()
	}
	return &App{
		logger:          log.With("component", "app"),
		server:          srv,
		shutdownTimeout: shutdownTimeout,
		scheduler:       sched,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of them
// fails, in which case the others are stopped too.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting CloudSignal...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(gCtx, a.server, a.shutdownTimeout, a.logger); err != nil {
			return err
		}
		if gCtx.Err() == nil {
			a.logger.Warn("HTTP server stopped unexpectedly without context cancellation.")
			return fmt.Errorf("http server stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Starting scheduler...")
		if err := a.scheduler.Start(gCtx); err != nil {
			a.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	a.logger.Info("CloudSignal running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("CloudSignal stopped due to error", "error", err)
		return err
	}

	a.logger.Info("CloudSignal stopped gracefully.")
	return nil
}
