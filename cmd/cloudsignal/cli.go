package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/edgard/cloudsignal/internal/analysis"
	"github.com/edgard/cloudsignal/internal/app"
	"github.com/edgard/cloudsignal/internal/config"
	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/gateway"
	"github.com/edgard/cloudsignal/internal/logger"
	"github.com/edgard/cloudsignal/internal/scheduler"
	"github.com/edgard/cloudsignal/internal/server"
)

// env holds the components shared by every command.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *sqlx.DB
	store database.Store
}

func (e *env) close() {
	database.CloseDB(e.db)
}

// newCLIApp creates the CLI application with all commands. Command output
// (not logs) goes to out.
func newCLIApp(out io.Writer) *cli.App {
	cliApp := &cli.App{
		Name:    "cloudsignal",
		Usage:   "Feedback triage dashboard backed by a hosted language model",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./config.yaml",
				Usage:   "Path to configuration file",
				EnvVars: []string{config.EnvPrefix + "_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			analyzeCmd(out),
			seedCmd(out),
			vacuumCmd(out),
		},
		Action: serve,
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// setup loads configuration, configures logging and opens the database.
func setup(c *cli.Context) (*env, error) {
	configPath := c.String("config")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Debug("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &env{cfg: cfg, log: log, db: db, store: database.NewStore(db, log)}, nil
}

// newAnalyzers creates the gateway client and the analyzers built on it.
func newAnalyzers(ctx context.Context, rt *env) (*analysis.BatchAnalyzer, *analysis.ChatResponder, error) {
	gw, err := gateway.New(ctx, rt.cfg.Gateway, rt.log)
	if err != nil {
		return nil, nil, err
	}

	ac := rt.cfg.Analysis
	classifier := analysis.NewClassifier(gw, ac.ClassifyMaxTokens, rt.log)
	batch := analysis.NewBatchAnalyzer(rt.store, classifier, rt.log)
	chat := analysis.NewChatResponder(rt.store, gw, ac.ChatMaxTokens, ac.ChatContextSize, rt.log)
	return batch, chat, nil
}

// unavailableBatch rejects every analysis run with the gateway setup error,
// so unconfigured deployments never stamp rows with fallback labels.
type unavailableBatch struct {
	err error
}

func (u unavailableBatch) Run(context.Context) (analysis.BatchResult, error) {
	return analysis.BatchResult{}, u.err
}

// serverDeps builds the HTTP dependencies. Missing model credentials do not
// stop the server: the dashboard and feedback list keep working, analysis
// runs fail with the credentials error and chat answers with the apology.
// The returned analyzer is nil in that case so no analysis task is scheduled.
func serverDeps(ctx context.Context, rt *env) (server.Deps, *analysis.BatchAnalyzer, error) {
	batch, chat, err := newAnalyzers(ctx, rt)
	switch {
	case err == nil:
		return server.Deps{Store: rt.store, Batch: batch, Chat: chat}, batch, nil
	case errors.Is(err, gateway.ErrNoCredentials):
		rt.log.Warn("Model gateway is not configured, analysis and chat are disabled", "error", err)
		ac := rt.cfg.Analysis
		return server.Deps{
			Store: rt.store,
			Batch: unavailableBatch{err: err},
			Chat:  analysis.NewChatResponder(rt.store, gateway.Unavailable(err), ac.ChatMaxTokens, ac.ChatContextSize, rt.log),
		}, nil, nil
	default:
		rt.log.Error("Failed to initialize model gateway", "error", err)
		return server.Deps{}, nil, err
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the dashboard HTTP server and the scheduler (default)",
		Action: serve,
	}
}

func serve(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := c.Context
	deps, batch, err := serverDeps(ctx, rt)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(rt.cfg.Server, deps, rt.log)
	if err != nil {
		return err
	}

	tasks := scheduler.RegisterAllTasks(scheduler.TaskDeps{
		Logger:  rt.log,
		Store:   rt.store,
		Batch:   batch,
		Timeout: rt.cfg.Analysis.BatchTimeout,
	})
	sched, err := scheduler.NewScheduler(rt.log, &rt.cfg.Scheduler, tasks)
	if err != nil {
		return err
	}

	runErr := app.New(rt.log, srv, rt.cfg.Server.ShutdownTimeout, sched).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func analyzeCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Classify every unanalyzed feedback row once and exit",
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			defer rt.close()

			batch, _, err := newAnalyzers(c.Context, rt)
			if err != nil {
				return err
			}

			result, err := batch.Run(c.Context)
			fmt.Fprintf(out, "selected: %d, analyzed: %d, failed: %d\n", result.Selected, result.Analyzed, result.Failed)
			if err != nil {
				return err
			}
			return result.Err
		},
	}
}

func seedCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Insert feedback rows from a YAML file",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("seed requires exactly one FILE argument")
			}

			f, err := os.Open(c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()

			items, err := loadSeed(f)
			if err != nil {
				return err
			}

			rt, err := setup(c)
			if err != nil {
				return err
			}
			defer rt.close()

			inserted, err := insertSeed(c.Context, rt.store, items)
			fmt.Fprintf(out, "inserted %d of %d feedback rows\n", inserted, len(items))
			return err
		},
	}
}

func vacuumCmd(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "vacuum",
		Usage: "Run database maintenance (VACUUM) once",
		Action: func(c *cli.Context) error {
			rt, err := setup(c)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.store.RunSQLMaintenance(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(out, "vacuum completed")
			return nil
		},
	}
}
