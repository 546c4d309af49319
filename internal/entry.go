// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/docs"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/reconcile"
	"github.com/starford/ansuz/internal/sse"
)

// setup applies options and builds the logger shared by all run modes.
func setup(opts []Option) (*Config, *slog.Logger, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	return app.config, logger, nil
}

// Run performs one publish pass and exits. Any failed action makes the run
// fail so CI pipelines notice partial publishes.
func Run(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	logger.Info("Configuration loaded",
		slog.String("docs_path", cfg.Docs.Path),
		slog.String("discourse_host", cfg.Discourse.Host),
		slog.Bool("dry_run", cfg.Sync.DryRun),
		slog.Bool("delete_topics", cfg.Sync.DeleteTopics),
		slog.String("log_level", cfg.App.LogLevel.String()))

	syncer, err := NewSyncer(cfg, logger)
	if err != nil {
		return err
	}

	report, err := syncer.Sync(ctx, false)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if failed := ReportFailures(report); len(failed) > 0 {
		for _, rec := range failed {
			logger.Error("action failed",
				slog.String("path", rec.Path),
				slog.String("action", string(rec.Kind)),
				slog.String("error", rec.Error))
		}
		return fmt.Errorf("publish: %d of %d actions failed", len(failed), len(report.Records))
	}

	logger.Info("publish complete",
		slog.String("index_url", report.IndexURL),
		slog.Int("actions", len(report.Records)))
	return nil
}

// RunMCP serves the publishing tools over MCP stdio until the client
// disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	syncer, err := NewSyncer(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(syncer, syncer).ServeStdio()
}

// RunWatch keeps the docs tree and the forum converged: it publishes once
// at start-up, re-publishes after every settled burst of file changes, and
// serves the status API until the context is cancelled or a signal arrives.
func RunWatch(ctx context.Context, opts ...Option) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}

	syncer, err := NewSyncer(cfg, logger)
	if err != nil {
		return err
	}

	broker := sse.NewBroker()
	defer broker.Close()

	svc := api.NewService(syncer, logger, func(report *reconcile.Report) {
		broker.PublishRunEvent(report.IndexURL, report.URLsWithActions())
	})

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api, SSE stream included.
	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("watch mode starting", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// triggerCh coalesces watcher bursts into sync requests.
	triggerCh := make(chan string, 1)

	// Start file watcher feeding the trigger channel.
	g.Go(func() error {
		return docs.Watch(gCtx, cfg.Docs.Path, docs.DefaultDebounce, logger, func(path string) {
			select {
			case triggerCh <- path:
			default:
				// A sync is already pending; the tree is re-read anyway.
			}
		})
	})

	// Run loop: initial publish, then one publish per trigger. Credential
	// failures abort the whole group; anything else waits for the next change.
	g.Go(func() error {
		if _, err := svc.RunSync(gCtx, false); err != nil && IsFatal(err) {
			return fmt.Errorf("initial publish: %w", err)
		}
		for {
			select {
			case <-gCtx.Done():
				return nil
			case path := <-triggerCh:
				logger.Info("change detected, publishing", slog.String("path", path))
				_, err := svc.RunSync(gCtx, false)
				switch {
				case errors.Is(err, api.ErrSyncRunning):
					// Triggered over HTTP at the same time; drop this one.
				case err != nil && IsFatal(err):
					return fmt.Errorf("publish after change: %w", err)
				}
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
