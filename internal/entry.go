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

	"github.com/starford/quire/internal/api"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/tree"
	"github.com/starford/quire/internal/vault"
	"github.com/starford/quire/internal/watcher"
)

// components are the wired domain services shared by both run modes.
type components struct {
	store  *storage.FS
	tree   *tree.Tree
	svc    *vault.Service
	search *search.Engine
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", stdout: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) build(logger *slog.Logger, notifier vault.Notifier) (*components, error) {
	cfg := a.config

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	t := tree.New(store, tree.WithHidden(cfg.Vault.ShowHidden), tree.WithLogger(logger))

	opts := []vault.Option{
		vault.WithLogger(logger),
		vault.WithBlogRoot(cfg.Hugo.BlogRoot),
	}
	if notifier != nil {
		opts = append(opts, vault.WithNotifier(notifier))
	}

	return &components{
		store:  store,
		tree:   t,
		svc:    vault.NewService(store, t, opts...),
		search: search.New(store, t, cfg.Search.Engine(), logger),
	}, nil
}

// watch runs the file system watcher until ctx is done. A watcher that
// cannot start is logged and the application keeps running without it.
func (a *application) watch(ctx context.Context, c *components, logger *slog.Logger, onChange watcher.ChangeFunc) error {
	if !a.config.Watch.Enabled {
		return nil
	}
	opts := watcher.Options{
		Debounce:   a.config.Watch.Debounce,
		WithHidden: a.config.Vault.ShowHidden,
	}
	err := watcher.Watch(ctx, c.store.Root(), opts, logger, func(paths []string) {
		c.tree.Invalidate()
		if onChange != nil {
			onChange(paths)
		}
	})
	if err != nil {
		logger.Warn("watcher disabled", slog.String("error", err.Error()))
	}
	return nil
}

// Run starts the HTTP application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := NewLogger(cfg.App, app.stdout)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(logger, broker)
	if err != nil {
		return err
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if info, err := os.Stat(c.store.Root()); err != nil || !info.IsDir() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"vault unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api; attachments are also served where notes link them.
	r.Mount("/api", api.NewRouter(c.svc, c.search, broker))
	r.Get("/attachments/{filename}", api.NewAttachmentHandler(c.store).ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; external changes refresh the tree and notify clients.
	g.Go(func() error {
		return app.watch(gCtx, c, logger, broker.PublishTreeChanged)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or on the first failure.
	g.Go(func() error {
		<-gCtx.Done()
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

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
// Logs go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	logger := NewLogger(app.config.App, os.Stderr)
	slog.SetDefault(logger)

	c, err := app.build(logger, nil)
	if err != nil {
		return err
	}
	srv := mcpserver.New(c.svc, c.search, logger, app.version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.watch(gCtx, c, logger, nil)
	})
	g.Go(func() error {
		defer cancel()
		logger.Info("Starting MCP server", slog.String("vault_path", c.store.Root()))
		return srv.ServeStdio()
	})

	return g.Wait()
}
