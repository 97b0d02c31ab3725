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
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/starford/xmledit/internal/api"
	"github.com/starford/xmledit/internal/archive"
	"github.com/starford/xmledit/internal/catalog"
	"github.com/starford/xmledit/internal/docservice"
	"github.com/starford/xmledit/internal/markup"
	"github.com/starford/xmledit/internal/mcpserver"
	"github.com/starford/xmledit/internal/session"
	"github.com/starford/xmledit/internal/sse"
	"github.com/starford/xmledit/internal/storage"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// openCatalog opens the samples directory and its SQLite catalog and runs
// the initial sync.
func openCatalog(cfg *Config, logger *slog.Logger) (*storage.FS, *catalog.DB, error) {
	if err := os.MkdirAll(cfg.Samples.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create samples dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Samples.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init catalog: %w", err)
	}
	if err := catalog.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return store, db, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := newLogger(cfg.App, app.logOutput)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("samples_path", cfg.Samples.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ai_provider", cfg.AI.Provider),
		slog.String("session_store", cfg.Sessions.Store),
		slog.String("markup_mode", cfg.Markup.Mode),
		slog.Bool("archive_enabled", cfg.Archive.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, db, err := openCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	gateway, err := newGateway(ctx, cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("init ai gateway: %w", err)
	}

	tc := markup.New(markup.WithMode(markup.Mode(cfg.Markup.Mode)), markup.WithLogger(logger))

	checks := map[string]api.Check{
		"catalog": func(context.Context) error { return db.Ping() },
	}

	var sessionStore session.Store
	switch cfg.Sessions.Store {
	case SessionStoreRedis:
		rs, err := session.NewRedisStore(ctx, cfg.Sessions.RedisURL, cfg.Sessions.TTL)
		if err != nil {
			return fmt.Errorf("init session store: %w", err)
		}
		defer func() { _ = rs.Close() }()
		checks["sessions"] = rs.Ping
		sessionStore = rs
	default:
		sessionStore = session.NewMemoryStore()
	}

	var arch *archive.Archive
	if cfg.Archive.Enabled {
		arch, err = archive.Open(cfg.Archive.Path, logger)
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	sessionOpts := []session.Option{
		session.WithGateway(gateway),
		session.WithTranscoder(tc),
		session.WithLogger(logger),
		session.OnRevision(func(_ context.Context, f *session.Finalized) {
			broker.PublishRevision(sse.RevisionData{
				SessionID: f.Session.ID,
				Name:      f.Session.Name,
				Number:    f.Record.Number,
				Date:      f.Record.Date,
				Comment:   f.Record.Comment,
				Fidelity:  f.Fidelity.String(),
			})
		}),
	}
	if arch != nil {
		sessionOpts = append(sessionOpts, session.OnRevision(func(ctx context.Context, f *session.Finalized) {
			if _, err := arch.Commit(ctx, f.Session.Name, f.Session.Current, f.Record); err != nil {
				logger.Error("archive: commit failed", slog.String("name", f.Session.Name), slog.String("error", err.Error()))
			}
		}))
	}
	sessions := session.NewManager(sessionStore, sessionOpts...)

	docs := docservice.NewService(store, db, sessions, logger)
	apiRouter := api.NewRouter(api.Deps{
		Docs:       docs,
		Sessions:   sessions,
		Gateway:    gateway,
		Transcoder: tc,
		Archive:    arch,
		Events:     broker,
		Sanitize:   cfg.Markup.Sanitize,
		Logger:     logger,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.App.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-Match"},
		ExposedHeaders: []string{"ETag", "Content-Disposition"},
		MaxAge:         300,
	}))

	// Health check endpoints (unauthenticated).
	api.MountHealth(r, checks)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := catalog.Watch(gCtx, db, store, cfg.Samples.Path, logger, broker.PublishDocumentEvent)
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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

		logger.Info("Shutting down server...", slog.Int("sse_clients", broker.ClientCount()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		cancel()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs go to the configured log
// output, which must not be stdout.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := newLogger(cfg.App, app.logOutput)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	store, db, err := openCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		if err := catalog.Watch(watchCtx, db, store, cfg.Samples.Path, logger, nil); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	tc := markup.New(markup.WithMode(markup.Mode(cfg.Markup.Mode)), markup.WithLogger(logger))
	srv := mcpserver.New(store, db, tc)
	logger.Info("MCP server starting on stdio", slog.String("samples_path", cfg.Samples.Path))
	serveErr := srv.ServeStdio()

	stopWatch()
	_ = g.Wait()
	return serveErr
}
