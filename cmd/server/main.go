package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-assess/internal/api"
	"github.com/p-n-ai/pai-assess/internal/catalog"
	"github.com/p-n-ai/pai-assess/internal/notify"
	"github.com/p-n-ai/pai-assess/internal/platform/cache"
	"github.com/p-n-ai/pai-assess/internal/platform/config"
	"github.com/p-n-ai/pai-assess/internal/platform/database"
	"github.com/p-n-ai/pai-assess/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // event streams are long-lived; other routes carry a request timeout
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Driver, "cache", cfg.Cache.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the catalog, session store, cache and HTTP router.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	checks := map[string]api.HealthChecker{}

	loader, err := catalog.NewLoader(cfg.DefinitionsPath)
	if err != nil {
		return nil, err
	}

	engineCfg := session.EngineConfig{Catalog: loader}

	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.Open(ctx, cfg.Database.URL, database.PoolSize{Max: cfg.Database.MaxConns, Min: cfg.Database.MinConns})
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}

		store, err := session.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		engineCfg.Store = store
		engineCfg.Events = session.NewPostgresEventLogger(db.Pool)
		checks["database"] = db
		slog.Info("connected to database")
	default:
		engineCfg.Store = session.NewMemoryStore()
		slog.Warn("using in-memory session store, sessions are lost on restart")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL, cfg.Cache.ResponseTTL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		engineCfg.Cache = c
		checks["cache"] = c
		slog.Info("response cache enabled", "ttl", cfg.Cache.ResponseTTL)
	}

	hub := notify.NewHub()
	engineCfg.Publisher = hub

	a.handler = api.NewRouter(api.Config{
		Engine:         session.NewEngine(engineCfg),
		Hub:            hub,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Checks:         checks,
	})
	return a, nil
}
