// cmd/server is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/eventhub/internal/blob"
	"github.com/Shivanand-hulikatti/eventhub/internal/config"
	"github.com/Shivanand-hulikatti/eventhub/internal/database"
	"github.com/Shivanand-hulikatti/eventhub/internal/handler"
	"github.com/Shivanand-hulikatti/eventhub/internal/notify"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository/memrepo"
	"github.com/Shivanand-hulikatti/eventhub/internal/repository/mongorepo"
	"github.com/Shivanand-hulikatti/eventhub/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Connect to the configured store ───────────────────────────────
	events, users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	hub := notify.NewHub(logger.With("component", "push"))
	authSvc := service.NewAuthService(users, cfg.JWTSecret, cfg.TokenTTL, logger)
	eventSvc := service.NewEventService(events, users, authSvc, hub, logger)

	if cfg.AdminEmail != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	blobs, err := blob.NewLocalStore(cfg.UploadDir, strings.TrimRight(cfg.PublicURL, "/")+"/uploads")
	if err != nil {
		return err
	}

	// ── 3. Build the router ───────────────────────────────────────────────
	router := handler.NewRouter(handler.Deps{
		Events:    eventSvc,
		Auth:      authSvc,
		Hub:       hub,
		Blobs:     blobs,
		UploadDir: blobs.Dir(),
		Origin:    cfg.FrontendURL,
		Logger:    logger,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Block until SIGINT or SIGTERM.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked WebSocket connections are not tracked by Shutdown.
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.EventStore, service.UserStore, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.DB, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("connected to PostgreSQL", "host", cfg.DB.Host, "db", cfg.DB.Name)
		return repository.NewEventRepository(pool), repository.NewUserRepository(pool), pool.Close, nil

	case config.StoreMongo:
		client, err := database.OpenMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mongo: %w", err)
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		store := mongorepo.New(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		logger.Info("connected to MongoDB", "db", cfg.Mongo.Database)
		return store, store, closeFn, nil
	}

	logger.Warn("using in-memory store; data is lost on exit")
	store := memrepo.New()
	return store, store, func() {}, nil
}
