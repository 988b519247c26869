// Package main initializes and runs the Muninn dev backend.
//
// It acts as the composition root for the HTTP API, wiring up the document
// store (Redis or in-memory), the event archive (Postgres or in-memory),
// the observability server, and the server lifecycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/muninn-io/muninn-go/internal/config"
	"github.com/muninn-io/muninn-go/internal/devserver"
	"github.com/muninn-io/muninn-go/internal/logger"
	"github.com/muninn-io/muninn-go/internal/observability"
)

// main is the application entrypoint.
func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

// run executes the service lifecycle.
func run() error {
	// -------------------------------------------------------------------------
	// 1. Configuration
	// -------------------------------------------------------------------------

	// Load .env if present. Real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.New(&cfg.App)
	cfg.LogConfig(appLogger)

	ctx := logger.WithContext(context.Background(), appLogger)

	// -------------------------------------------------------------------------
	// 2. Infrastructure Setup
	// -------------------------------------------------------------------------

	var (
		docs     devserver.DocStore
		archive  devserver.EventArchive
		checkers []observability.Checker
	)

	if cfg.Redis.IsConfigured() {
		redisClient, err := devserver.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		docs = devserver.NewRedisDocStore(redisClient)
		checkers = append(checkers, devserver.NewRedisChecker(redisClient))
		appLogger.Info("using redis document store")
	} else {
		docs = devserver.NewMemoryDocStore()
		appLogger.Info("using in-memory document store with seed documents")
	}

	if cfg.Database.IsConfigured() {
		pool, err := devserver.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		defer pool.Close()

		pgArchive, err := devserver.NewPostgresArchive(ctx, pool)
		if err != nil {
			return fmt.Errorf("failed to prepare event archive: %w", err)
		}
		archive = pgArchive
		checkers = append(checkers, devserver.NewPostgresChecker(pool))
		appLogger.Info("using postgres event archive")
	} else {
		archive = devserver.NewMemoryArchive()
		appLogger.Info("using in-memory event archive")
	}

	// -------------------------------------------------------------------------
	// 3. Wiring (Dependency Injection)
	// -------------------------------------------------------------------------

	api, err := devserver.NewAPI(appLogger, docs, archive, cfg.SDK.APIKey,
		cfg.Server.DocumentCacheSize, cfg.Server.DocumentCacheTTL)
	if err != nil {
		return fmt.Errorf("failed to build API: %w", err)
	}
	defer api.Close()

	// -------------------------------------------------------------------------
	// 4. HTTP Server Setup
	// -------------------------------------------------------------------------

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	obsServer := observability.NewServer(appLogger, &cfg.Observability, checkers...)
	obsServer.Start()

	errChan := make(chan error, 1)
	go func() {
		appLogger.Info("dev backend listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	// -------------------------------------------------------------------------
	// 5. Graceful Shutdown
	// -------------------------------------------------------------------------

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		appLogger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("observability server shutdown failed: %w", err)
	}

	appLogger.Info("service exited successfully")
	return nil
}
