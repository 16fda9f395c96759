// Command server is the Tari Score Monitor: it serves the admin API and
// runs the background fetch scheduler that polls the upstream scoring API,
// stores snapshots, and pushes Discord notifications on score changes.
//
// Usage:
//
//	tariwatch-server
//	API_PORT=8080 tariwatch-server
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/tariwatch/tariwatch/internal/api"
	"github.com/tariwatch/tariwatch/internal/api/handler"
	"github.com/tariwatch/tariwatch/internal/config"
	"github.com/tariwatch/tariwatch/internal/db"
	"github.com/tariwatch/tariwatch/internal/notify"
	"github.com/tariwatch/tariwatch/internal/poller"
	"github.com/tariwatch/tariwatch/internal/store"
	"github.com/tariwatch/tariwatch/internal/tari"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database (initializes schema and settings row)
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Core components
	st := store.New(pool.Pool)
	resolver := store.NewResolver(st, cfg, logger)
	client := tari.NewClient(cfg.UpstreamRatePerMinute, logger)
	gate := notify.NewGate(st, notify.NewWebhookSender(), nil, logger)
	scheduler := poller.New(st, client, gate, resolver, nil, logger)

	// Start the background fetch scheduler
	go scheduler.Run(ctx)

	// Create router
	h := handler.New(st, client, scheduler, gate, resolver, pool, logger)
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Tari Score Monitor running",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
