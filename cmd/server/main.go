/*
main.go - HTTP server entry point

PURPOSE:
  Starts the safelyspend API server. Handles configuration, dependency
  injection, the divergence monitor and graceful shutdown.

STARTUP SEQUENCE:
  1. Load the TOML config, then apply command-line flags on top
  2. Build the zerolog logger
  3. Initialize SQLite store
  4. Create API handler and planner settings
  5. Start the divergence monitor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file (default: $SAFELYSPEND_CONFIG or XDG config dir)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database
  -log     Log level (overrides config)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the monitor
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/budget.db"
  ./server -db=":memory:" -port=3000 -log=debug
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benschem/safelyspend-sub000/api"
	"github.com/benschem/safelyspend-sub000/config"
	"github.com/benschem/safelyspend-sub000/logger"
	"github.com/benschem/safelyspend-sub000/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	logLevel := flag.String("log", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	interval, err := cfg.MonitorInterval()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	// Initialize store
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.Server.DBPath).Msg("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)
	handler.Planner.Log = logger.WithFields(log, map[string]any{"component": "planner"})
	handler.Planner.DivergenceFloor = cfg.DivergenceFloor()
	handler.Planner.Period = cfg.Engine.Period

	monitor := api.NewDivergenceMonitor(handler.Planner, logger.WithFields(log, map[string]any{"component": "divergence_monitor"}))
	monitor.CheckInterval = interval
	monitor.Enabled = interval > 0
	handler.Monitor = monitor
	monitor.Start()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, log, cfg.Server.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("db", cfg.Server.DBPath).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	monitor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
