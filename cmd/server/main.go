/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the seed reward service. Handles configuration,
  dependency wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the TOML config
  2. Build the root logger
  3. Initialize the SQLite store
  4. Wire balance manager, accrual engine, and statistics service
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the TOML config file (default: config.toml)
  -port    HTTP server port (overrides the config file)
  -db      SQLite database path (overrides the config file)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/seeds.db"

  # Run with in-memory database
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Config file layout
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greenride/seed-engine/accrual"
	"github.com/greenride/seed-engine/api"
	"github.com/greenride/seed-engine/config"
	"github.com/greenride/seed-engine/directory"
	"github.com/greenride/seed-engine/logging"
	"github.com/greenride/seed-engine/seed"
	"github.com/greenride/seed-engine/stats"
	"github.com/greenride/seed-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.toml", "path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log := logging.New(cfg.Log)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire services
	balance := seed.NewBalanceManager(store, log)
	seeds := seed.NewService(store, store, balance, log)
	engine := accrual.NewEngine(balance, store, cfg.Accrual, log)

	var resolver directory.Resolver
	if cfg.Directory.URL != "" {
		resolver = directory.NewClient(cfg.Directory.URL, cfg.Directory.Timeout(), log)
	}
	statsSvc := stats.NewService(store, resolver, log)

	handler := api.NewHandler(seeds, engine, statsSvc, log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("db", cfg.Database.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
