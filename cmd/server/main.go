/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hours engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger for the environment
  3. Open the configured repository (memory, sqlite or postgres)
  4. Create the metrics registry and the engine
  5. Start the carryover refresher
  6. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path of a YAML config file (optional)
  -port    HTTP server port, overrides the configuration

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the refresher
  4. Close database connection
  5. Exit

EXAMPLES:
  # In-memory, everything from defaults
  ./server

  # SQLite file
  HOURS_STORAGE_DRIVER=sqlite HOURS_STORAGE_SQLITE_PATH=./data/hours.db ./server

  # PostgreSQL from a config file
  ./server -config=./config/prod.yaml

ENVIRONMENT:
  Every key can be set as HOURS_<SECTION>_<KEY>, see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/hours-engine/api"
	"github.com/warp/hours-engine/config"
	"github.com/warp/hours-engine/generic"
	"github.com/warp/hours-engine/hours"
	"github.com/warp/hours-engine/hours/store"
	"github.com/warp/hours-engine/metrics"
	"github.com/warp/hours-engine/store/postgres"
	"github.com/warp/hours-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Path of a YAML config file")
	port := flag.String("port", "", "HTTP server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != "" {
		cfg.HTTP.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)

	engineCfg, err := engineConfig(cfg.Engine)
	if err != nil {
		log.Fatalf("Invalid engine config: %v", err)
	}

	// Initialize store
	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeRepo()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	engine := hours.New(repo, engineCfg,
		hours.WithLogger(logger),
		hours.WithObserver(appMetrics))

	refresher := api.NewCarryoverRefresher(engine, logger)
	refresher.Observer = appMetrics
	refresher.CheckInterval = cfg.Engine.RefreshInterval
	refresher.Start()

	handler := api.NewHandler(engine, repo, logger)
	router := api.NewRouter(handler, logger, reg)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	refresher.Stop()

	logger.Info("server stopped")
}

// openRepository returns the configured repository and its close function.
func openRepository(cfg *config.Config) (hours.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.DriverPostgres:
		pool, err := postgres.NewDatabase(
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil

	case config.DriverMemory:
		return store.NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func engineConfig(c config.EngineConfig) (hours.Config, error) {
	policy, err := hours.ParseOverlapPolicy(c.OverlapPolicy)
	if err != nil {
		return hours.Config{}, err
	}
	start, err := generic.ParseTimeOfDay(c.WorkdayStart)
	if err != nil {
		return hours.Config{}, err
	}
	return hours.Config{
		Precision:     c.Precision,
		OverlapPolicy: policy,
		WorkdayStart:  start,
	}, nil
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
