/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the batch balance server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger
  3. Open the record store (memory, sqlite or postgres)
  4. Connect the Redis settlement lock, if configured
  5. Start the invariant auditor
  6. Create API handler and router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file (yaml, toml or json); optional
  -port    HTTP server port, overrides http.port
  -db      SQLite database path, overrides database.path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor
  4. Close Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/batches.db"

  # Run against Postgres with a shared lock
  BATCH_DATABASE_DRIVER=postgres \
  BATCH_DATABASE_DSN="host=localhost user=app dbname=batches sslmode=disable" \
  BATCH_REDIS_ADDR=localhost:6379 ./server

ENVIRONMENT:
  Every config key can be set as BATCH_<SECTION>_<KEY>; see config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - config/config.go: Configuration keys
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Udokachinonso/batchbalance-pro/api"
	"github.com/Udokachinonso/batchbalance-pro/config"
	"github.com/Udokachinonso/batchbalance-pro/generic"
	"github.com/Udokachinonso/batchbalance-pro/generic/store"
	"github.com/Udokachinonso/batchbalance-pro/logger"
	"github.com/Udokachinonso/batchbalance-pro/store/postgres"
	"github.com/Udokachinonso/batchbalance-pro/store/sqlite"
	"github.com/Udokachinonso/batchbalance-pro/trading"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.HTTP.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	zlog, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog = zlog.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	// Initialize store
	recordStore, closeStore, err := openStore(cfg.Database)
	if err != nil {
		zlog.Fatal("failed to initialize database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer closeStore.Close()

	handlerOpts := []api.HandlerOption{
		api.WithLogger(zlog),
		api.WithPhoneRegion(cfg.Phone.DefaultRegion),
	}

	// Settlement lock shared across instances
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zlog.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}

		locker := trading.NewRedisLocker(rdb, trading.RedisLockConfig{
			TTL:           cfg.Lock.TTL,
			RetryInterval: cfg.Lock.RetryInterval,
			MaxRetries:    cfg.Lock.MaxRetries,
		}, zlog)
		handlerOpts = append(handlerOpts, api.WithLocker(locker))
		zlog.Info("using redis settlement lock", zap.String("addr", cfg.Redis.Addr))
	} else {
		zlog.Info("using in-process settlement lock")
	}

	// Invariant auditor
	auditor := api.NewInvariantAuditor(recordStore, zlog)
	auditor.Interval = cfg.Audit.Interval
	auditor.Enabled = cfg.Audit.Enabled
	auditor.Start()
	defer auditor.Stop()
	handlerOpts = append(handlerOpts, api.WithAuditor(auditor))

	// Initialize handler and router
	handler := api.NewHandler(recordStore, handlerOpts...)
	router := api.NewRouter(handler, api.RouterConfig{AllowedOrigins: cfg.HTTP.CORSAllowOrigins})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("server starting",
			zap.Int("port", cfg.HTTP.Port),
			zap.String("driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore opens the configured backend. The closer releases its connections.
func openStore(cfg config.DatabaseConfig) (generic.Store, io.Closer, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewTxMemory(), nopCloser{}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := postgres.Open(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
