/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the back-office ledger API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env, environment, then command-line flags (flags win)
  2. Open the store (SQLite, PostgreSQL + migrations, or memory)
  3. Optionally connect the Redis report cache and the Kafka publisher
  4. Create API handler and router
  5. Serve until SIGINT/SIGTERM, then shut down gracefully

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: $PORT or 8080)
  -db       SQLite database path (default: $SQLITE_DB_PATH)
            Use ":memory:" for in-memory database
  -backend  sqlite | postgres | memory (default: $DATA_BACKEND)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Flush pending events to Kafka
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run against PostgreSQL with a report cache
  DATA_BACKEND=postgres POSTGRES_DSN=postgres://... REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
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

	"github.com/warp/backoffice/api"
	"github.com/warp/backoffice/cache"
	"github.com/warp/backoffice/config"
	"github.com/warp/backoffice/events"
	"github.com/warp/backoffice/generic/store"
	"github.com/warp/backoffice/logging"
	"github.com/warp/backoffice/store/postgres"
	"github.com/warp/backoffice/store/sqlite"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	eventBuffer     = 1024
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg := config.Load()

	// Flags
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.SQLiteDBPath, "db", cfg.SQLiteDBPath, "SQLite database path")
	flag.StringVar(&cfg.DataBackend, "backend", cfg.DataBackend, "sqlite, postgres or memory")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Level(),
		Component: cfg.ServiceName,
		Format:    "json",
		Output:    os.Stdout,
	})
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	opts := []api.Option{
		api.WithLogger(logger.WithComponent("api")),
		api.WithServiceName(cfg.ServiceName),
	}

	// Optional report cache
	if cfg.RedisAddr != "" {
		rdb := cache.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		reports := cache.New(rdb, cfg.ReportCacheTTL, logger.WithComponent("cache"))
		if err := reports.Ping(ctx); err != nil {
			logger.Warn("report cache unreachable, serving from the ledger until it recovers",
				"addr", cfg.RedisAddr, logging.FieldError, err)
		}
		opts = append(opts, api.WithCache(reports))
		logger.Info("report cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ReportCacheTTL)
	}

	// Optional event publisher; closed after the HTTP server drains.
	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, eventBuffer, logger.WithComponent("events"))
		pub.Start(context.Background())
		publisher = pub
		opts = append(opts, api.WithPublisher(pub))
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	g, gctx := errgroup.WithContext(ctx)

	handler := api.NewHandler(backend, opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server starting", "addr", server.Addr, "backend", cfg.DataBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("close event publisher", logging.FieldError, cerr)
		}
		if err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openBackend returns the configured store and a function releasing it.
func openBackend(ctx context.Context, cfg *config.Config, logger *logging.Logger) (api.Backend, func(), error) {
	switch cfg.DataBackend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		s := postgres.New(pool)
		logger.Info("using postgres store")
		return s, func() { s.Close() }, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return store.NewTxMemory(), func() {}, nil

	default:
		s, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.SQLiteDBPath)
		return s, func() { s.Close() }, nil
	}
}
