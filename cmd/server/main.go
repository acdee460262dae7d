/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the maintenance-contract API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, config.yaml, CONTRACTS_* environment)
  2. Apply command-line flag overrides
  3. Initialize logger and SQLite store
  4. Build rate limiter (Redis when configured, memory otherwise)
  5. Build email + CRM notifiers and the contract service
  6. Start the delivery retry scheduler
  7. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides server.address)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the retry scheduler
  4. Close Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/contracts.db"

  # Run with in-memory database on a different port
  ./server -db=":memory:" -port=3000

  # Enable the CRM webhook
  CONTRACTS_CRM_ENABLED=true CONTRACTS_CRM_WEBHOOK_URL=https://... ./server

SEE ALSO:
  - config/config.go: Configuration keys and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aircare/contract-engine/api"
	"github.com/aircare/contract-engine/config"
	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/logger"
	"github.com/aircare/contract-engine/notify"
	"github.com/aircare/contract-engine/ratelimit"
	"github.com/aircare/contract-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Address = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logr, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logr.Fatalw("failed to initialize database", "path", cfg.Database.Path, "error", err)
	}
	defer store.Close()

	// Rate limiter
	var attempts ratelimit.AttemptStore = ratelimit.NewMemoryStore()
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logr.Warnw("redis unreachable, rate limit requests will be let through until it recovers",
				"addr", cfg.RateLimit.RedisAddr, "error", err)
		}
		cancel()
		attempts = ratelimit.NewRedisStore(rdb)
	}
	limiter := ratelimit.New(attempts, cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window)

	// Notifiers
	httpClient := notify.NewHTTPClient(notify.DefaultClientConfig(), logr)
	email := notify.NewEmailSender(notify.EmailConfig{
		Enabled:    cfg.Email.Enabled,
		Endpoint:   cfg.Email.Endpoint,
		ServiceID:  cfg.Email.ServiceID,
		TemplateID: cfg.Email.TemplateID,
		PublicKey:  cfg.Email.PublicKey,
	}, httpClient)
	crm := notify.NewCRMWebhook(notify.CRMConfig{
		Enabled:    cfg.CRM.Enabled,
		WebhookURL: cfg.CRM.WebhookURL,
	}, httpClient)

	// Service
	svc := contract.NewService(store, email, crm, logr)
	svc.MaxSyncAttempts = cfg.Sync.MaxRetries
	svc.DeliveryTimeout = cfg.Sync.DeliveryTimeout

	// Retry scheduler
	scheduler := api.NewSyncScheduler(svc, logr)
	scheduler.CheckInterval = cfg.Sync.RetryInterval
	scheduler.Enabled = cfg.Sync.MaxRetries > 0
	scheduler.Start()

	// Initialize handler
	handler := api.NewHandler(svc, logr)
	handler.Limiter = limiter
	handler.Scheduler = scheduler
	handler.DB = store

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logr.Infow("server starting",
			"address", cfg.Server.Address,
			"database", cfg.Database.Path,
			"email_enabled", cfg.Email.Enabled,
			"crm_enabled", cfg.CRM.Enabled,
			"redis", cfg.RateLimit.RedisAddr != "",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatalw("server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Errorw("server forced to shutdown", "error", err)
	}
	scheduler.Stop()

	logr.Info("server stopped")
}
