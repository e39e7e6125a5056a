// api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"analyticsdash/api/analytics"
	"analyticsdash/api/config"
	"analyticsdash/api/database"
	"analyticsdash/api/handlers"
	"analyticsdash/api/metrics"
	"analyticsdash/api/store"
	"analyticsdash/api/utils"
)

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.WithField("level", level).Warn("Unknown log level, falling back to info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func main() {
	// Load .env file at the very start
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	if envErr != nil {
		logger.Debugf("No .env file found or error loading .env: %v", envErr)
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Event store and session tracker ---
	dbClient, err := database.NewPostgresDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.EnsureSchema(schemaCtx, dbClient.DB)
	schemaCancel()
	if err != nil {
		logger.Fatalf("Failed to apply schema: %v", err)
	}

	// --- Realtime counters ---
	redisClient, err := database.NewRedisClient(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer redisClient.Close()

	// --- Optional ClickHouse archive ---
	var archive analytics.Archiver
	if cfg.ClickHouse.Enabled() {
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize ClickHouse database: %v", err)
		}
		defer chClient.Close()
		archive = store.NewArchiveStore(chClient.Conn)
	} else {
		logger.Info("CLICKHOUSE_HOST not set, event archive disabled")
	}

	// --- Initialize Stores ---
	sessionStore := store.NewSessionStore(dbClient.DB)
	eventStore := store.NewEventStore(dbClient.DB, sessionStore)
	counterStore := store.NewCounterStore(redisClient.Client, cfg.CounterTTL)

	credentials, err := store.NewStaticCredentialStore(cfg.DemoEmail, cfg.DemoPassword)
	if err != nil {
		logger.Fatalf("Failed to initialize credential store: %v", err)
	}
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	tracker := analytics.NewTracker(eventStore, counterStore, archive, m, logger)
	aggregator := analytics.NewAggregator(eventStore, sessionStore)

	// --- Initialize Handlers ---
	r := handlers.NewRouter(handlers.RouterDeps{
		Auth:        handlers.NewAuthHandlers(credentials, tokens, logger),
		Events:      handlers.NewEventHandlers(tracker, sessionStore, logger),
		Analytics:   handlers.NewAnalyticsHandlers(aggregator, logger),
		Tokens:      tokens,
		Metrics:     m,
		Registry:    registry,
		CORSOrigins: cfg.CORSOrigins,
		HealthChecks: map[string]handlers.Pinger{
			"postgres": dbClient.DB.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Client.Ping(ctx).Err()
			},
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Analytics API server starting on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Analytics API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exiting.")
}
