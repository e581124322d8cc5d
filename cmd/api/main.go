package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/socialpulse/socialpulse-backend/internal/aggregator"
	"github.com/socialpulse/socialpulse-backend/internal/api"
	"github.com/socialpulse/socialpulse-backend/internal/config"
	"github.com/socialpulse/socialpulse-backend/internal/insights"
	"github.com/socialpulse/socialpulse-backend/internal/insights/anthropic"
	"github.com/socialpulse/socialpulse-backend/internal/jobs"
	"github.com/socialpulse/socialpulse-backend/internal/log"
	"github.com/socialpulse/socialpulse-backend/internal/metrics"
	"github.com/socialpulse/socialpulse-backend/internal/platform"
	"github.com/socialpulse/socialpulse-backend/internal/platform/sim"
	"github.com/socialpulse/socialpulse-backend/internal/repository"
	"github.com/socialpulse/socialpulse-backend/internal/service"
	"github.com/socialpulse/socialpulse-backend/internal/social"
	"github.com/socialpulse/socialpulse-backend/pkg/kv"
	_ "github.com/socialpulse/socialpulse-backend/pkg/kv/memory"
	_ "github.com/socialpulse/socialpulse-backend/pkg/kv/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting SocialPulse analytics API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("socialpulse-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Connect Postgres through the pgx stdlib driver
	db, err := sql.Open("pgx", cfg.Database.PostgresDSN)
	if err != nil {
		logger.Fatalw("Failed to open database", "error", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalw("Database ping failed", "error", err)
	}
	logger.Infow("Database connection established")

	// Setup kv store for the insight store and dashboard cache
	kvStore, err := kv.NewStoreFromConfig(kv.Config{
		Backend:         kv.Backend(cfg.Cache.Backend),
		RedisAddr:       cfg.Cache.RedisAddr,
		FailoverEnabled: cfg.Cache.Failover,
		ProbeInterval:   cfg.Cache.ProbeInterval,
		Logger: func(msg string, fields ...any) {
			logger.Infow(msg, fields...)
		},
	})
	if err != nil {
		logger.Fatalw("Failed to setup kv store", "error", err)
	}
	defer kvStore.Close()

	if err := kvStore.Ping(ctx); err != nil {
		logger.Fatalw("KV store ping failed", "error", err)
	}
	logger.Infow("KV store connection established", "backend", cfg.Cache.Backend)

	// Platform adapters. Real platform clients are registered here when
	// credentials are available; the simulated adapters keep dev and demo
	// environments functional without any.
	adapters := make([]platform.Adapter, 0, len(social.AllPlatforms))
	for _, p := range social.AllPlatforms {
		adapters = append(adapters, sim.New(p, logger, 0))
	}
	registry, err := platform.NewRegistry(adapters...)
	if err != nil {
		logger.Fatalw("Failed to build platform registry", "error", err)
	}

	// Completion provider for insight generation
	var completer insights.Completer
	if cfg.Insights.AnthropicAPIKey != "" {
		completer = anthropic.New(cfg.Insights.AnthropicAPIKey, cfg.Insights.AnthropicModel)
		logger.Infow("Insight completion enabled", "model", cfg.Insights.AnthropicModel)
	} else {
		completer = insights.DisabledCompleter()
		logger.Warnw("No completion API key configured, insights will use fallbacks only")
	}

	// Setup services
	postRepo := repository.NewPostRepository(db, logger)
	accountRepo := repository.NewAccountRepository(db, logger)
	collector := aggregator.New(registry, cfg.Analytics.AdapterTimeout, logger, metricsObj)
	generator := insights.NewGenerator(completer, logger, metricsObj)
	insightStore := insights.NewStore(kvStore, logger)

	svc := service.New(
		accountRepo,
		postRepo,
		collector,
		generator,
		insightStore,
		kvStore,
		logger,
		metricsObj,
		service.Options{
			FetchLimit:      cfg.Analytics.FetchLimit,
			DefaultDays:     cfg.Analytics.DefaultDays,
			ValidityDays:    cfg.Insights.ValidityDays,
			TopPostAnalyses: cfg.Analytics.TopPostAnalyses,
			DashboardTTL:    cfg.Cache.DashboardTTL,
		},
	)

	// Create context for background services
	jobCtx, jobCancel := context.WithCancel(context.Background())
	defer jobCancel()

	// Scheduled analytics passes
	if cfg.Scheduler.Enabled {
		scheduler := jobs.NewScheduler(svc, logger, jobs.SchedulerConfig{
			CronSpec: cfg.Scheduler.CronSpec,
		})
		if err := scheduler.Start(jobCtx); err != nil {
			logger.Fatalw("Failed to start scheduler", "error", err)
		}
		defer scheduler.Stop()
	}

	// Setup API handler and middleware
	handler := api.NewHandler(svc, accountRepo, registry, logger)
	middleware := api.NewMiddleware(logger, metricsObj)

	// Create router with middleware and routes - pass security config to Routes
	router := handler.Routes(middleware, cfg.Security.CORSAllowedOrigins, cfg.Security.RateLimitRPM)

	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// Setup HTTP server
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatalw("Server startup failed", "error", err)
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		jobCancel()

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
