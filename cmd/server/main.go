package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carscout-ai/carscout/internal/alert"
	"github.com/carscout-ai/carscout/internal/blobstore"
	"github.com/carscout-ai/carscout/internal/channel"
	"github.com/carscout-ai/carscout/internal/config"
	"github.com/carscout-ai/carscout/internal/dedupe"
	"github.com/carscout-ai/carscout/internal/entitlements"
	"github.com/carscout-ai/carscout/internal/events"
	"github.com/carscout-ai/carscout/internal/fx"
	"github.com/carscout-ai/carscout/internal/handler"
	"github.com/carscout-ai/carscout/internal/llm"
	"github.com/carscout-ai/carscout/internal/messaging"
	"github.com/carscout-ai/carscout/internal/middleware"
	"github.com/carscout-ai/carscout/internal/normalize"
	"github.com/carscout-ai/carscout/internal/parse"
	"github.com/carscout-ai/carscout/internal/pipeline"
	"github.com/carscout-ai/carscout/internal/price"
	"github.com/carscout-ai/carscout/internal/queue"
	"github.com/carscout-ai/carscout/internal/ratelimit"
	"github.com/carscout-ai/carscout/internal/risk"
	"github.com/carscout-ai/carscout/internal/score"
	"github.com/carscout-ai/carscout/internal/scrape"
	"github.com/carscout-ai/carscout/internal/tracing"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, "carscout", cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to parse database config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	dbConfig.MaxConns = int32(cfg.DBMaxConns)
	dbConfig.MinConns = int32(cfg.DBMinConns)
	dbConfig.MaxConnLifetime = cfg.DBMaxConnLife

	db, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		logger.Error("failed to ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("database_connected")

	rdb, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to parse redis url", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rdb.Close()

	// Fast-store capabilities shared across channel delivery and alert
	// delivery (§5: "token buckets ... persisted in the fast store").
	channelBucket := ratelimit.NewBucket(rdb, "channel:"+cfg.BroadcastChannel, int64(cfg.ChannelPostRate), cfg.ChannelPostWindow)
	fastCounter := ratelimit.NewCounter(rdb)

	// Opaque raw-HTML blob store (§6); object storage itself is an
	// out-of-scope external collaborator here, so only the in-process
	// implementation is wired (see DESIGN.md for the S3 tradeoff).
	blobs := blobstore.NewMemory()

	fxTable := fx.NewTable(db)

	llmClient := llm.NewClient(cfg.LLMEndpoint, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMRateLimitRPS, &http.Client{
		Timeout: time.Duration(cfg.LLMTimeoutMS) * time.Millisecond,
	})
	llmCache := llm.NewCache(db)

	transport := messaging.NewHTTPTransport(cfg.MessagingEndpoint, cfg.MessagingToken, nil)

	tasks := queue.New(db)

	// Brand/model alias table backs normalize, the alert DSL parser, and
	// the alert matcher, so all three resolve brand/model identically.
	normalizeStore := normalize.NewStore(db, tasks, []byte(cfg.InternalAuthSecret))
	brandModels, err := normalizeStore.LoadBrandModels(ctx)
	if err != nil {
		logger.Warn("failed to load brand/model alias table", slog.String("error", err.Error()))
	}
	brandMatcher := normalize.NewBrandMatcher(brandModels)

	// Pipeline stage registry: every stage enqueues its own successor
	// inside its own transaction (transactional outbox, §5), so the
	// engine only needs a Run implementation per stage name.
	registry := pipeline.NewRegistry()

	scrapeStore := scrape.NewStore(db, tasks)
	// Site-specific scraper adapters are out-of-scope external
	// collaborators (spec Non-goals); the scheduler starts with none
	// registered until an operator wires one in.
	scrapeScheduler := scrape.NewScheduler(scrapeStore, map[uuid.UUID]scrape.Adapter{}, scrape.DefaultConfig(), logger)

	parseRegistry := parse.NewRegistry() // site-specific extractors plug in the same way adapters do
	parseStore := parse.NewStore(db, blobs, tasks)
	registry.Register(parse.NewStage(parseStore, blobs, parseRegistry))

	normalizeStage := normalize.NewStage(normalizeStore, fxTable)
	registry.Register(normalizeStage)

	dedupeStore := dedupe.NewStore(db, tasks)
	registry.Register(dedupe.NewStage(dedupeStore))

	priceStore := price.NewStore(db, tasks)
	registry.Register(price.NewStage(priceStore))

	riskStore := risk.NewStore(db, tasks)
	registry.Register(risk.NewStage(riskStore, llmClient, llmCache))

	scoreStore := score.NewStore(db, tasks)
	registry.Register(score.NewStage(scoreStore))

	channelStore := channel.NewStore(db)
	registry.Register(channel.NewStage(channelStore, channelBucket, fastCounter, transport,
		cfg.BroadcastChannel, cfg.BroadcastChannel, cfg.DiversityWindow, cfg.DiversityCapPerModel))

	alertStore := alert.NewStore(db, fastCounter)
	registry.Register(alert.NewStage(alertStore))

	engine := pipeline.NewEngine(tasks, logger, registry,
		pipeline.WithMaxRetries(cfg.PipelineMaxRetries),
		pipeline.WithRetryBackoff(cfg.PipelineRetryBackoff),
		pipeline.WithSyncMode(cfg.SyncPipelineMode),
	)
	engine.Start()
	defer engine.Stop()

	scrapeCtx, scrapeCancel := context.WithCancel(ctx)
	go func() {
		if err := scrapeScheduler.Run(scrapeCtx, 30*time.Second); err != nil && err != context.Canceled {
			logger.Error("scrape scheduler stopped", slog.String("error", err.Error()))
		}
	}()
	defer scrapeCancel()

	entitlementsStore := entitlements.NewStore(db)
	notifier := alert.NewNotifier(alertStore, entitlementsStore, transport, logger)
	notifyCtx, notifyCancel := context.WithCancel(ctx)
	go func() {
		if err := notifier.Run(notifyCtx, 1*time.Minute); err != nil && err != context.Canceled {
			logger.Error("alert notifier stopped", slog.String("error", err.Error()))
		}
	}()
	defer notifyCancel()

	bus := events.NewBus(logger)
	bus.Start()
	defer bus.Stop()

	// Handlers
	healthHandler := handler.NewHealthHandler(db)
	listingHandler := handler.NewListingHandler(db, logger)
	sourceHandler := handler.NewSourceHandler(db, logger)
	pipelineCtlHandler := handler.NewPipelineCtlHandler(engine, bus, logger)
	alertHandler := handler.NewAlertHandler(alertStore, brandMatcher, logger)
	sseHandler := handler.NewSSEHandler(bus, logger, cfg)

	internalAuth := middleware.NewInternalAuth(logger, cfg.InternalAuthSecret)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/listings", listingHandler.List)
		r.Get("/listings/{id}", listingHandler.Get)

		r.Group(func(r chi.Router) {
			r.Use(internalAuth.Middleware)
			r.Post("/alerts", alertHandler.Create)
			r.Delete("/alerts/{id}", alertHandler.Deactivate)
		})
	})

	if cfg.DebugEndpointsEnabled {
		r.Route("/internal", func(r chi.Router) {
			r.Use(internalAuth.Middleware)
			r.Get("/sources", sourceHandler.List)
			r.Post("/sources/{id}/enabled", sourceHandler.SetEnabled)
			r.Get("/pipeline/stats", pipelineCtlHandler.Stats)
			r.Get("/pipeline/events", pipelineCtlHandler.EventBusStats)
			r.Get("/pipeline/all", pipelineCtlHandler.AllStats)
			r.Get("/listings/{id}/stream", sseHandler.StreamListing)
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server_starting",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}

func newRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
