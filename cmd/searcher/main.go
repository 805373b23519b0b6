// Command searcher serves queries against a generated searchindex.js over
// HTTP and, when enabled, MCP.
//
// It keeps the index fresh by watching the file and by consuming reload
// events from Kafka, caches results in Redis, and ships one analytics event
// per search either to Kafka or to an in-process aggregator.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcpserver"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index", cfg.Index.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}

	store := indexstore.New(indexstore.Options{
		Path:           cfg.Index.Path,
		Override:       indexstore.OverrideFromConfig(cfg.Search.Options),
		LoadAttempts:   cfg.Index.LoadAttempts,
		ReloadInterval: cfg.Index.ReloadInterval,
		Metrics:        m,
	})
	if err := store.Load(ctx); err != nil {
		slog.Error("initial index load failed, searches answer 503 until it loads", "error", err)
	}
	if cfg.Index.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil {
				slog.Error("index watcher stopped", "error", err)
			}
		}()
	}
	store.StartReloadLoop(ctx)

	var redisClient *pkgredis.Client
	var queryCache service.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.Open(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	// Without Kafka the searcher aggregates its own events and serves them.
	var aggregator *analytics.Aggregator
	var eventPublisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics)
		defer producer.Close()
		eventPublisher = producer
	} else {
		aggregator = analytics.NewAggregator(cfg.Analytics.TopQueries)
		eventPublisher = &analytics.DirectPublisher{Aggregator: aggregator}
	}
	collector := analytics.NewCollector(eventPublisher, analytics.CollectorOptions{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
		Metrics:       m,
	})
	collector.Start(ctx)
	defer collector.Close()

	var announce service.Announcer
	if cfg.Kafka.Enabled {
		updates := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexUpdates)
		defer updates.Close()
		announce = func(ctx context.Context, snap *indexstore.Snapshot, reason string) error {
			return indexstore.AnnounceReload(ctx, updates, snap, store.Path(), reason)
		}

		// Every searcher must see every reload event, so each gets its own group.
		host, _ := os.Hostname()
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexUpdates,
			indexstore.HandleReloadMessage(store),
			kafka.WithGroupID(fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, host)),
		)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index update consumer error", "error", err)
			}
		}()
		slog.Info("listening for index reload events", "topic", cfg.Kafka.Topics.IndexUpdates)
	}

	svc := service.New(service.Options{
		Store:        store,
		Timeout:      cfg.Search.Timeout,
		Cache:        queryCache,
		Tracker:      collector,
		Announce:     announce,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})

	checker := health.NewChecker()
	checker.Register("search_index", health.FromError(store.Check, health.StatusDown))
	var redisProbe func(context.Context) error
	if redisClient != nil {
		redisProbe = redisClient.Ping
	}
	checker.RegisterWithTimeoutStatus("redis", health.FromError(redisProbe, health.StatusDegraded), health.StatusDegraded)

	api := http.NewServeMux()
	handler.New(svc).Register(api)
	if aggregator != nil {
		api.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator, nil).Stats)
	}

	root := http.NewServeMux()
	root.Handle("/", middleware.Timeout(cfg.Server.WriteTimeout)(api))
	root.HandleFunc("GET /health/live", checker.LiveHandler())
	root.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.MCP.Enabled {
		mcpSrv, err := mcpserver.New(svc, m)
		if err != nil {
			slog.Error("failed to create MCP server", "error", err)
			os.Exit(1)
		}
		root.Handle(cfg.MCP.Path, mcpSrv.Handler())
		slog.Info("MCP endpoint enabled", "path", cfg.MCP.Path)
	}

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins)),
		middleware.Metrics(m),
	}
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Window)
		limiter.Start(ctx)
		mws = append(mws, middleware.RateLimit(limiter, cfg.RateLimit.Limit))
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     middleware.Chain(root, mws...),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
