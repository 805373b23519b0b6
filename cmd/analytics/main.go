// Command analytics aggregates search events published by the searchers.
//
// It consumes the search-analytics topic from Kafka, aggregates events in
// memory (latency percentiles, cache hit rate, zero-result and top queries),
// snapshots the aggregate to PostgreSQL and serves it over HTTP at
// GET /api/v1/analytics and GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/analytics.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const pruneInterval = time.Hour

func main() {
	configPath := flag.String("config", "configs/analytics.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port)
	}

	agg := analytics.NewAggregator(cfg.Analytics.TopQueries)
	checker := health.NewChecker()

	var store *aggregator.Store
	var dbProbe func(context.Context) error
	if cfg.Analytics.Persist {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			dbProbe = db.Ping
			store = setupStore(ctx, db, agg, cfg.Analytics)
		}
	}
	checker.RegisterWithTimeoutStatus("postgres", health.FromError(dbProbe, health.StatusDegraded), health.StatusDegraded)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchAnalytics,
		countingHandler(analytics.HandleEvent(agg), m),
		kafka.WithGroupID(cfg.Kafka.ConsumerGroup+"-analytics"),
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.SearchAnalytics)

	var history analytics.HistorySource
	if store != nil {
		history = store
	}
	analyticsHandler := analytics.NewHandler(agg, history)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowOrigins)),
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

// setupStore prepares the snapshot table, restores the last snapshot into
// agg and starts the periodic save and prune loops. It returns nil when the
// schema cannot be created.
func setupStore(ctx context.Context, db *postgres.Client, agg *analytics.Aggregator, cfg config.AnalyticsConfig) *aggregator.Store {
	store := aggregator.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("analytics schema setup failed, snapshots disabled", "error", err)
		return nil
	}

	latest, err := store.LatestSnapshot(ctx)
	switch {
	case err != nil:
		slog.Warn("could not restore analytics snapshot", "error", err)
	case latest != nil:
		agg.Restore(*latest)
		slog.Info("analytics restored from snapshot", "total_searches", latest.TotalSearches)
	}

	store.StartPeriodicSave(ctx, agg, cfg.SnapshotInterval)

	if cfg.SnapshotRetention > 0 {
		go func() {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				if n, err := store.Prune(ctx, cfg.SnapshotRetention); err != nil {
					slog.Error("snapshot prune failed", "error", err)
				} else if n > 0 {
					slog.Info("old snapshots pruned", "deleted", n)
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
	return store
}

// countingHandler records the outcome of every consumed event.
func countingHandler(next kafka.MessageHandler, m *metrics.Metrics) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		err := next(ctx, key, value)
		if err != nil {
			m.ObserveAnalyticsEvent("failed")
		} else {
			m.ObserveAnalyticsEvent("consumed")
		}
		return err
	}
}
