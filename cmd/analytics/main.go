// Command analytics consumes grocery pipeline events from Kafka, aggregates
// them in memory (resolves, fallback rate, unresolved terms, carts, basket
// value, latency percentiles) and serves GET /api/v1/analytics. Aggregates
// are snapshotted to Postgres so a restart resumes from the last snapshot.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/postgres"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadForAnalytics(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	docs := store.New(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	aggregator := events.NewAggregator()
	if err := events.RestoreLatest(ctx, docs, aggregator); err != nil {
		slog.Warn("could not restore analytics snapshot, starting empty", "error", err)
	}

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(docs.Ping, true))

	h := events.NewHandler(aggregator, docs)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", h.Snapshots)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Events.AnalyticsPort),
		Handler:      middleware.RequestID(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	snapshotsDone := events.StartPeriodicSave(gctx, docs, aggregator, cfg.Events.SnapshotInterval)
	g.Go(func() error {
		<-snapshotsDone
		return nil
	})
	g.Go(func() error {
		return kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.GroceryEvents, aggregator.Handle).Start(gctx)
	})
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr, "topic", cfg.Kafka.Topics.GroceryEvents)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
