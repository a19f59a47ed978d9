// Command grocery starts the grocery API: recipe generation, ingredient
// resolution against the retailer catalog and cart assembly.
//
// Usage:
//
//	go run ./cmd/grocery [-config configs/development.yaml]
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
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/cart"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog/cache"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog/signer"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery/handler"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery/router"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/recipe"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/resolver"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/store"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("grocery service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("grocery service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	docs := store.New(db)
	if err := docs.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	sig, err := signer.New(cfg.Catalog.ConsumerID, cfg.Catalog.KeyVersion, cfg.Catalog.PrivateKeyPEM)
	if err != nil {
		return fmt.Errorf("loading catalog signing key: %w", err)
	}

	breaker := resilience.NewCircuitBreaker("catalog", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Catalog.BreakerThreshold,
		ResetTimeout:     cfg.Catalog.BreakerReset,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues("catalog").Set(float64(resilience.StateClosed))

	var searcher catalog.Searcher = catalog.NewClient(cfg.Catalog, sig, breaker, m)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(docs.Ping, true))
	checker.Register("catalog", func(context.Context) health.ComponentHealth {
		if state := breaker.GetState(); state != resilience.StateClosed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "circuit " + state.String()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	if rc, err := pkgredis.NewClient(cfg.Redis); err != nil {
		slog.Warn("redis unavailable, catalog caching disabled", "error", err)
	} else {
		defer rc.Close()
		searcher = cache.New(searcher, rc, cfg.Redis.CacheTTL, m)
		checker.Register("redis", health.PingCheck(rc.Ping, false))
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.GroceryEvents)
	defer producer.Close()
	collector := events.NewCollector(producer, cfg.Events.BufferSize)
	collector.Start(ctx)
	defer collector.Close()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Requests > 0 {
		limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(ctx, 5*time.Minute)
	}

	h := handler.New(
		resolver.New(cfg.Resolver, normalizer.Default(), searcher, docs, collector, m),
		recipe.NewIngestor(docs, recipe.NewClient(cfg.RecipeService)),
		cart.NewService(docs, collector, m),
		docs,
	)
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, router.Options{
			Server:  cfg.Server,
			Metrics: m,
			Health:  checker,
			Limiter: limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		scrape := metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		g.Go(func() error { return scrape.Run(gctx) })
	}
	g.Go(func() error {
		slog.Info("grocery service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
