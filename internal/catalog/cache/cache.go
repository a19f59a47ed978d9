// Package cache puts a Redis read-through cache in front of a catalog
// Searcher. Only successful searches are stored; identical concurrent
// searches share one upstream call.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "catalog:search:v1:"

// flightTimeout bounds a shared upstream search. It is longer than any one
// caller's deadline so a caller leaving early never cuts it short.
const flightTimeout = 3 * time.Minute

// Searcher caches results of the wrapped catalog.Searcher.
type Searcher struct {
	next    catalog.Searcher
	client  *pkgredis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New wraps next. Redis failures are logged and fall through to next.
func New(next catalog.Searcher, client *pkgredis.Client, ttl time.Duration, m *metrics.Metrics) *Searcher {
	return &Searcher{
		next:    next,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "catalog-cache"),
	}
}

// Search implements catalog.Searcher.
func (s *Searcher) Search(ctx context.Context, query string, limit int) catalog.Result {
	key := buildKey(query, limit)
	if items, ok := s.get(ctx, key); ok {
		s.metrics.CacheHitsTotal.Inc()
		return catalog.Result{Status: catalog.StatusOK, Items: items}
	}
	s.metrics.CacheMissesTotal.Inc()

	// The flight belongs to no single caller: it keeps the first caller's
	// values but not its cancellation, and each caller waits on its own ctx.
	flight := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		if items, ok := s.get(fctx, key); ok {
			return catalog.Result{Status: catalog.StatusOK, Items: items}, nil
		}
		res := s.next.Search(fctx, query, limit)
		if res.Status == catalog.StatusOK {
			s.set(fctx, key, res.Items)
		}
		return res, nil
	})
	select {
	case r := <-flight:
		return r.Val.(catalog.Result)
	case <-ctx.Done():
		return catalog.Result{Status: catalog.StatusTransient, Err: ctx.Err()}
	}
}

func (s *Searcher) get(ctx context.Context, key string) ([]catalog.Item, bool) {
	var items []catalog.Item
	found, err := s.client.GetJSON(ctx, key, &items)
	if err != nil {
		s.logger.Warn("cache get failed", "key", key, "error", err)
		return nil, false
	}
	return items, found && len(items) > 0
}

func (s *Searcher) set(ctx context.Context, key string, items []catalog.Item) {
	if err := s.client.SetJSON(ctx, key, items, s.ttl); err != nil {
		s.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func buildKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:limit=%d", normalized, limit)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
