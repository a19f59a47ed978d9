package events

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/kafka"
	"github.com/shopspring/decimal"
)

// maxLatencySamples caps the latency window used for percentiles.
const maxLatencySamples = 10000

// Stats is the aggregated view served by the analytics API and stored as
// snapshots.
type Stats struct {
	Resolves             int64       `json:"resolves"`
	Fallbacks            int64       `json:"fallbacks"`
	FallbackRate         float64     `json:"fallback_rate"`
	IngredientsRequested int64       `json:"ingredients_requested"`
	IngredientsResolved  int64       `json:"ingredients_resolved"`
	ResolutionRate       float64     `json:"resolution_rate"`
	PermanentFailures    int64       `json:"permanent_failures"`
	Carts                int64       `json:"carts"`
	UnitsInCarts         int64       `json:"units_in_carts"`
	BasketValueTotal     float64     `json:"basket_value_total"`
	AvgBasketValue       float64     `json:"avg_basket_value"`
	AvgLatencyMs         float64     `json:"avg_latency_ms"`
	P50LatencyMs         int64       `json:"p50_latency_ms"`
	P95LatencyMs         int64       `json:"p95_latency_ms"`
	P99LatencyMs         int64       `json:"p99_latency_ms"`
	TopUnresolved        []TermCount `json:"top_unresolved"`
	ResolvesPerMinute    float64     `json:"resolves_per_minute"`
}

// TermCount is a query term and how often it came back empty.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Aggregator folds pipeline events into running totals.
type Aggregator struct {
	mu                   sync.RWMutex
	resolves             int64
	fallbacks            int64
	ingredientsRequested int64
	ingredientsResolved  int64
	permanentFailures    int64
	carts                int64
	units                int64
	basketValue          decimal.Decimal
	latencies            []int64
	unresolved           map[string]int64
	startTime            time.Time

	logger *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:  make([]int64, 0, 1024),
		unresolved: make(map[string]int64),
		startTime:  time.Now(),
		logger:     slog.Default().With("component", "events-aggregator"),
	}
}

// Handle is the kafka.MessageHandler for the grocery-events topic. Unknown
// or undecodable messages are logged and skipped so they do not block the
// partition.
func (a *Aggregator) Handle(ctx context.Context, msg kafka.Message) error {
	switch EventType(msg.Type) {
	case EventResolve:
		e, err := kafka.DecodeJSON[ResolveEvent](msg.Value)
		if err != nil {
			a.logger.Error("failed to decode resolve event", "error", err)
			return nil
		}
		a.RecordResolve(e)
	case EventCart:
		e, err := kafka.DecodeJSON[CartEvent](msg.Value)
		if err != nil {
			a.logger.Error("failed to decode cart event", "error", err)
			return nil
		}
		a.RecordCart(e)
	default:
		a.logger.Debug("ignoring event", "type", msg.Type)
	}
	return nil
}

// RecordResolve folds one resolve into the totals.
func (a *Aggregator) RecordResolve(e ResolveEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolves++
	if e.Fallback {
		a.fallbacks++
	}
	a.ingredientsRequested += int64(e.Ingredients)
	a.ingredientsResolved += int64(e.Resolved)
	a.permanentFailures += int64(e.PermanentFailures)
	for _, term := range e.UnresolvedTerms {
		a.unresolved[term]++
	}
	if len(a.latencies) >= maxLatencySamples {
		a.latencies = a.latencies[1:]
	}
	a.latencies = append(a.latencies, e.LatencyMs)
}

// RecordCart folds one cart into the totals.
func (a *Aggregator) RecordCart(e CartEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.carts++
	a.units += int64(e.Units)
	a.basketValue = a.basketValue.Add(decimal.NewFromFloat(e.Total))
}

// Restore seeds the counters from a stored snapshot. Latency samples are
// not part of a snapshot and start empty.
func (a *Aggregator) Restore(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resolves = s.Resolves
	a.fallbacks = s.Fallbacks
	a.ingredientsRequested = s.IngredientsRequested
	a.ingredientsResolved = s.IngredientsResolved
	a.permanentFailures = s.PermanentFailures
	a.carts = s.Carts
	a.units = s.UnitsInCarts
	a.basketValue = decimal.NewFromFloat(s.BasketValueTotal)
	for _, tc := range s.TopUnresolved {
		a.unresolved[tc.Term] = tc.Count
	}
}

// Stats returns a consistent snapshot of the totals.
func (a *Aggregator) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		Resolves:             a.resolves,
		Fallbacks:            a.fallbacks,
		IngredientsRequested: a.ingredientsRequested,
		IngredientsResolved:  a.ingredientsResolved,
		PermanentFailures:    a.permanentFailures,
		Carts:                a.carts,
		UnitsInCarts:         a.units,
		BasketValueTotal:     a.basketValue.RoundBank(2).InexactFloat64(),
	}
	if a.resolves > 0 {
		stats.FallbackRate = float64(a.fallbacks) / float64(a.resolves)
	}
	if a.ingredientsRequested > 0 {
		stats.ResolutionRate = float64(a.ingredientsResolved) / float64(a.ingredientsRequested)
	}
	if a.carts > 0 {
		stats.AvgBasketValue = a.basketValue.Div(decimal.NewFromInt(a.carts)).RoundBank(2).InexactFloat64()
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopUnresolved = topN(a.unresolved, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.ResolvesPerMinute = float64(a.resolves) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []TermCount {
	result := make([]TermCount, 0, len(counts))
	for term, count := range counts {
		result = append(result, TermCount{Term: term, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Term < result[j].Term
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
