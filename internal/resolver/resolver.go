// Package resolver turns a recipe's shopping list into purchasable product
// options: normalize each phrase, search the catalog concurrently, keep
// only authentic items, and either persist the result or hand back a
// manual-shopping fallback.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/authenticity"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	minTermLen = 2

	fallbackMessage = "We couldn't match these ingredients to products right now. Use the search link to shop for them directly."
)

// OptionsStore persists cart-options records.
type OptionsStore interface {
	SaveCartOptions(ctx context.Context, o *grocery.CartOptions) error
}

// Result holds exactly one of Options or Fallback.
type Result struct {
	Options  *grocery.CartOptions
	Fallback *grocery.ManualFallback
}

// Resolver is safe for concurrent use; each Resolve call owns its own
// worker pool.
type Resolver struct {
	cfg        config.ResolverConfig
	normalizer *normalizer.Normalizer
	searcher   catalog.Searcher
	store      OptionsStore
	events     events.Tracker
	metrics    *metrics.Metrics
	logger     *slog.Logger
	newID      func() string
	now        func() time.Time
}

// New creates a Resolver. MaxOptions is clamped to [2,5] and Parallelism
// to at least 1.
func New(cfg config.ResolverConfig, n *normalizer.Normalizer, searcher catalog.Searcher, store OptionsStore, tracker events.Tracker, m *metrics.Metrics) *Resolver {
	cfg.MaxOptions = min(max(cfg.MaxOptions, 2), 5)
	cfg.Parallelism = max(cfg.Parallelism, 1)
	if tracker == nil {
		tracker = events.Discard
	}
	return &Resolver{
		cfg:        cfg,
		normalizer: n,
		searcher:   searcher,
		store:      store,
		events:     tracker,
		metrics:    m,
		logger:     slog.Default().With("component", "resolver"),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

type job struct {
	phrase string
	term   string
}

type outcome struct {
	options []grocery.ProductOption
	status  catalog.Status
}

// Resolve searches every ingredient of recipe on behalf of userID. If the
// caller's context ends first, in-flight searches are cancelled and
// nothing is persisted.
func (r *Resolver) Resolve(ctx context.Context, recipe *grocery.Recipe, userID string) (Result, error) {
	start := r.now()
	log := logger.FromContext(ctx).With("component", "resolver", "recipe_id", recipe.ID)

	jobs := r.plan(recipe.ShoppingList)
	if len(jobs) == 0 {
		r.metrics.ResolvesTotal.WithLabelValues("invalid").Inc()
		return Result{}, apperrors.New(apperrors.ErrInvalidInput, 400, "recipe has no usable ingredients")
	}

	ctx, span := tracing.StartSpan(ctx, "resolve", logger.RequestID(ctx))
	span.SetAttr("recipe_id", recipe.ID)
	span.SetAttr("ingredients", len(jobs))
	defer func() {
		span.End()
		span.Log(r.logger)
	}()

	outcomes, permanent := r.fanOut(ctx, jobs)
	if err := ctx.Err(); err != nil {
		r.metrics.ResolvesTotal.WithLabelValues("cancelled").Inc()
		log.Info("resolve cancelled, discarding partial results", "error", err)
		return Result{}, fmt.Errorf("resolving recipe %s: %w", recipe.ID, err)
	}

	if permanent*2 > len(jobs) {
		log.Warn("catalog rejected most searches; the consumer credentials may need rotating",
			"permanent_failures", permanent, "ingredients", len(jobs))
	}

	resolutions := make([]grocery.IngredientResolution, len(jobs))
	var unresolved []string
	resolved := 0
	for i, j := range jobs {
		opts := outcomes[i].options
		if opts == nil {
			opts = []grocery.ProductOption{}
		}
		resolutions[i] = grocery.IngredientResolution{Ingredient: j.phrase, QueryTerm: j.term, Options: opts}
		r.metrics.OptionsPerIngredient.Observe(float64(len(opts)))
		if len(opts) > 0 {
			resolved++
		} else {
			unresolved = append(unresolved, j.term)
		}
	}

	event := events.ResolveEvent{
		RecipeID:          recipe.ID,
		UserID:            userID,
		Ingredients:       len(jobs),
		Resolved:          resolved,
		UnresolvedTerms:   unresolved,
		PermanentFailures: permanent,
		RequestID:         logger.RequestID(ctx),
	}
	defer func() {
		elapsed := r.now().Sub(start)
		r.metrics.ResolveDuration.Observe(elapsed.Seconds())
		event.LatencyMs = elapsed.Milliseconds()
		event.Timestamp = r.now().UTC()
		r.events.TrackResolve(event)
	}()

	if resolved == 0 {
		r.metrics.ResolvesTotal.WithLabelValues("fallback").Inc()
		event.Fallback = true
		log.Info("no ingredient resolved, returning manual fallback", "ingredients", len(jobs))
		return Result{Fallback: r.fallback(recipe.ShoppingList)}, nil
	}

	record := &grocery.CartOptions{
		ID:          r.newID(),
		UserID:      userID,
		RecipeID:    recipe.ID,
		Ingredients: resolutions,
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.SaveCartOptions(ctx, record); err != nil {
		r.metrics.ResolvesTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("persisting cart options: %w", err)
	}
	event.CartOptionsID = record.ID
	r.metrics.ResolvesTotal.WithLabelValues("options").Inc()
	log.Info("recipe resolved", "cart_options_id", record.ID, "resolved", resolved, "ingredients", len(jobs))
	return Result{Options: record}, nil
}

// plan normalizes the shopping list, dropping blank phrases and phrases
// whose term is too short to search.
func (r *Resolver) plan(list []string) []job {
	jobs := make([]job, 0, len(list))
	for _, phrase := range list {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		term := r.normalizer.Normalize(phrase)
		if len(term) < minTermLen {
			r.logger.Debug("dropping ingredient", "phrase", phrase, "term", term)
			continue
		}
		jobs = append(jobs, job{phrase: phrase, term: term})
	}
	return jobs
}

// fanOut runs one search per job under the parallelism bound and the soft
// deadline. Each worker writes only its own slot, so order is the input
// order. Jobs still outstanding at the deadline keep a zero outcome.
func (r *Resolver) fanOut(ctx context.Context, jobs []job) ([]outcome, int) {
	searchCtx := ctx
	if r.cfg.SoftDeadline > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, r.cfg.SoftDeadline)
		defer cancel()
	}

	outcomes := make([]outcome, len(jobs))
	var permanent atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.cfg.Parallelism)
	for i, j := range jobs {
		g.Go(func() error {
			if searchCtx.Err() != nil {
				return nil
			}
			outcomes[i] = r.resolveOne(searchCtx, j)
			if outcomes[i].status == catalog.StatusPermanent {
				permanent.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	return outcomes, int(permanent.Load())
}

func (r *Resolver) resolveOne(ctx context.Context, j job) outcome {
	ctx, span := tracing.StartChildSpan(ctx, "catalog.search")
	defer span.End()
	span.SetAttr("term", j.term)

	res := r.searcher.Search(ctx, j.term, r.cfg.MaxOptions)
	span.SetAttr("outcome", res.Status.String())

	var options []grocery.ProductOption
	for _, item := range res.Items {
		err := authenticity.Check(authenticity.Item{ID: item.ID, Name: item.Name, Price: item.SalePrice})
		if err != nil {
			reason := "other"
			var rej *authenticity.Rejection
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			r.metrics.ItemsRejectedTotal.WithLabelValues(reason).Inc()
			continue
		}
		options = append(options, grocery.ProductOption{
			ProductID:       item.ID,
			Name:            item.Name,
			Price:           item.SalePrice,
			ThumbnailImage:  item.Thumbnail,
			AvailableOnline: item.Available,
		})
		if len(options) == r.cfg.MaxOptions {
			break
		}
	}
	span.SetAttr("options", len(options))
	r.logger.Debug("ingredient searched", "term", j.term, "status", res.Status.String(), "options", len(options))
	return outcome{options: options, status: res.Status}
}

func (r *Resolver) fallback(list []string) *grocery.ManualFallback {
	ingredients := make([]string, 0, len(list))
	escaped := make([]string, 0, len(list))
	for _, phrase := range list {
		if p := strings.TrimSpace(phrase); p != "" {
			ingredients = append(ingredients, p)
			escaped = append(escaped, url.QueryEscape(p))
		}
	}
	return &grocery.ManualFallback{
		ShoppingMode:     grocery.ShoppingModeManual,
		IngredientsList:  ingredients,
		WalmartSearchURL: r.cfg.ManualSearchURL + strings.Join(escaped, "+"),
		Message:          fallbackMessage,
	}
}
