package resolver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/authenticity"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeCatalog answers from a per-term table. Terms listed in block wait for
// the search context to end.
type fakeCatalog struct {
	results  map[string]catalog.Result
	delays   map[string]time.Duration
	block    map[string]bool
	inFlight atomic.Int64
	peak     atomic.Int64
	calls    atomic.Int64
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) catalog.Result {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block[query] {
		<-ctx.Done()
		return catalog.Result{Status: catalog.StatusTransient, Err: ctx.Err()}
	}
	if d := f.delays[query]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return catalog.Result{Status: catalog.StatusTransient, Err: ctx.Err()}
		}
	}
	if res, ok := f.results[query]; ok {
		return res
	}
	return catalog.Result{Status: catalog.StatusNoResults}
}

type memStore struct {
	mu    sync.Mutex
	saved []*grocery.CartOptions
	err   error
}

func (m *memStore) SaveCartOptions(ctx context.Context, o *grocery.CartOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, o)
	return nil
}

type recordingTracker struct {
	mu       sync.Mutex
	resolves []events.ResolveEvent
}

func (r *recordingTracker) TrackResolve(e events.ResolveEvent) {
	r.mu.Lock()
	r.resolves = append(r.resolves, e)
	r.mu.Unlock()
}

func (r *recordingTracker) TrackCart(events.CartEvent) {}

func ok(items ...catalog.Item) catalog.Result {
	return catalog.Result{Status: catalog.StatusOK, Items: items}
}

func item(id, name string, price float64) catalog.Item {
	return catalog.Item{ID: id, Name: name, SalePrice: price, Available: true}
}

func testConfig() config.ResolverConfig {
	return config.ResolverConfig{
		Parallelism:     4,
		MaxOptions:      3,
		SoftDeadline:    5 * time.Second,
		ManualSearchURL: "https://www.walmart.com/search?q=",
	}
}

func newResolver(cfg config.ResolverConfig, cat catalog.Searcher, store OptionsStore, tracker events.Tracker) *Resolver {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := New(cfg, normalizer.Default(), cat, store, tracker, m)
	r.newID = func() string { return "options-1" }
	return r
}

func italianCatalog() *fakeCatalog {
	return &fakeCatalog{
		results: map[string]catalog.Result{
			"pasta": ok(
				item("10315777", "Mock Pasta", 1.00),
				item("123456789", "Barilla Penne", 1.98),
				item("223456789", "De Cecco Rigatoni", 2.48),
				item("323456789", "Great Value Spaghetti", 1.00),
				item("423456789", "Ronzoni Ziti", 1.50),
			),
			"ripe tomatoes": ok(item("523456789", "Roma Tomatoes", 0.25)),
			"garlic":    ok(item("623456789", "Fresh Garlic Bulb", 0.50), item("12345678", "Fake Garlic", 1)),
			"olive oil": ok(item("723456789", "Bertolli Olive Oil", 7.98)),
			"basil":     ok(item("823456789", "Sweet Basil Plant", 3.48)),
		},
		delays: map[string]time.Duration{
			"pasta":  30 * time.Millisecond,
			"garlic": 10 * time.Millisecond,
		},
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestResolvePreservesOrderAndFilters(t *testing.T) {
	store := &memStore{}
	tracker := &recordingTracker{}
	r := newResolver(testConfig(), italianCatalog(), store, tracker)

	recipe := &grocery.Recipe{ID: "recipe-1", OwnerID: "user-1",
		ShoppingList: []string{"1 lb pasta", "4 ripe tomatoes", "2 cloves garlic, minced", "extra virgin olive oil", "fresh basil leaves"}}
	res, err := r.Resolve(context.Background(), recipe, "user-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Fallback != nil || res.Options == nil {
		t.Fatalf("expected options, got %+v", res)
	}

	var phrases, terms []string
	for _, ing := range res.Options.Ingredients {
		phrases = append(phrases, ing.Ingredient)
		terms = append(terms, ing.QueryTerm)
		if len(ing.Options) == 0 {
			t.Errorf("%q resolved to nothing", ing.Ingredient)
		}
		if len(ing.Options) > 3 {
			t.Errorf("%q has %d options, more than the limit", ing.Ingredient, len(ing.Options))
		}
		for _, o := range ing.Options {
			if !authenticity.Accept(authenticity.Item{ID: o.ProductID, Name: o.Name, Price: o.Price}) {
				t.Errorf("inauthentic option %+v survived", o)
			}
		}
	}
	if diff := cmp.Diff(recipe.ShoppingList, phrases); diff != "" {
		t.Errorf("ingredient order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"pasta", "ripe tomatoes", "garlic", "olive oil", "basil"}, terms); diff != "" {
		t.Errorf("query terms (-want +got):\n%s", diff)
	}

	pasta := res.Options.Ingredients[0].Options
	wantPasta := []string{"123456789", "223456789", "323456789"}
	var gotPasta []string
	for _, o := range pasta {
		gotPasta = append(gotPasta, o.ProductID)
	}
	if diff := cmp.Diff(wantPasta, gotPasta); diff != "" {
		t.Errorf("pasta options keep catalog order after filtering (-want +got):\n%s", diff)
	}

	if len(store.saved) != 1 || store.saved[0].ID != "options-1" {
		t.Errorf("expected one persisted record, got %+v", store.saved)
	}
	if len(tracker.resolves) != 1 || tracker.resolves[0].Resolved != 5 {
		t.Errorf("resolve event: %+v", tracker.resolves)
	}
}

func TestResolveKeepsEmptyIngredients(t *testing.T) {
	cat := italianCatalog()
	store := &memStore{}
	r := newResolver(testConfig(), cat, store, nil)

	res, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: []string{"pasta", "saffron threads"}}, "u")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	ings := res.Options.Ingredients
	if len(ings) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(ings))
	}
	if ings[1].Options == nil || len(ings[1].Options) != 0 {
		t.Errorf("unresolved ingredient should carry an empty list, got %#v", ings[1].Options)
	}
}

func TestResolveFallsBackWhenNothingMatches(t *testing.T) {
	store := &memStore{}
	tracker := &recordingTracker{}
	r := newResolver(testConfig(), &fakeCatalog{}, store, tracker)

	list := []string{"pasta", "olive oil", "basil"}
	res, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: list}, "u")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Options != nil || res.Fallback == nil {
		t.Fatalf("expected fallback, got %+v", res)
	}
	fb := res.Fallback
	if fb.ShoppingMode != "manual" {
		t.Errorf("shopping_mode = %q", fb.ShoppingMode)
	}
	if diff := cmp.Diff(list, fb.IngredientsList); diff != "" {
		t.Errorf("ingredients_list (-want +got):\n%s", diff)
	}
	if want := "https://www.walmart.com/search?q=pasta+olive+oil+basil"; fb.WalmartSearchURL != want {
		t.Errorf("search url = %q, want %q", fb.WalmartSearchURL, want)
	}
	if len(store.saved) != 0 {
		t.Error("fallback must not persist a record")
	}
	if len(tracker.resolves) != 1 || !tracker.resolves[0].Fallback {
		t.Errorf("resolve event: %+v", tracker.resolves)
	}
}

func TestResolveRejectsEmptyList(t *testing.T) {
	r := newResolver(testConfig(), &fakeCatalog{}, &memStore{}, nil)
	for _, list := range [][]string{nil, {}, {"  ", ""}, {"x"}} {
		_, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: list}, "u")
		if !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("list %q: err = %v, want ErrInvalidInput", list, err)
		}
	}
}

func TestResolveCancellationPersistsNothing(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string]catalog.Result{"pasta": ok(item("123456789", "Barilla Penne", 1.98))},
		block:   map[string]bool{"basil": true},
	}
	store := &memStore{}
	r := newResolver(testConfig(), cat, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	_, err := r.Resolve(ctx, &grocery.Recipe{ID: "r", ShoppingList: []string{"pasta", "basil"}}, "u")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(store.saved) != 0 {
		t.Error("cancelled resolve persisted a record")
	}
}

func TestResolveSoftDeadlineZeroesStragglers(t *testing.T) {
	cat := &fakeCatalog{
		results: map[string]catalog.Result{"pasta": ok(item("123456789", "Barilla Penne", 1.98))},
		block:   map[string]bool{"basil": true},
	}
	cfg := testConfig()
	cfg.SoftDeadline = 50 * time.Millisecond
	store := &memStore{}
	r := newResolver(cfg, cat, store, nil)

	res, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: []string{"pasta", "basil"}}, "u")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := len(res.Options.Ingredients[0].Options); n != 1 {
		t.Errorf("pasta options = %d, want 1", n)
	}
	if n := len(res.Options.Ingredients[1].Options); n != 0 {
		t.Errorf("basil options = %d, want 0 after deadline", n)
	}
	if len(store.saved) != 1 {
		t.Error("record should be persisted after a soft deadline")
	}
}

func TestResolveBoundsParallelism(t *testing.T) {
	cat := &fakeCatalog{delays: map[string]time.Duration{}}
	var list []string
	for _, term := range []string{"apples", "bananas", "cherries", "dates", "figs", "grapes", "kiwis", "lemons", "limes", "mangoes"} {
		cat.delays[term] = 20 * time.Millisecond
		list = append(list, term)
	}
	cfg := testConfig()
	cfg.Parallelism = 3
	r := newResolver(cfg, cat, &memStore{}, nil)

	if _, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: list}, "u"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if peak := cat.peak.Load(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
	if cat.calls.Load() != int64(len(list)) {
		t.Errorf("calls = %d, want %d", cat.calls.Load(), len(list))
	}
}

func TestResolveWarnsOnCredentialFailures(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cat := &fakeCatalog{results: map[string]catalog.Result{
		"pasta":  {Status: catalog.StatusPermanent, HTTPStatus: 401},
		"basil":  {Status: catalog.StatusPermanent, HTTPStatus: 401},
		"garlic": ok(item("623456789", "Fresh Garlic Bulb", 0.5)),
	}}
	r := newResolver(testConfig(), cat, &memStore{}, nil)
	if _, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: []string{"pasta", "basil", "garlic"}}, "u"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(buf.String(), "credentials may need rotating") {
		t.Errorf("expected credential rotation warning, log was:\n%s", buf.String())
	}
}

func TestResolveSurfacesStoreErrors(t *testing.T) {
	store := &memStore{err: errors.New("connection reset")}
	r := newResolver(testConfig(), italianCatalog(), store, nil)
	if _, err := r.Resolve(context.Background(), &grocery.Recipe{ID: "r", ShoppingList: []string{"pasta"}}, "u"); err == nil {
		t.Fatal("expected persistence error")
	}
}

func TestNewClampsMaxOptions(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{0, 2}, {1, 2}, {3, 3}, {9, 5}} {
		cfg := testConfig()
		cfg.MaxOptions = tc.in
		if got := newResolver(cfg, &fakeCatalog{}, &memStore{}, nil).cfg.MaxOptions; got != tc.want {
			t.Errorf("MaxOptions %d clamped to %d, want %d", tc.in, got, tc.want)
		}
	}
}
