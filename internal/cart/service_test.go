package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type memStore struct {
	mu      sync.Mutex
	recipes map[string]*grocery.Recipe
	carts   []*grocery.Cart
}

func (m *memStore) GetRecipe(ctx context.Context, id string) (*grocery.Recipe, error) {
	r, ok := m.recipes[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrRecipeNotFound, 404, "recipe not found")
	}
	return r, nil
}

func (m *memStore) SaveCart(ctx context.Context, c *grocery.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts = append(m.carts, c)
	return nil
}

type cartTracker struct {
	carts []events.CartEvent
}

func (c *cartTracker) TrackResolve(events.ResolveEvent) {}
func (c *cartTracker) TrackCart(e events.CartEvent)     { c.carts = append(c.carts, e) }

func newService() (*Service, *memStore, *cartTracker, *metrics.Metrics) {
	store := &memStore{recipes: map[string]*grocery.Recipe{
		"recipe-1": {ID: "recipe-1", OwnerID: "user-1", ShoppingList: []string{"pasta"}},
	}}
	tracker := &cartTracker{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	s := NewService(store, tracker, m)
	s.newID = func() string { return "cart-1" }
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s, store, tracker, m
}

func TestBuildPersistsCart(t *testing.T) {
	s, store, tracker, m := newService()
	req := &grocery.CustomCartRequest{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Products: []grocery.SelectedProduct{
			{ProductID: "123456789", Price: 2.00, Quantity: grocery.Q(3)},
			{ProductID: "987654321", Price: 1.49, Quantity: grocery.Q(2)},
		},
	}
	c, err := s.Build(context.Background(), req)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.ID != "cart-1" || c.Total != 8.98 {
		t.Errorf("cart = %+v", c)
	}
	if len(store.carts) != 1 {
		t.Fatalf("expected 1 stored cart, got %d", len(store.carts))
	}
	if len(tracker.carts) != 1 || tracker.carts[0].Units != 5 || tracker.carts[0].Lines != 2 {
		t.Errorf("cart event = %+v", tracker.carts)
	}
	if got := testutil.ToFloat64(m.CartsAssembledTotal); got != 1 {
		t.Errorf("carts_assembled_total = %v, want 1", got)
	}
}

func TestBuildMockSelectionWritesNothing(t *testing.T) {
	s, store, tracker, m := newService()
	req := &grocery.CustomCartRequest{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Products: []grocery.SelectedProduct{
			{ProductID: "123456789", Price: 2.00},
			{ProductID: "10315777", Price: 1.00},
		},
	}
	_, err := s.Build(context.Background(), req)
	if !errors.Is(err, apperrors.ErrInvalidSelection) {
		t.Fatalf("err = %v, want ErrInvalidSelection", err)
	}
	if len(store.carts) != 0 || len(tracker.carts) != 0 {
		t.Error("rejected selection must not create a cart")
	}
	if got := testutil.ToFloat64(m.InvalidSelectionTotal); got != 1 {
		t.Errorf("cart_invalid_selections_total = %v, want 1", got)
	}
}

func TestBuildChecksOwnership(t *testing.T) {
	s, store, _, _ := newService()
	for _, req := range []*grocery.CustomCartRequest{
		{UserID: "intruder", RecipeID: "recipe-1", Products: []grocery.SelectedProduct{{ProductID: "123456789"}}},
		{UserID: "user-1", RecipeID: "missing", Products: []grocery.SelectedProduct{{ProductID: "123456789"}}},
	} {
		_, err := s.Build(context.Background(), req)
		if !errors.Is(err, apperrors.ErrRecipeNotFound) {
			t.Errorf("%s/%s: err = %v, want ErrRecipeNotFound", req.UserID, req.RecipeID, err)
		}
	}
	if len(store.carts) != 0 {
		t.Error("unexpected cart written")
	}
}
