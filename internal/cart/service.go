package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/google/uuid"
)

// Store is the persistence the cart service needs.
type Store interface {
	GetRecipe(ctx context.Context, id string) (*grocery.Recipe, error)
	SaveCart(ctx context.Context, c *grocery.Cart) error
}

// Service assembles carts for recipes a user owns and persists them.
type Service struct {
	store   Store
	events  events.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

func NewService(store Store, tracker events.Tracker, m *metrics.Metrics) *Service {
	if tracker == nil {
		tracker = events.Discard
	}
	return &Service{
		store:   store,
		events:  tracker,
		metrics: m,
		logger:  slog.Default().With("component", "cart-service"),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Build validates req, prices it and stores the cart. Any invalid product
// fails the whole request and nothing is written.
func (s *Service) Build(ctx context.Context, req *grocery.CustomCartRequest) (*grocery.Cart, error) {
	log := logger.FromContext(ctx).With("component", "cart-service", "recipe_id", req.RecipeID)

	recipe, err := s.store.GetRecipe(ctx, req.RecipeID)
	if err != nil {
		return nil, err
	}
	if recipe.OwnerID != req.UserID {
		// Same answer as a missing recipe so ids cannot be probed.
		return nil, apperrors.New(apperrors.ErrRecipeNotFound, 404, "recipe not found")
	}

	a, err := Assemble(req.Products)
	if err != nil {
		var sel *SelectionError
		if errors.As(err, &sel) {
			s.metrics.InvalidSelectionTotal.Inc()
			log.Warn("rejected cart selection", "product_id", sel.ProductID, "reason", sel.Reason)
		}
		return nil, err
	}

	c := &grocery.Cart{
		ID:           s.newID(),
		UserID:       req.UserID,
		RecipeID:     req.RecipeID,
		Items:        a.Lines,
		Total:        a.Total,
		AffiliateURL: a.AffiliateURL,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.SaveCart(ctx, c); err != nil {
		return nil, fmt.Errorf("persisting cart: %w", err)
	}
	s.metrics.CartsAssembledTotal.Inc()

	units := 0
	for _, l := range c.Items {
		units += l.Quantity
	}
	s.events.TrackCart(events.CartEvent{
		CartID:    c.ID,
		RecipeID:  c.RecipeID,
		UserID:    c.UserID,
		Lines:     len(c.Items),
		Units:     units,
		Total:     c.Total,
		RequestID: logger.RequestID(ctx),
		Timestamp: c.CreatedAt,
	})
	log.Info("cart assembled", "cart_id", c.ID, "lines", len(c.Items), "total", c.Total)
	return c, nil
}
