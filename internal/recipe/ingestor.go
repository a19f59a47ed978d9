// Package recipe accepts recipes from the generation service, stores them
// and hands their shopping lists to the resolver.
package recipe

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/google/uuid"
)

// Store is the recipe half of the document store.
type Store interface {
	SaveRecipe(ctx context.Context, r *grocery.Recipe) error
	GetRecipe(ctx context.Context, id string) (*grocery.Recipe, error)
}

// Generator produces a recipe document from generation parameters.
type Generator interface {
	Generate(ctx context.Context, params *grocery.GenerateRequest) (*grocery.Recipe, error)
}

// Ingestor owns the recipes collection.
type Ingestor struct {
	store     Store
	generator Generator
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// NewIngestor creates an Ingestor. generator may be nil when recipes only
// arrive through Ingest.
func NewIngestor(store Store, generator Generator) *Ingestor {
	return &Ingestor{
		store:     store,
		generator: generator,
		logger:    slog.Default().With("component", "recipe-ingestor"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Ingest stores r on behalf of ownerID. A missing id is assigned; fields
// other than id, owner and shopping list are stored as received.
func (i *Ingestor) Ingest(ctx context.Context, r *grocery.Recipe, ownerID string) (*grocery.Recipe, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "user_id is required")
	}
	if !hasPhrase(r.ShoppingList) {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "recipe has an empty shopping_list")
	}
	if r.ID == "" {
		r.ID = i.newID()
	}
	r.OwnerID = ownerID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = i.now().UTC()
	}
	if err := i.store.SaveRecipe(ctx, r); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("recipe ingested",
		"recipe_id", r.ID,
		"user_id", ownerID,
		"ingredients", len(r.ShoppingList),
	)
	return r, nil
}

// Generate asks the generation service for a recipe and ingests it.
func (i *Ingestor) Generate(ctx context.Context, params *grocery.GenerateRequest) (*grocery.Recipe, error) {
	if i.generator == nil {
		return nil, apperrors.New(apperrors.ErrInternal, 503, "recipe generation is not configured")
	}
	r, err := i.generator.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	return i.Ingest(ctx, r, params.UserID)
}

// ForUser loads a recipe and checks that userID owns it. A recipe owned by
// someone else is reported as not found.
func (i *Ingestor) ForUser(ctx context.Context, recipeID, userID string) (*grocery.Recipe, error) {
	r, err := i.store.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != userID {
		i.logger.Debug("recipe owner mismatch", "recipe_id", recipeID)
		return nil, apperrors.Newf(apperrors.ErrRecipeNotFound, 404, "recipe %s not found", recipeID)
	}
	return r, nil
}

func hasPhrase(list []string) bool {
	for _, p := range list {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
