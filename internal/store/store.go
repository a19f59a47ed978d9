// Package store persists recipes, cart-options records and carts as JSONB
// documents in PostgreSQL. Each table keeps a BIGSERIAL key for the
// database and a separate string id that is the only identifier callers
// ever see.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/postgres"
)

const (
	tableRecipes     = "recipes"
	tableCartOptions = "grocery_cart_options"
	tableCarts       = "grocery_carts"
)

// schema is applied at startup. Documents are additive, so there is no
// migration beyond creating what is missing.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS recipes (
		pk         BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS recipes_user_id_idx ON recipes (user_id)`,
	`CREATE TABLE IF NOT EXISTS grocery_cart_options (
		pk         BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		recipe_id  TEXT NOT NULL,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS grocery_cart_options_recipe_idx ON grocery_cart_options (recipe_id)`,
	`CREATE TABLE IF NOT EXISTS grocery_carts (
		pk         BIGSERIAL PRIMARY KEY,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL,
		recipe_id  TEXT NOT NULL,
		doc        JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS grocery_carts_recipe_idx ON grocery_carts (recipe_id)`,
	`CREATE TABLE IF NOT EXISTS grocery_analytics_snapshots (
		pk          BIGSERIAL PRIMARY KEY,
		data        JSONB NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Store is the document store. Every call uses the shared pool; there are
// no long-lived transactions.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store on db.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// EnsureSchema creates any missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying schema: %w", err)
			}
		}
		return nil
	})
}

// SaveRecipe inserts a recipe or replaces the owner's own copy. An id that
// already belongs to another user is a conflict, never a change of owner.
func (s *Store) SaveRecipe(ctx context.Context, r *grocery.Recipe) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling recipe: %w", err)
	}
	res, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO recipes (id, user_id, doc, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
		 WHERE recipes.user_id = EXCLUDED.user_id`,
		r.ID, r.OwnerID, doc, createdAt(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving recipe %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.Newf(apperrors.ErrDuplicate, 409, "recipe %s already exists", r.ID)
	}
	s.logger.Debug("recipe saved", "recipe_id", r.ID, "user_id", r.OwnerID)
	return nil
}

// GetRecipe loads a recipe by id.
func (s *Store) GetRecipe(ctx context.Context, id string) (*grocery.Recipe, error) {
	var r grocery.Recipe
	if err := s.getDoc(ctx, tableRecipes, id, &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrRecipeNotFound, 404, "recipe %s not found", id)
		}
		return nil, err
	}
	return &r, nil
}

// SaveCartOptions inserts a new cart-options record. Records are never
// updated, so a duplicate id is an error.
func (s *Store) SaveCartOptions(ctx context.Context, o *grocery.CartOptions) error {
	return s.insertDoc(ctx, tableCartOptions, o.ID, o.UserID, o.RecipeID, o.CreatedAt, o)
}

// GetCartOptions loads a cart-options record by id.
func (s *Store) GetCartOptions(ctx context.Context, id string) (*grocery.CartOptions, error) {
	var o grocery.CartOptions
	if err := s.getDoc(ctx, tableCartOptions, id, &o); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCartNotFound, 404, "cart options %s not found", id)
		}
		return nil, err
	}
	return &o, nil
}

// SaveCart inserts a new cart record.
func (s *Store) SaveCart(ctx context.Context, c *grocery.Cart) error {
	return s.insertDoc(ctx, tableCarts, c.ID, c.UserID, c.RecipeID, c.CreatedAt, c)
}

// GetCart loads a cart by id.
func (s *Store) GetCart(ctx context.Context, id string) (*grocery.Cart, error) {
	var c grocery.Cart
	if err := s.getDoc(ctx, tableCarts, id, &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCartNotFound, 404, "cart %s not found", id)
		}
		return nil, err
	}
	return &c, nil
}

// Ping is the readiness probe for the document store.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) insertDoc(ctx context.Context, table, id, userID, recipeID string, created time.Time, v any) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s document: %w", table, err)
	}
	// table is one of the package constants, never caller input.
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, recipe_id, doc, created_at) VALUES ($1, $2, $3, $4, $5)`, table)
	if _, err := s.db.DB.ExecContext(ctx, query, id, userID, recipeID, doc, createdAt(created)); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperrors.Newf(apperrors.ErrDuplicate, 409, "%s record %s already exists", table, id)
		}
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	s.logger.Debug("document inserted", "table", table, "id", id, "recipe_id", recipeID)
	return nil
}

func (s *Store) getDoc(ctx context.Context, table, id string, v any) error {
	var doc []byte
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, table)
	if err := s.db.DB.QueryRowContext(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("querying %s: %w", table, err)
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("decoding %s document %s: %w", table, id, err)
	}
	return nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
