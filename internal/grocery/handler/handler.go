// Package handler serves the grocery HTTP API: resolving a recipe into cart
// options, assembling a custom cart, reading stored records and generating
// recipes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/cart"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/grocery"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/resolver"
	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/logger"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Resolver resolves a recipe's shopping list.
type Resolver interface {
	Resolve(ctx context.Context, recipe *grocery.Recipe, userID string) (resolver.Result, error)
}

// Recipes loads owned recipes and generates new ones.
type Recipes interface {
	ForUser(ctx context.Context, recipeID, userID string) (*grocery.Recipe, error)
	Generate(ctx context.Context, params *grocery.GenerateRequest) (*grocery.Recipe, error)
}

// Carts assembles and stores custom carts.
type Carts interface {
	Build(ctx context.Context, req *grocery.CustomCartRequest) (*grocery.Cart, error)
}

// Records reads persisted pipeline output.
type Records interface {
	GetCartOptions(ctx context.Context, id string) (*grocery.CartOptions, error)
	GetCart(ctx context.Context, id string) (*grocery.Cart, error)
}

type Handler struct {
	resolver Resolver
	recipes  Recipes
	carts    Carts
	records  Records
	validate *validator.Validate
	logger   *slog.Logger
}

func New(res Resolver, recipes Recipes, carts Carts, records Records) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		resolver: res,
		recipes:  recipes,
		carts:    carts,
		records:  records,
		validate: v,
		logger:   slog.Default().With("component", "grocery-handler"),
	}
}

// CartOptions handles POST /grocery/cart-options?recipe_id=&user_id=.
// The response is either a cart-options record or the manual fallback.
func (h *Handler) CartOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipeID := strings.TrimSpace(r.URL.Query().Get("recipe_id"))
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if recipeID == "" || userID == "" {
		h.writeError(w, http.StatusBadRequest, "recipe_id and user_id are required")
		return
	}

	recipe, err := h.recipes.ForUser(ctx, recipeID, userID)
	if err != nil {
		h.fail(ctx, w, "recipe lookup failed", err)
		return
	}
	res, err := h.resolver.Resolve(ctx, recipe, userID)
	if err != nil {
		h.fail(ctx, w, "resolve failed", err)
		return
	}
	if res.Fallback != nil {
		h.writeJSON(w, http.StatusOK, res.Fallback)
		return
	}
	h.writeJSON(w, http.StatusOK, res.Options)
}

// CustomCart handles POST /grocery/custom-cart.
func (h *Handler) CustomCart(w http.ResponseWriter, r *http.Request) {
	var req grocery.CustomCartRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.carts.Build(r.Context(), &req)
	if err != nil {
		var sel *cart.SelectionError
		if errors.As(err, &sel) {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":      "invalid selection",
				"product_id": sel.ProductID,
				"reason":     sel.Reason,
			})
			return
		}
		h.fail(r.Context(), w, "cart assembly failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, c)
}

// GetCartOptions handles GET /grocery/cart-options/{id}?user_id=. Records
// owned by someone else are reported as missing.
func (h *Handler) GetCartOptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	o, err := h.records.GetCartOptions(r.Context(), id)
	if err == nil && o.UserID != userID {
		err = apperrors.Newf(apperrors.ErrCartNotFound, http.StatusNotFound, "cart options %s not found", id)
	}
	if err != nil {
		h.fail(r.Context(), w, "cart options lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

// GetCart handles GET /grocery/carts/{id}?user_id=.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	c, err := h.records.GetCart(r.Context(), id)
	if err == nil && c.UserID != userID {
		err = apperrors.Newf(apperrors.ErrCartNotFound, http.StatusNotFound, "cart %s not found", id)
	}
	if err != nil {
		h.fail(r.Context(), w, "cart lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return "", false
	}
	return userID, true
}

// GenerateRecipe handles POST /recipes/generate.
func (h *Handler) GenerateRecipe(w http.ResponseWriter, r *http.Request) {
	var req grocery.GenerateRequest
	if !h.decode(w, r, &req) {
		return
	}
	recipe, err := h.recipes.Generate(r.Context(), &req)
	if err != nil {
		h.fail(r.Context(), w, "recipe generation failed", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, recipe)
}

// decode reads and validates a JSON body, writing the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe.Namespace())] = fe.Tag()
			}
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": fields,
			})
			return false
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// fieldPath drops the struct name from a validator namespace:
// "CustomCartRequest.products[0].product_id" -> "products[0].product_id".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(ctx)
	if status >= 500 {
		log.Error(msg, "error", err, "status_code", status)
	} else {
		log.Info(msg, "error", err, "status_code", status)
	}
	h.writeError(w, status, apperrors.PublicMessage(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
